package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"waste-report-service/config"
	"waste-report-service/internal/handler"
	"waste-report-service/internal/messaging"
	"waste-report-service/internal/repository"
	"waste-report-service/internal/service"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(configPath string) error {
	cfg, log, err := setup(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	// Open report storage
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open report store", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
		return err
	}
	defer closeStore()

	images, err := repository.NewLocalImageStore(cfg.Server.UploadsDir, handler.UploadsRoute)
	if err != nil {
		log.Error("failed to prepare uploads directory", zap.Error(err))
		return err
	}

	// Initialize SSE Hub
	sseHub := messaging.NewSSEHub(log)
	go sseHub.Run()
	defer sseHub.Stop()

	// With RabbitMQ every instance publishes to the exchange and feeds its
	// own hub from it; without it events go straight to the local hub.
	var sinks []messaging.EventSink
	if cfg.RabbitMQ.Enabled {
		rmq, err := messaging.NewRabbitMQ(
			cfg.RabbitMQ.Host,
			cfg.RabbitMQ.Port,
			cfg.RabbitMQ.User,
			cfg.RabbitMQ.Password,
			log,
		)
		if err != nil {
			log.Error("failed to connect to rabbitmq", zap.Error(err))
			return err
		}
		defer rmq.Close()
		log.Info("connected to rabbitmq")

		consumer := messaging.NewReportFeedConsumer(rmq, sseHub, log)
		consumer.Start()
		defer consumer.Stop()

		sinks = append(sinks, rmq)
	} else {
		sinks = append(sinks, sseHub)
	}

	dispatcher := messaging.NewDispatcher(log, 0, sinks...)
	dispatcher.Start()
	defer dispatcher.Stop()

	// Initialize services and handlers
	reportService := service.NewReportService(store, dispatcher, cfg.Reports)
	reportHandler := handler.NewReportHandler(reportService, images, cfg.Server.MaxUploadMB<<20, log)
	feedHandler := handler.NewFeedHandler(sseHub, dispatcher, cfg.Storage.Driver, log)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           handler.NewRouter(cfg, reportHandler, feedHandler, log),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Open streams only end when the hub closes their channels.
	srv.RegisterOnShutdown(sseHub.Stop)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("report service starting", zap.String("addr", srv.Addr), zap.String("storage", cfg.Storage.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErr:
		if err != nil {
			log.Error("server failed", zap.Error(err))
			return err
		}
		return nil
	case <-sigCtx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed", zap.Error(err))
		return err
	}
	return nil
}

// openStore builds the configured ReportStore. The returned func releases
// whatever the store holds open.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.ReportStore, func(), error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		db, err := openDatabase(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		store := repository.NewPostgresReportStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Info("connected to database", zap.String("host", cfg.Database.Host), zap.String("dbname", cfg.Database.DBName))
		return store, func() { db.Close() }, nil

	case config.DriverMemory:
		log.Warn("using in-memory report store, reports are lost on restart")
		return repository.NewMemoryReportStore(repository.SeedReports()), func() {}, nil

	default:
		store, err := repository.NewFileReportStore(cfg.Storage.File)
		if err != nil {
			return nil, nil, err
		}
		log.Info("using file report store", zap.String("path", store.Path()))
		return store, func() {}, nil
	}
}
