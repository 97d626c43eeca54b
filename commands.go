package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"

	"waste-report-service/config"
	"waste-report-service/internal/logger"
	"waste-report-service/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultConfigPath = "config/config.json"

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "wastewatch",
		Short: "Waste dumping report service",
		Long: `Waste dumping report service

Citizens submit geotagged dumping reports with an optional photo; operators
review them, set a status and forward them to the responsible department.
Without a subcommand the HTTP service is started.`,
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(configPath)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "path to a JSON or YAML config file")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(statsCmd(&configPath))
	rootCmd.AddCommand(listCmd(&configPath))

	return rootCmd
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(*configPath)
		},
	}
}

func statsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print report counts per status",
		RunE: withReportService(configPath, func(ctx context.Context, svc *service.ReportService, out io.Writer) error {
			stats, err := svc.ComputeStats(ctx)
			if err != nil {
				return err
			}
			return writeJSON(out, stats)
		}),
	}
}

func listCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print all reports, newest first",
		RunE: withReportService(configPath, func(ctx context.Context, svc *service.ReportService, out io.Writer) error {
			reports, err := svc.ListReports(ctx)
			if err != nil {
				return err
			}
			return writeJSON(out, reports)
		}),
	}
}

// withReportService opens the configured store for a one-shot command. No
// events are published.
func withReportService(configPath *string, run func(context.Context, *service.ReportService, io.Writer) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := setup(*configPath)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		store, closeStore, err := openStore(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer closeStore()

		return run(ctx, service.NewReportService(store, nil, cfg.Reports), cmd.OutOrStdout())
	}
}

// setup loads the config and builds the logger. A missing file at the
// given path falls back to defaults plus environment overrides.
func setup(configPath string) (*config.Config, *zap.Logger, error) {
	cfg, found, err := config.LoadConfigOrDefault(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.Log.Level)
	if !found {
		log.Warn("config file not found, using defaults", zap.String("path", configPath))
	}
	return cfg, log, nil
}

func openDatabase(ctx context.Context, dbConfig config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", dbConfig.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
