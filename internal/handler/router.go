package handler

import (
	"slices"
	"time"

	"waste-report-service/config"
	"waste-report-service/internal/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UploadsRoute is where stored images are served from.
const UploadsRoute = "/uploads"

func NewRouter(cfg *config.Config, reportHandler *ReportHandler, feedHandler *FeedHandler, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.GinMiddleware(log))
	r.Use(cors.New(corsConfig(cfg.Server.AllowedOrigins)))
	r.MaxMultipartMemory = cfg.Server.MaxUploadMB << 20

	// Health check
	r.GET("/health", reportHandler.Health)
	r.GET("/health/detailed", feedHandler.HealthCheck)

	r.Static(UploadsRoute, cfg.Server.UploadsDir)

	operator := OperatorAuth(cfg.Auth.JWTSecret)

	api := r.Group("/api")
	{
		api.GET("/reports", reportHandler.GetReports)
		api.POST("/reports", reportHandler.CreateReport)
		api.GET("/stats", reportHandler.GetStats)

		// Operator routes
		api.PATCH("/reports/:id/status", operator, reportHandler.UpdateStatus)
		api.GET("/reports/stream", operator, feedHandler.StreamReports)
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}
