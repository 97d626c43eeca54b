package handler

import (
	"encoding/json"
	"net/http"

	"waste-report-service/internal/messaging"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FeedHandler serves the live report stream and the detailed health probe.
type FeedHandler struct {
	hub        *messaging.SSEHub
	dispatcher *messaging.Dispatcher
	driver     string
	logger     *zap.Logger
}

func NewFeedHandler(hub *messaging.SSEHub, dispatcher *messaging.Dispatcher, driver string, logger *zap.Logger) *FeedHandler {
	return &FeedHandler{
		hub:        hub,
		dispatcher: dispatcher,
		driver:     driver,
		logger:     logger,
	}
}

func (h *FeedHandler) StreamReports(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	client := h.hub.RegisterClient()
	defer h.hub.UnregisterClient(client)

	c.SSEvent("connected", gin.H{"message": "SSE connection established"})
	c.Writer.Flush()

	clientGone := c.Request.Context().Done()

	for {
		select {
		case <-clientGone:
			return
		case event, ok := <-client.Channel:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Warn("encode report event failed", zap.Error(err))
				continue
			}
			c.SSEvent("report", string(data))
			c.Writer.Flush()
		}
	}
}

// HealthCheck reports storage driver, dispatcher counters and live stream
// clients.
func (h *FeedHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"storage":     h.driver,
		"dispatcher":  h.dispatcher.GetStats(),
		"sse_clients": h.hub.ClientCount(),
	})
}
