package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"waste-report-service/internal/model"
	"waste-report-service/internal/repository"
	"waste-report-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ReportHandler struct {
	reportService  *service.ReportService
	imageStore     repository.ImageStore
	maxUploadBytes int64
	logger         *zap.Logger
}

func NewReportHandler(reportService *service.ReportService, imageStore repository.ImageStore, maxUploadBytes int64, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		reportService:  reportService,
		imageStore:     imageStore,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Handles GET /api/reports - all reports, newest first. A storage failure
// degrades to an empty list.
func (h *ReportHandler) GetReports(c *gin.Context) {
	reports, err := h.reportService.ListReports(c.Request.Context())
	if err != nil {
		h.logger.Error("list reports failed", zap.Error(err))
		c.JSON(http.StatusOK, []model.Report{})
		return
	}
	c.JSON(http.StatusOK, reports)
}

// Handles GET /api/stats - report counts per status.
func (h *ReportHandler) GetStats(c *gin.Context) {
	stats, err := h.reportService.ComputeStats(c.Request.Context())
	if err != nil {
		h.logger.Error("compute stats failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Handles POST /api/reports - multipart form with an optional "image" file.
func (h *ReportHandler) CreateReport(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	input, file, err := h.parseSubmission(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid form: " + err.Error()})
		return
	}

	if file != nil {
		ref, err := h.saveImage(c, file)
		if err != nil {
			h.logger.Error("save image failed", zap.String("filename", file.Filename), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save report"})
			return
		}
		input.ImageRef = ref
	}

	report, err := h.reportService.SubmitReport(c.Request.Context(), input)
	if err != nil {
		h.discardImage(c, input.ImageRef)
		if errors.Is(err, model.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("submit report failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save report"})
		return
	}

	h.logger.Info("report submitted",
		zap.String("report_id", report.ID),
		zap.Int("repeat_count", report.RepeatCount))
	c.JSON(http.StatusCreated, report)
}

func (h *ReportHandler) parseSubmission(c *gin.Context) (model.SubmitReportInput, *multipart.FileHeader, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		if err := c.Request.ParseMultipartForm(h.maxUploadBytes); err != nil {
			return model.SubmitReportInput{}, nil, err
		}
	}

	input := model.SubmitReportInput{
		Location:      c.PostForm("location"),
		Lat:           c.PostForm("lat"),
		Lng:           c.PostForm("lng"),
		Description:   c.PostForm("description"),
		ReporterName:  c.PostForm("reporterName"),
		ReporterPhone: c.PostForm("reporterPhone"),
	}

	file, err := c.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return input, nil, nil
		}
		return input, nil, err
	}
	return input, file, nil
}

func (h *ReportHandler) saveImage(c *gin.Context, file *multipart.FileHeader) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	return h.imageStore.Save(c.Request.Context(), file.Filename, src)
}

// discardImage removes an upload whose report was never stored.
func (h *ReportHandler) discardImage(c *gin.Context, ref string) {
	if ref == "" {
		return
	}
	if err := h.imageStore.Delete(c.Request.Context(), ref); err != nil {
		h.logger.Warn("discard image failed", zap.String("image", ref), zap.Error(err))
	}
}

// Handles PATCH /api/reports/:id/status - sets status, problemType and
// forwardTo; empty fields are ignored.
func (h *ReportHandler) UpdateStatus(c *gin.Context) {
	id := c.Param("id")

	var req model.StatusUpdate
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.reportService.UpdateStatus(c.Request.Context(), id, req)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
		case errors.Is(err, model.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("update status failed", zap.String("report_id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update report"})
		}
		return
	}

	h.logger.Info("report status updated",
		zap.String("report_id", report.ID),
		zap.String("status", string(report.Status)))
	c.JSON(http.StatusOK, report)
}

// Health check endpoint for service status monitoring.
func (h *ReportHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
