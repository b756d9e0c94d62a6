package exports

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"

	"kamiscan-backend/internal/shared/server/middleware"
	"kamiscan-backend/internal/shared/server/respond"
	"kamiscan-backend/internal/shared/telemetry"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/export", h.create)
	rg.GET("/exports/*key", h.download)
}

func (h *Handler) create(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	result, err := h.Svc.Export(c.Request.Context(), middleware.UserIDFromContext(c), req)
	if err != nil {
		h.fail(c, err, "Export failed")
		return
	}
	respond.OK(c, result)
}

func (h *Handler) download(c *gin.Context) {
	key := c.Param("key")
	rc, contentType, err := h.Svc.Open(c.Request.Context(), middleware.UserIDFromContext(c), key)
	if err != nil {
		h.fail(c, err, "Failed to read export")
		return
	}
	defer rc.Close()

	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", `attachment; filename="`+path.Base(key)+`"`)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		telemetry.Warn("export.download_interrupted", map[string]any{
			"request_id": telemetry.RequestID(c.Request.Context()),
			"error":      telemetry.ErrorField(err),
		})
	}
}

func (h *Handler) fail(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "Export not found", nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
	default:
		telemetry.Error("export.failed", map[string]any{
			"request_id": telemetry.RequestID(c.Request.Context()),
			"user_id":    middleware.UserIDFromContext(c),
			"error":      telemetry.ErrorField(err),
		})
		respond.Error(c, http.StatusInternalServerError, "export_failed", message, nil)
	}
}
