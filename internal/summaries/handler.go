package summaries

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"kamiscan-backend/internal/llm"
	"kamiscan-backend/internal/shared/server/middleware"
	"kamiscan-backend/internal/shared/server/respond"
	"kamiscan-backend/internal/usage"
)

// multipartSlack covers form boundaries and headers around the file part.
const multipartSlack = 1 << 20

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches summary routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/summarize", h.summarize)
	rg.POST("/ai/advanced-process", h.advanced)
	rg.GET("/summaries", h.list)
	rg.GET("/summaries/:id", h.get)
}

func (h *Handler) summarize(c *gin.Context) {
	upload, ok := h.readUpload(c)
	if !ok {
		return
	}

	result, err := h.Svc.Summarize(c.Request.Context(), middleware.UserIDFromContext(c), upload)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set(middleware.RecordIDKey, result.ID)
	c.Set(middleware.ParseMethodKey, result.ParseMethod)
	respond.OK(c, result)
}

func (h *Handler) advanced(c *gin.Context) {
	upload, ok := h.readUpload(c)
	if !ok {
		return
	}

	var opts Options
	if raw := strings.TrimSpace(c.PostForm("options")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts); err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "options must be valid JSON", nil)
			return
		}
	}

	result, err := h.Svc.Advanced(c.Request.Context(), middleware.UserIDFromContext(c), upload, opts)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set(middleware.RecordIDKey, result.ID)
	c.Set(middleware.ParseMethodKey, string(result.Metadata.ParseMethod))
	respond.OK(c, gin.H{"success": true, "result": result})
}

func (h *Handler) list(c *gin.Context) {
	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			offset = parsed
		}
	}

	records, err := h.Svc.List(c.Request.Context(), middleware.UserIDFromContext(c), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, records)
}

func (h *Handler) get(c *gin.Context) {
	record, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, record)
}

// readUpload reads the multipart "file" part. It writes the error response itself.
func (h *Handler) readUpload(c *gin.Context) (Upload, bool) {
	if h.Svc.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.Svc.MaxUploadBytes+multipartSlack)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusBadRequest, "validation_error", "File size exceeds limit", nil)
			return Upload{}, false
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "No file provided", nil)
		return Upload{}, false
	}
	if h.Svc.MaxUploadBytes > 0 && fileHeader.Size > h.Svc.MaxUploadBytes {
		respond.Error(c, http.StatusBadRequest, "validation_error", "File size exceeds limit", gin.H{"maxBytes": h.Svc.MaxUploadBytes})
		return Upload{}, false
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return Upload{}, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return Upload{}, false
	}
	return Upload{
		FileName: fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Size:     fileHeader.Size,
		Data:     data,
	}, true
}

func writeError(c *gin.Context, err error) {
	var quota *usage.QuotaError
	switch {
	case errors.As(err, &quota):
		respond.Error(c, http.StatusTooManyRequests, "quota_exceeded", "Usage limit reached. Upgrade your plan or wait for the next reset.", quota.Details())
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrInsufficientContent):
		respond.Error(c, http.StatusBadRequest, "insufficient_content", "No readable text content found in document", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "Summary not found", nil)
	case errors.Is(err, usage.ErrAccountNotFound):
		respond.Error(c, http.StatusNotFound, "account_not_found", "User not found", nil)
	case errors.Is(err, llm.ErrThrottled):
		respond.Error(c, http.StatusTooManyRequests, "ai_throttled", "AI service is busy. Please retry shortly.", nil)
	case errors.Is(err, llm.ErrUnavailable):
		respond.Error(c, http.StatusServiceUnavailable, "ai_unavailable", "AI service is temporarily unavailable", nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "processing_failed", "Failed to process PDF. Please try again.", nil)
	}
}
