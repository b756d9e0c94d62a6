package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"kamiscan-backend/internal/llm"
	"kamiscan-backend/internal/shared/server/middleware"
	"kamiscan-backend/internal/shared/server/respond"
	"kamiscan-backend/internal/shared/telemetry"
	"kamiscan-backend/internal/summaries"
	"kamiscan-backend/internal/usage"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches chat routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/ai/chat-session", h.openSession)
	rg.POST("/ai/chat-with-pdf", h.stream)
}

type openSessionRequest struct {
	PDFID    string `json:"pdfId"`
	PDFTitle string `json:"pdfTitle"`
}

func (h *Handler) openSession(c *gin.Context) {
	var req openSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "PDF ID and title are required", nil)
		return
	}
	view, err := h.Svc.OpenSession(c.Request.Context(), middleware.UserIDFromContext(c), req.PDFID, req.PDFTitle)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, view)
}

func (h *Handler) stream(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "PDF ID and message are required", nil)
		return
	}

	started := false
	sink := func(event Event) error {
		if !started {
			started = true
			c.Header("Content-Type", "text/event-stream")
			c.Header("Cache-Control", "no-cache")
			c.Header("Connection", "keep-alive")
			c.Header("X-Accel-Buffering", "no")
			c.Status(http.StatusOK)
			c.Writer.WriteHeaderNow()
		}
		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}
		// Clients match on the "data: " prefix, space included.
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	}

	err := h.Svc.Stream(c.Request.Context(), middleware.UserIDFromContext(c), req, sink)
	if err == nil {
		return
	}
	if started {
		// Headers are gone; the error event, if any, was already relayed.
		if !errors.Is(err, context.Canceled) {
			telemetry.Warn("chat.stream_ended", map[string]any{
				"request_id": telemetry.RequestID(c.Request.Context()),
				"user_id":    middleware.UserIDFromContext(c),
				"error":      telemetry.ErrorField(err),
			})
		}
		return
	}
	writeError(c, err)
}

func writeError(c *gin.Context, err error) {
	var quota *usage.QuotaError
	switch {
	case errors.As(err, &quota):
		respond.Error(c, http.StatusTooManyRequests, "quota_exceeded", "Usage limit reached. Upgrade your plan or wait for the next reset.", quota.Details())
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, summaries.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "PDF not found or access denied", nil)
	case errors.Is(err, ErrSessionNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "Chat session not found", nil)
	case errors.Is(err, usage.ErrAccountNotFound):
		respond.Error(c, http.StatusNotFound, "account_not_found", "User not found", nil)
	case errors.Is(err, llm.ErrThrottled):
		respond.Error(c, http.StatusTooManyRequests, "ai_throttled", "AI service is busy. Please retry shortly.", nil)
	case errors.Is(err, llm.ErrUnavailable):
		respond.Error(c, http.StatusServiceUnavailable, "ai_unavailable", "AI service is temporarily unavailable", nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "chat_failed", "Failed to process chat message", nil)
	}
}
