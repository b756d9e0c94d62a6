package usage

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"kamiscan-backend/internal/shared/server/middleware"
	"kamiscan-backend/internal/shared/server/respond"
)

// Handler exposes usage endpoints.
type Handler struct {
	Svc      *Service
	Activity ActivitySource
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, activity ActivitySource) *Handler {
	return &Handler{Svc: svc, Activity: activity}
}

// RegisterRoutes attaches usage routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/usage", h.getUsage)
	rg.GET("/user/stats", h.stats)
}

// RegisterDevRoutes attaches dev-only usage routes.
func (h *Handler) RegisterDevRoutes(rg *gin.RouterGroup) {
	rg.POST("/usage/reset", h.resetUsage)
}

func (h *Handler) getUsage(c *gin.Context) {
	account, err := h.Svc.Current(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		h.fail(c, err, "Failed to fetch usage")
		return
	}
	respond.OK(c, gin.H{
		"plan":      account.Subscription,
		"limit":     account.UsageLimit,
		"used":      account.UsageCount,
		"remaining": account.Remaining(),
		"resetsAt":  NextReset(account),
	})
}

func (h *Handler) stats(c *gin.Context) {
	ctx := c.Request.Context()
	accountID := middleware.UserIDFromContext(c)
	account, err := h.Svc.Current(ctx, accountID)
	if err != nil {
		h.fail(c, err, "Internal server error")
		return
	}
	var activity Activity
	if h.Activity != nil {
		activity, err = h.Activity.Activity(ctx, accountID)
		if err != nil {
			h.fail(c, err, "Internal server error")
			return
		}
	}
	respond.OK(c, BuildStats(account, activity))
}

func (h *Handler) resetUsage(c *gin.Context) {
	account, err := h.Svc.Reset(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		h.fail(c, err, "Failed to reset usage")
		return
	}
	respond.OK(c, gin.H{
		"plan":     account.Subscription,
		"limit":    account.UsageLimit,
		"used":     account.UsageCount,
		"resetsAt": NextReset(account),
	})
}

func (h *Handler) fail(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, ErrAccountNotFound):
		respond.Error(c, http.StatusNotFound, "account_not_found", "User not found", nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", message, nil)
	}
}
