package analytics

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"kamiscan-backend/internal/shared/server/middleware"
	"kamiscan-backend/internal/shared/server/respond"
	"kamiscan-backend/internal/shared/telemetry"
)

// AdminChecker decides whether an email belongs to an administrator.
type AdminChecker interface {
	IsAdminEmail(email string) bool
}

type Handler struct {
	Svc    *Service
	Admins AdminChecker
}

func NewHandler(svc *Service, admins AdminChecker) *Handler {
	return &Handler{Svc: svc, Admins: admins}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/analytics", h.dashboard)
}

func (h *Handler) dashboard(c *gin.Context) {
	accountID := middleware.UserIDFromContext(c)
	if strings.TrimSpace(accountID) == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "Unauthorized", nil)
		return
	}
	scope := accountID
	if h.Admins != nil && h.Admins.IsAdminEmail(middleware.UserEmailFromContext(c)) {
		scope = ""
	}

	dashboard, err := h.Svc.Dashboard(c.Request.Context(), scope, strings.ToLower(c.Query("range")))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
			return
		}
		telemetry.Error("analytics.failed", map[string]any{
			"request_id": telemetry.RequestID(c.Request.Context()),
			"user_id":    accountID,
			"error":      telemetry.ErrorField(err),
		})
		respond.Error(c, http.StatusInternalServerError, "analytics_failed", "Failed to fetch analytics", nil)
		return
	}
	respond.OK(c, dashboard)
}
