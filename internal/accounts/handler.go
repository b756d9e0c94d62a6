package accounts

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"kamiscan-backend/internal/shared/server/middleware"
	"kamiscan-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.me)
}

func (h *Handler) me(c *gin.Context) {
	if h.Svc == nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "service unavailable", nil)
		return
	}
	account, err := h.Svc.GetByID(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "Account not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Failed to load account", nil)
		return
	}
	respond.OK(c, gin.H{
		"id":            account.ID,
		"email":         account.Email,
		"name":          account.Name,
		"image":         account.Image,
		"isAdmin":       account.IsAdmin,
		"subscription":  account.Subscription,
		"usageCount":    account.UsageCount,
		"usageLimit":    account.UsageLimit,
		"remaining":     account.Remaining(),
		"lastResetDate": account.LastResetDate,
	})
}
