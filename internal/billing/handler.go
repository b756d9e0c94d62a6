package billing

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"kamiscan-backend/internal/accounts"
	"kamiscan-backend/internal/shared/server/middleware"
	"kamiscan-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches payment routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/payment/create-order", h.createOrder)
	rg.POST("/payment/verify", h.verify)
}

func (h *Handler) createOrder(c *gin.Context) {
	var in OrderInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	result, err := h.Svc.CreateOrder(c.Request.Context(), middleware.UserIDFromContext(c), middleware.UserEmailFromContext(c), in)
	if err != nil {
		writeError(c, err, "Failed to create payment order")
		return
	}
	respond.OK(c, result)
}

func (h *Handler) verify(c *gin.Context) {
	var in VerifyInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	payment, err := h.Svc.Verify(c.Request.Context(), middleware.UserIDFromContext(c), in)
	if err != nil {
		writeError(c, err, "Failed to verify payment")
		return
	}
	respond.OK(c, gin.H{
		"success": true,
		"message": "Payment verified and subscription updated successfully",
		"plan":    payment.Plan,
	})
}

func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotConfigured):
		respond.Error(c, http.StatusServiceUnavailable, "payments_unavailable", "Payment system not configured. Please contact support.", nil)
	case errors.Is(err, ErrInvalidPlan):
		respond.Error(c, http.StatusBadRequest, "invalid_plan", "Invalid plan selected", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrSignatureMismatch):
		respond.Error(c, http.StatusBadRequest, "verification_failed", "Payment verification failed", nil)
	case errors.Is(err, ErrPaymentNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "Payment not found", nil)
	case errors.Is(err, accounts.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "account_not_found", "User not found", nil)
	case errors.Is(err, ErrGateway):
		respond.Error(c, http.StatusBadGateway, "gateway_error", fallback, nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "payment_failed", fallback, nil)
	}
}
