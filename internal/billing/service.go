package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"kamiscan-backend/internal/accounts"
	"kamiscan-backend/internal/shared/telemetry"
)

// PlanUpdater moves an account onto a plan and zeroes its counter.
type PlanUpdater interface {
	UpdatePlan(ctx context.Context, accountID, plan string, limit int, now time.Time) error
}

// Service creates and verifies plan purchases.
type Service struct {
	Repo     Repo
	Gateway  Gateway
	Accounts PlanUpdater
	Now      func() time.Time
	NewID    func() string
}

// NewService constructs a Service. A nil gateway reports ErrNotConfigured.
func NewService(repo Repo, gateway Gateway, accountsRepo PlanUpdater) *Service {
	return &Service{
		Repo:     repo,
		Gateway:  gateway,
		Accounts: accountsRepo,
		Now:      func() time.Time { return time.Now().UTC() },
		NewID:    uuid.NewString,
	}
}

// CreateOrder opens a gateway order for plan and stores it as pending.
func (s *Service) CreateOrder(ctx context.Context, accountID, email string, in OrderInput) (OrderResult, error) {
	if s.Gateway == nil {
		return OrderResult{}, ErrNotConfigured
	}
	plan := strings.ToLower(strings.TrimSpace(in.Plan))
	price, ok := accounts.PriceFor(plan)
	if !ok {
		return OrderResult{}, ErrInvalidPlan
	}
	if in.Amount != 0 && in.Amount != price {
		return OrderResult{}, fmt.Errorf("%w: amount does not match the %s price", ErrInvalidInput, plan)
	}

	now := s.now()
	order, err := s.Gateway.CreateOrder(ctx, OrderRequest{
		Amount:   price * 100,
		Currency: currencyINR,
		Receipt:  fmt.Sprintf("kamiscan_%s_%d", plan, now.UnixMilli()),
		Notes:    map[string]string{"userId": accountID, "plan": plan, "email": email},
	})
	if err != nil {
		return OrderResult{}, err
	}

	payment := Payment{
		ID:        s.NewID(),
		AccountID: accountID,
		OrderID:   order.ID,
		Plan:      plan,
		Amount:    price,
		Currency:  currencyINR,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.Create(ctx, payment); err != nil {
		return OrderResult{}, fmt.Errorf("store payment: %w", err)
	}
	telemetry.Info("payment.order_created", map[string]any{
		"request_id": telemetry.RequestID(ctx),
		"user_id":    accountID,
		"order_id":   order.ID,
		"plan":       plan,
		"amount":     price,
	})
	currency := order.Currency
	if currency == "" {
		currency = currencyINR
	}
	return OrderResult{OrderID: order.ID, Amount: order.Amount, Currency: currency, KeyID: s.Gateway.KeyID()}, nil
}

// Verify checks the checkout signature and upgrades the account to the
// purchased plan. Verifying a completed payment again changes nothing.
func (s *Service) Verify(ctx context.Context, accountID string, in VerifyInput) (Payment, error) {
	if s.Gateway == nil {
		return Payment{}, ErrNotConfigured
	}
	if in.OrderID == "" || in.PaymentID == "" || in.Signature == "" {
		return Payment{}, fmt.Errorf("%w: order id, payment id and signature are required", ErrInvalidInput)
	}
	if !s.Gateway.VerifySignature(in.OrderID, in.PaymentID, in.Signature) {
		telemetry.Warn("payment.signature_mismatch", map[string]any{
			"request_id": telemetry.RequestID(ctx),
			"user_id":    accountID,
			"order_id":   in.OrderID,
		})
		return Payment{}, ErrSignatureMismatch
	}

	payment, err := s.Repo.GetByOrderID(ctx, accountID, in.OrderID)
	if err != nil {
		return Payment{}, err
	}
	if plan := strings.ToLower(strings.TrimSpace(in.Plan)); plan != "" && plan != payment.Plan {
		return Payment{}, fmt.Errorf("%w: plan does not match the order", ErrInvalidInput)
	}
	if payment.Status == StatusCompleted {
		return payment, nil
	}

	limit, ok := accounts.LimitFor(payment.Plan)
	if !ok {
		return Payment{}, ErrInvalidPlan
	}
	now := s.now()
	// The order stays pending until the plan is applied, so a failed upgrade
	// is retried by the next verification instead of being skipped.
	if err := s.Accounts.UpdatePlan(ctx, accountID, payment.Plan, limit, now); err != nil {
		return Payment{}, fmt.Errorf("update plan: %w", err)
	}
	if err := s.Repo.MarkCompleted(ctx, payment.OrderID, in.PaymentID, now); err != nil {
		return Payment{}, fmt.Errorf("complete payment: %w", err)
	}
	payment.Status = StatusCompleted
	payment.PaymentID = in.PaymentID
	payment.UpdatedAt = now
	telemetry.Info("payment.verified", map[string]any{
		"request_id": telemetry.RequestID(ctx),
		"user_id":    accountID,
		"order_id":   payment.OrderID,
		"plan":       payment.Plan,
	})
	return payment, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}
