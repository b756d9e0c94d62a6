package billing

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo stores payments in memory keyed by gateway order id.
type MemoryRepo struct {
	mu      sync.RWMutex
	byOrder map[string]Payment
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byOrder: make(map[string]Payment)}
}

func (r *MemoryRepo) Create(ctx context.Context, payment Payment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byOrder[payment.OrderID] = payment
	return nil
}

func (r *MemoryRepo) GetByOrderID(ctx context.Context, accountID, orderID string) (Payment, error) {
	if err := ctx.Err(); err != nil {
		return Payment{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	payment, ok := r.byOrder[orderID]
	if !ok || payment.AccountID != accountID {
		return Payment{}, ErrPaymentNotFound
	}
	return payment, nil
}

func (r *MemoryRepo) MarkCompleted(ctx context.Context, orderID, paymentID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	payment, ok := r.byOrder[orderID]
	if !ok {
		return ErrPaymentNotFound
	}
	if payment.Status == StatusCompleted {
		return nil
	}
	payment.Status = StatusCompleted
	payment.PaymentID = paymentID
	payment.UpdatedAt = at
	r.byOrder[orderID] = payment
	return nil
}
