package billing

import (
	"context"
	"time"
)

// Repo persists payments.
type Repo interface {
	Create(ctx context.Context, payment Payment) error
	GetByOrderID(ctx context.Context, accountID, orderID string) (Payment, error)
	// MarkCompleted is a no-op for payments that are already completed.
	MarkCompleted(ctx context.Context, orderID, paymentID string, at time.Time) error
}
