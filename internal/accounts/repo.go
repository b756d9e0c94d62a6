package accounts

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("account not found")

// Repo persists accounts. IncrementUsage must be atomic at the storage layer.
type Repo interface {
	Upsert(ctx context.Context, account Account) (Account, error)
	GetByID(ctx context.Context, accountID string) (Account, error)
	// ResetUsageWindow zeroes the counter when last_reset_date is before staleBefore.
	// It reports whether a reset happened; repeated calls in a fresh window are no-ops.
	ResetUsageWindow(ctx context.Context, accountID string, staleBefore, now time.Time) (bool, error)
	IncrementUsage(ctx context.Context, accountID string) error
	UpdatePlan(ctx context.Context, accountID, plan string, limit int, now time.Time) error
}
