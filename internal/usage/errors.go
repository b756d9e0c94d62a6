package usage

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrQuotaExceeded   = errors.New("usage quota exceeded")
	ErrAccountNotFound = errors.New("account not found")
)

// QuotaError carries the counters of an account that reached its ceiling.
type QuotaError struct {
	Subscription string
	UsageCount   int
	UsageLimit   int
	ResetsAt     time.Time
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s: %d of %d used on %s plan", ErrQuotaExceeded, e.UsageCount, e.UsageLimit, e.Subscription)
}

func (e *QuotaError) Unwrap() error { return ErrQuotaExceeded }

// Details renders the counters for an error response body.
func (e *QuotaError) Details() map[string]any {
	return map[string]any{
		"subscription": e.Subscription,
		"usageCount":   e.UsageCount,
		"usageLimit":   e.UsageLimit,
		"resetsAt":     e.ResetsAt,
	}
}
