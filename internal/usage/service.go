package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kamiscan-backend/internal/accounts"
	"kamiscan-backend/internal/shared/telemetry"
)

// Window is the rolling period after which a metered counter starts over.
const Window = 30 * 24 * time.Hour

// Service is the quota half of the upload gate and the counter half of the ledger.
type Service struct {
	Accounts accounts.Repo
	Now      func() time.Time
}

// NewService constructs a Service over the account store.
func NewService(repo accounts.Repo) *Service {
	return &Service{Accounts: repo, Now: func() time.Time { return time.Now().UTC() }}
}

// Current returns the account after applying a lapsed window reset.
// The reset is persisted before returning and is a no-op inside a fresh window.
func (s *Service) Current(ctx context.Context, accountID string) (accounts.Account, error) {
	account, err := s.Accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return accounts.Account{}, ErrAccountNotFound
		}
		return accounts.Account{}, fmt.Errorf("load account: %w", err)
	}

	now := s.now()
	if now.Sub(account.LastResetDate) <= Window {
		return account, nil
	}

	reset, err := s.Accounts.ResetUsageWindow(ctx, accountID, now.Add(-Window), now)
	if err != nil {
		return accounts.Account{}, fmt.Errorf("reset usage window: %w", err)
	}
	if !reset {
		// A concurrent request reset first; read its result.
		return s.reload(ctx, accountID)
	}
	telemetry.Info("usage.window_reset", map[string]any{
		"user_id":         accountID,
		"previous_count":  account.UsageCount,
		"last_reset_date": account.LastResetDate,
	})
	account.UsageCount = 0
	account.LastResetDate = now
	return account, nil
}

// Check decides whether accountID may start a processing request.
// A rejection is a *QuotaError wrapping ErrQuotaExceeded; the account is returned either way.
func (s *Service) Check(ctx context.Context, accountID string) (accounts.Account, error) {
	account, err := s.Current(ctx, accountID)
	if err != nil {
		return accounts.Account{}, err
	}
	if account.Unmetered() {
		return account, nil
	}
	if account.UsageCount >= account.UsageLimit {
		return account, &QuotaError{
			Subscription: account.Subscription,
			UsageCount:   account.UsageCount,
			UsageLimit:   account.UsageLimit,
			ResetsAt:     NextReset(account),
		}
	}
	return account, nil
}

// Increment adds exactly one processing event to the counter.
func (s *Service) Increment(ctx context.Context, accountID string) error {
	if err := s.Accounts.IncrementUsage(ctx, accountID); err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return ErrAccountNotFound
		}
		return err
	}
	return nil
}

// Reset forces a new window regardless of the stored reset date.
func (s *Service) Reset(ctx context.Context, accountID string) (accounts.Account, error) {
	now := s.now()
	if _, err := s.Accounts.ResetUsageWindow(ctx, accountID, now.Add(time.Nanosecond), now); err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return accounts.Account{}, ErrAccountNotFound
		}
		return accounts.Account{}, err
	}
	return s.reload(ctx, accountID)
}

// NextReset returns when the account's current window lapses.
func NextReset(account accounts.Account) time.Time {
	return account.LastResetDate.Add(Window)
}

func (s *Service) reload(ctx context.Context, accountID string) (accounts.Account, error) {
	account, err := s.Accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return accounts.Account{}, ErrAccountNotFound
		}
		return accounts.Account{}, err
	}
	return account, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}
