package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"kamiscan-backend/internal/accounts"
)

func newTestService(t *testing.T, now time.Time, seed accounts.Account) (*Service, *accounts.MemoryRepo) {
	t.Helper()
	repo := accounts.NewMemoryRepo()
	repo.Put(seed)
	svc := NewService(repo)
	svc.Now = func() time.Time { return now }
	return svc, repo
}

func TestCurrentResetsLapsedWindow(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, repo := newTestService(t, now, accounts.Account{
		ID:            "u-1",
		Subscription:  accounts.PlanFree,
		UsageLimit:    10,
		UsageCount:    10,
		LastResetDate: now.Add(-31 * 24 * time.Hour),
	})

	account, err := svc.Check(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("expected reset to allow request, got %v", err)
	}
	if account.UsageCount != 0 || !account.LastResetDate.Equal(now) {
		t.Fatalf("expected fresh window, got %+v", account)
	}
	stored, _ := repo.GetByID(context.Background(), "u-1")
	if stored.UsageCount != 0 || !stored.LastResetDate.Equal(now) {
		t.Fatalf("expected reset to be persisted, got %+v", stored)
	}

	// A second read inside the new window is a no-op.
	if err := svc.Increment(context.Background(), "u-1"); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	again, err := svc.Current(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if again.UsageCount != 1 {
		t.Fatalf("expected counter to survive second read, got %d", again.UsageCount)
	}
}

func TestCheckKeepsWindowAtExactlyThirtyDays(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, now, accounts.Account{
		ID:            "u-1",
		Subscription:  accounts.PlanFree,
		UsageLimit:    10,
		UsageCount:    10,
		LastResetDate: now.Add(-Window),
	})
	if _, err := svc.Check(context.Background(), "u-1"); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected quota exceeded, got %v", err)
	}
}

func TestCheckQuotaBoundary(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, now, accounts.Account{
		ID:            "u-1",
		Subscription:  accounts.PlanStarter,
		UsageLimit:    50,
		UsageCount:    49,
		LastResetDate: now.Add(-time.Hour),
	})

	account, err := svc.Check(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("expected request at count 49 to pass, got %v", err)
	}
	if account.Remaining() != 1 {
		t.Fatalf("expected 1 remaining, got %d", account.Remaining())
	}
	if err := svc.Increment(context.Background(), "u-1"); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	account, err = svc.Check(context.Background(), "u-1")
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected quota exceeded at limit, got %v", err)
	}
	if account.UsageCount != 50 || account.UsageLimit != 50 {
		t.Fatalf("expected counters on quota error, got %+v", account)
	}
}

func TestCheckUnlimitedPlan(t *testing.T) {
	now := time.Now().UTC()
	svc, _ := newTestService(t, now, accounts.Account{
		ID:            "u-1",
		Subscription:  accounts.PlanEnterprise,
		UsageLimit:    accounts.Unlimited,
		UsageCount:    10000,
		LastResetDate: now,
	})
	if _, err := svc.Check(context.Background(), "u-1"); err != nil {
		t.Fatalf("expected unlimited plan to pass, got %v", err)
	}
}

func TestCheckUnknownAccount(t *testing.T) {
	svc, _ := newTestService(t, time.Now(), accounts.Account{ID: "other"})
	if _, err := svc.Check(context.Background(), "missing"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if err := svc.Increment(context.Background(), "missing"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound from Increment, got %v", err)
	}
}

type racingRepo struct {
	*accounts.MemoryRepo
}

// ResetUsageWindow simulates another request having reset first.
func (r racingRepo) ResetUsageWindow(ctx context.Context, accountID string, staleBefore, now time.Time) (bool, error) {
	if _, err := r.MemoryRepo.ResetUsageWindow(ctx, accountID, staleBefore, now); err != nil {
		return false, err
	}
	if err := r.MemoryRepo.IncrementUsage(ctx, accountID); err != nil {
		return false, err
	}
	return false, nil
}

func TestCurrentReloadsWhenConcurrentResetWins(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	mem := accounts.NewMemoryRepo()
	mem.Put(accounts.Account{
		ID:            "u-1",
		Subscription:  accounts.PlanFree,
		UsageLimit:    10,
		UsageCount:    7,
		LastResetDate: now.Add(-40 * 24 * time.Hour),
	})
	svc := NewService(racingRepo{mem})
	svc.Now = func() time.Time { return now }

	account, err := svc.Current(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if account.UsageCount != 1 {
		t.Fatalf("expected reloaded counter 1, got %d", account.UsageCount)
	}
}

func TestResetForcesNewWindow(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, now, accounts.Account{
		ID:            "u-1",
		Subscription:  accounts.PlanFree,
		UsageLimit:    10,
		UsageCount:    4,
		LastResetDate: now.Add(-time.Hour),
	})
	account, err := svc.Reset(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if account.UsageCount != 0 || !account.LastResetDate.Equal(now) {
		t.Fatalf("expected forced reset, got %+v", account)
	}
	if got := NextReset(account); !got.Equal(now.Add(Window)) {
		t.Fatalf("unexpected next reset %v", got)
	}
}
