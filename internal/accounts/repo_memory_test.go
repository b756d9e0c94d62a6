package accounts

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryRepoResetUsageWindowIsIdempotent(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	now := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	repo.Put(Account{ID: "a1", Email: "a@x.io", Subscription: PlanFree, UsageLimit: 10, UsageCount: 10, LastResetDate: now.AddDate(0, 0, -31)})

	staleBefore := now.Add(-30 * 24 * time.Hour)
	reset, err := repo.ResetUsageWindow(ctx, "a1", staleBefore, now)
	if err != nil || !reset {
		t.Fatalf("expected reset, got %v %v", reset, err)
	}
	reset, err = repo.ResetUsageWindow(ctx, "a1", staleBefore, now)
	if err != nil || reset {
		t.Fatalf("expected no-op second reset, got %v %v", reset, err)
	}
	account, _ := repo.GetByID(ctx, "a1")
	if account.UsageCount != 0 || !account.LastResetDate.Equal(now) {
		t.Fatalf("unexpected account after reset: %+v", account)
	}
}

func TestMemoryRepoUpsertKeepsCounters(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	if _, err := repo.Upsert(ctx, Account{ID: "a1", Email: "a@x.io", Subscription: PlanFree, UsageLimit: 10}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := repo.IncrementUsage(ctx, "a1"); err != nil {
		t.Fatalf("IncrementUsage: %v", err)
	}
	updated, err := repo.Upsert(ctx, Account{ID: "a1", Email: "new@x.io", Name: "New"})
	if err != nil {
		t.Fatalf("Upsert again: %v", err)
	}
	if updated.UsageCount != 1 || updated.Subscription != PlanFree || updated.Email != "new@x.io" {
		t.Fatalf("unexpected account: %+v", updated)
	}
}

func TestMemoryRepoMissingAccount(t *testing.T) {
	repo := NewMemoryRepo()
	if err := repo.IncrementUsage(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.UpdatePlan(context.Background(), "ghost", PlanPro, 500, time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
