package accounts

import (
	"context"
	"sync"
	"time"
)

type MemoryRepo struct {
	mu       sync.RWMutex
	accounts map[string]Account
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{accounts: make(map[string]Account)}
}

func (r *MemoryRepo) Upsert(ctx context.Context, account Account) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	existing, ok := r.accounts[account.ID]
	if !ok {
		account.CreatedAt = now
		account.UpdatedAt = now
		if account.LastResetDate.IsZero() {
			account.LastResetDate = now
		}
		r.accounts[account.ID] = account
		return account, nil
	}
	existing.Email = account.Email
	existing.Name = account.Name
	existing.Image = account.Image
	existing.IsAdmin = account.IsAdmin
	existing.UpdatedAt = now
	r.accounts[account.ID] = existing
	return existing, nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, accountID string) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.accounts[accountID]
	if !ok {
		return Account{}, ErrNotFound
	}
	return account, nil
}

func (r *MemoryRepo) ResetUsageWindow(ctx context.Context, accountID string, staleBefore, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[accountID]
	if !ok {
		return false, ErrNotFound
	}
	if !account.LastResetDate.Before(staleBefore) {
		return false, nil
	}
	account.UsageCount = 0
	account.LastResetDate = now
	account.UpdatedAt = now
	r.accounts[accountID] = account
	return true, nil
}

func (r *MemoryRepo) IncrementUsage(ctx context.Context, accountID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[accountID]
	if !ok {
		return ErrNotFound
	}
	account.UsageCount++
	account.UpdatedAt = time.Now().UTC()
	r.accounts[accountID] = account
	return nil
}

func (r *MemoryRepo) UpdatePlan(ctx context.Context, accountID, plan string, limit int, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[accountID]
	if !ok {
		return ErrNotFound
	}
	account.Subscription = plan
	account.UsageLimit = limit
	account.UsageCount = 0
	account.LastResetDate = now
	account.UpdatedAt = now
	r.accounts[accountID] = account
	return nil
}

// Put replaces an account wholesale. Tests use it to seed counters and reset dates.
func (r *MemoryRepo) Put(account Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.ID] = account
}
