package accounts

import (
	"context"
	"errors"
	"strings"
)

type Service struct {
	Repo       Repo
	AdminEmail string
}

func NewService(repo Repo, adminEmail string) *Service {
	return &Service{Repo: repo, AdminEmail: strings.ToLower(strings.TrimSpace(adminEmail))}
}

// UpsertFromAuth persists the identity returned by the OAuth provider.
// New accounts start on the free plan with a fresh usage window.
func (s *Service) UpsertFromAuth(ctx context.Context, account Account) (Account, error) {
	if s == nil || s.Repo == nil {
		return Account{}, errors.New("accounts service not configured")
	}
	if strings.TrimSpace(account.ID) == "" || strings.TrimSpace(account.Email) == "" {
		return Account{}, errors.New("account id and email are required")
	}
	account.Email = strings.ToLower(strings.TrimSpace(account.Email))
	account.IsAdmin = s.IsAdminEmail(account.Email)
	if account.Subscription == "" {
		account.Subscription = PlanFree
		account.UsageLimit, _ = LimitFor(PlanFree)
	}
	return s.Repo.Upsert(ctx, account)
}

func (s *Service) GetByID(ctx context.Context, accountID string) (Account, error) {
	if s == nil || s.Repo == nil {
		return Account{}, errors.New("accounts service not configured")
	}
	if strings.TrimSpace(accountID) == "" {
		return Account{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, accountID)
}

// IsAdminEmail reports whether email matches the configured administrator.
func (s *Service) IsAdminEmail(email string) bool {
	if s == nil || s.AdminEmail == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(email), s.AdminEmail)
}
