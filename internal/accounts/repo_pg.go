package accounts

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type PGRepo struct {
	DB *sql.DB
}

const accountColumns = `id, email, name, image, is_admin, subscription, usage_count, usage_limit, last_reset_date, created_at, updated_at`

func (r *PGRepo) Upsert(ctx context.Context, account Account) (Account, error) {
	query := `
INSERT INTO accounts (id, email, name, image, is_admin, subscription, usage_count, usage_limit, last_reset_date, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, 0, $7, now(), now(), now())
ON CONFLICT (id) DO UPDATE SET
  email = EXCLUDED.email,
  name = EXCLUDED.name,
  image = EXCLUDED.image,
  is_admin = EXCLUDED.is_admin,
  updated_at = now()
RETURNING ` + accountColumns
	row := r.DB.QueryRowContext(ctx, query,
		account.ID,
		account.Email,
		nullableString(account.Name),
		nullableString(account.Image),
		account.IsAdmin,
		account.Subscription,
		account.UsageLimit,
	)
	return scanAccount(row)
}

func (r *PGRepo) GetByID(ctx context.Context, accountID string) (Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 LIMIT 1`
	account, err := scanAccount(r.DB.QueryRowContext(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	return account, nil
}

func (r *PGRepo) ResetUsageWindow(ctx context.Context, accountID string, staleBefore, now time.Time) (bool, error) {
	const query = `
UPDATE accounts
SET usage_count = 0, last_reset_date = $2, updated_at = $2
WHERE id = $1 AND last_reset_date < $3`
	res, err := r.DB.ExecContext(ctx, query, accountID, now, staleBefore)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PGRepo) IncrementUsage(ctx context.Context, accountID string) error {
	const query = `UPDATE accounts SET usage_count = usage_count + 1, updated_at = now() WHERE id = $1`
	return execOne(ctx, r.DB, query, accountID)
}

func (r *PGRepo) UpdatePlan(ctx context.Context, accountID, plan string, limit int, now time.Time) error {
	const query = `
UPDATE accounts
SET subscription = $2, usage_limit = $3, usage_count = 0, last_reset_date = $4, updated_at = $4
WHERE id = $1`
	return execOne(ctx, r.DB, query, accountID, plan, limit, now)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (Account, error) {
	var account Account
	var name sql.NullString
	var image sql.NullString
	err := row.Scan(
		&account.ID,
		&account.Email,
		&name,
		&image,
		&account.IsAdmin,
		&account.Subscription,
		&account.UsageCount,
		&account.UsageLimit,
		&account.LastResetDate,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return Account{}, err
	}
	account.Name = name.String
	account.Image = image.String
	return account, nil
}

func execOne(ctx context.Context, db *sql.DB, query string, args ...any) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
