package billing

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const paymentColumns = `id, account_id, order_id, payment_id, plan, amount, currency, status, created_at, updated_at`

func (r *PGRepo) Create(ctx context.Context, payment Payment) error {
	const query = `
INSERT INTO payments (id, account_id, order_id, plan, amount, currency, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`
	_, err := r.DB.ExecContext(ctx, query,
		payment.ID,
		payment.AccountID,
		payment.OrderID,
		payment.Plan,
		payment.Amount,
		payment.Currency,
		payment.Status,
		payment.CreatedAt,
	)
	return err
}

func (r *PGRepo) GetByOrderID(ctx context.Context, accountID, orderID string) (Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1 AND account_id = $2 LIMIT 1`
	var payment Payment
	var paymentID sql.NullString
	err := r.DB.QueryRowContext(ctx, query, orderID, accountID).Scan(
		&payment.ID,
		&payment.AccountID,
		&payment.OrderID,
		&paymentID,
		&payment.Plan,
		&payment.Amount,
		&payment.Currency,
		&payment.Status,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Payment{}, ErrPaymentNotFound
		}
		return Payment{}, err
	}
	payment.PaymentID = paymentID.String
	return payment, nil
}

func (r *PGRepo) MarkCompleted(ctx context.Context, orderID, paymentID string, at time.Time) error {
	const query = `
UPDATE payments
SET status = 'completed', payment_id = $2, updated_at = $3
WHERE order_id = $1 AND status <> 'completed'`
	_, err := r.DB.ExecContext(ctx, query, orderID, paymentID, at)
	return err
}
