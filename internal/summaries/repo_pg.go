package summaries

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const recordColumns = `id, account_id, file_name, file_size, summary, metadata, created_at`

func (r *PGRepo) Create(ctx context.Context, record Record) error {
	const query = `
INSERT INTO processing_records (id, account_id, file_name, file_size, summary, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	metadata, err := marshalJSONB(record.Metadata)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		record.ID,
		record.AccountID,
		record.FileName,
		record.FileSize,
		record.Summary,
		metadata,
		record.CreatedAt,
	)
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, accountID, recordID string) (Record, error) {
	query := `SELECT ` + recordColumns + ` FROM processing_records WHERE id = $1 AND account_id = $2 LIMIT 1`
	record, err := scanRecord(r.DB.QueryRowContext(ctx, query, recordID, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return record, nil
}

func (r *PGRepo) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]Record, error) {
	query := `SELECT ` + recordColumns + `
FROM processing_records
WHERE account_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (r *PGRepo) ListRecent(ctx context.Context, filter Filter, limit int) ([]Record, error) {
	query := `SELECT ` + recordColumns + `
FROM processing_records
WHERE ($1 = '' OR account_id = $1) AND created_at >= $2
ORDER BY created_at DESC
LIMIT $3`
	rows, err := r.DB.QueryContext(ctx, query, filter.AccountID, filter.Since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (r *PGRepo) Aggregate(ctx context.Context, filter Filter) (Aggregate, error) {
	const totals = `
SELECT count(*),
       COALESCE(avg((metadata->>'processingTime')::float8), 0),
       COALESCE(avg((metadata->>'confidence')::float8), 0)
FROM processing_records
WHERE ($1 = '' OR account_id = $1) AND created_at >= $2`
	agg := Aggregate{Daily: map[string]int{}}
	if err := r.DB.QueryRowContext(ctx, totals, filter.AccountID, filter.Since).
		Scan(&agg.Count, &agg.AvgProcessingMs, &agg.AvgConfidence); err != nil {
		return Aggregate{}, fmt.Errorf("aggregate records: %w", err)
	}

	const daily = `
SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, count(*)
FROM processing_records
WHERE ($1 = '' OR account_id = $1) AND created_at >= $2
GROUP BY day`
	rows, err := r.DB.QueryContext(ctx, daily, filter.AccountID, filter.Since)
	if err != nil {
		return Aggregate{}, fmt.Errorf("daily records: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var day string
		var count int
		if err := rows.Scan(&day, &count); err != nil {
			return Aggregate{}, err
		}
		agg.Daily[day] = count
	}
	return agg, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var record Record
	var metadata []byte
	if err := row.Scan(
		&record.ID,
		&record.AccountID,
		&record.FileName,
		&record.FileSize,
		&record.Summary,
		&metadata,
		&record.CreatedAt,
	); err != nil {
		return Record{}, err
	}
	record.Metadata = map[string]any{}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &record.Metadata); err != nil {
			return Record{}, fmt.Errorf("decode record metadata: %w", err)
		}
	}
	return record, nil
}

func marshalJSONB(value map[string]any) ([]byte, error) {
	if value == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(value)
}
