package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kamiscan-backend/internal/shared/storage/db"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const (
	sessionColumns = `id, account_id, record_id, title, metadata, created_at, last_activity`
	messageColumns = `id, session_id, account_id, seq, role, content, citations, suggestions, metadata, created_at`
)

func (r *PGRepo) CreateSession(ctx context.Context, session Session) (Session, error) {
	metadata, err := marshalJSON(session.Metadata, "{}")
	if err != nil {
		return Session{}, err
	}
	// The no-op update makes RETURNING yield the existing row on conflict.
	query := `
INSERT INTO chat_sessions (id, account_id, record_id, title, metadata, created_at, last_activity)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (account_id, record_id) DO UPDATE SET last_activity = chat_sessions.last_activity
RETURNING ` + sessionColumns
	row := r.DB.QueryRowContext(ctx, query,
		session.ID,
		session.AccountID,
		session.RecordID,
		session.Title,
		metadata,
		session.CreatedAt,
		session.LastActivity,
	)
	return scanSession(row)
}

func (r *PGRepo) FindSession(ctx context.Context, accountID, recordID string) (Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM chat_sessions WHERE account_id = $1 AND record_id = $2 LIMIT 1`
	return notFound(scanSession(r.DB.QueryRowContext(ctx, query, accountID, recordID)))
}

func (r *PGRepo) GetSession(ctx context.Context, accountID, sessionID string) (Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM chat_sessions WHERE id = $1 AND account_id = $2 LIMIT 1`
	return notFound(scanSession(r.DB.QueryRowContext(ctx, query, sessionID, accountID)))
}

func (r *PGRepo) TouchSession(ctx context.Context, sessionID string, at time.Time) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE chat_sessions SET last_activity = $2 WHERE id = $1`, sessionID, at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *PGRepo) AppendMessages(ctx context.Context, messages ...Message) error {
	const query = `
INSERT INTO chat_messages (id, session_id, account_id, role, content, citations, suggestions, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	return db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		for _, message := range messages {
			citations, err := marshalJSON(message.Citations, "[]")
			if err != nil {
				return err
			}
			suggestions, err := marshalJSON(message.Suggestions, "[]")
			if err != nil {
				return err
			}
			metadata, err := marshalJSON(message.Metadata, "{}")
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, query,
				message.ID,
				message.SessionID,
				message.AccountID,
				string(message.Role),
				message.Content,
				citations,
				suggestions,
				metadata,
				message.CreatedAt,
			); err != nil {
				return fmt.Errorf("insert chat message: %w", err)
			}
		}
		return nil
	})
}

func (r *PGRepo) RecentMessages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	query := `
SELECT ` + messageColumns + ` FROM (
  SELECT ` + messageColumns + ` FROM chat_messages
  WHERE session_id = $1
  ORDER BY seq DESC
  LIMIT $2
) recent
ORDER BY seq ASC`
	rows, err := r.DB.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, rows.Err()
}

func (r *PGRepo) ListSessions(ctx context.Context, filter Filter, limit int) ([]Session, error) {
	query := `SELECT ` + sessionColumns + `
FROM chat_sessions
WHERE ($1 = '' OR account_id = $1) AND created_at >= $2
ORDER BY last_activity DESC
LIMIT $3`
	rows, err := r.DB.QueryContext(ctx, query, filter.AccountID, filter.Since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (r *PGRepo) CountSessions(ctx context.Context, filter Filter) (int, error) {
	const query = `SELECT count(*) FROM chat_sessions WHERE ($1 = '' OR account_id = $1) AND created_at >= $2`
	var count int
	err := r.DB.QueryRowContext(ctx, query, filter.AccountID, filter.Since).Scan(&count)
	return count, err
}

func (r *PGRepo) CountMessages(ctx context.Context, filter Filter) (int, error) {
	const query = `SELECT count(*) FROM chat_messages WHERE ($1 = '' OR account_id = $1) AND created_at >= $2`
	var count int
	err := r.DB.QueryRowContext(ctx, query, filter.AccountID, filter.Since).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var session Session
	var metadata []byte
	if err := row.Scan(
		&session.ID,
		&session.AccountID,
		&session.RecordID,
		&session.Title,
		&metadata,
		&session.CreatedAt,
		&session.LastActivity,
	); err != nil {
		return Session{}, err
	}
	session.Metadata = map[string]any{}
	if err := unmarshalJSON(metadata, &session.Metadata); err != nil {
		return Session{}, fmt.Errorf("decode session metadata: %w", err)
	}
	return session, nil
}

func scanMessage(row rowScanner) (Message, error) {
	var message Message
	var role string
	var citations, suggestions, metadata []byte
	if err := row.Scan(
		&message.ID,
		&message.SessionID,
		&message.AccountID,
		&message.Seq,
		&role,
		&message.Content,
		&citations,
		&suggestions,
		&metadata,
		&message.CreatedAt,
	); err != nil {
		return Message{}, err
	}
	message.Role = Role(role)
	if err := unmarshalJSON(citations, &message.Citations); err != nil {
		return Message{}, fmt.Errorf("decode message citations: %w", err)
	}
	if err := unmarshalJSON(suggestions, &message.Suggestions); err != nil {
		return Message{}, fmt.Errorf("decode message suggestions: %w", err)
	}
	if err := unmarshalJSON(metadata, &message.Metadata); err != nil {
		return Message{}, fmt.Errorf("decode message metadata: %w", err)
	}
	return message, nil
}

func notFound(session Session, err error) (Session, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	return session, err
}

func marshalJSON(value any, empty string) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return []byte(empty), nil
	}
	return data, nil
}

func unmarshalJSON(data []byte, dest any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}
