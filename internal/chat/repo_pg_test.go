package chat

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"kamiscan-backend/internal/summaries"
)

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func sessionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "account_id", "record_id", "title", "metadata", "created_at", "last_activity"})
}

func TestPGRepoCreateSessionReturnsExistingOnConflict(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	mock.ExpectQuery(`INSERT INTO chat_sessions .* ON CONFLICT \(account_id, record_id\)`).
		WithArgs("s-new", "google:1", "rec-1", "Chat: a.pdf", []byte("{}"), now, now).
		WillReturnRows(sessionRows().AddRow("s-old", "google:1", "rec-1", "Chat: a.pdf", []byte(`{"pdfTitle":"a.pdf"}`), now, now))

	session, err := repo.CreateSession(context.Background(), Session{
		ID:           "s-new",
		AccountID:    "google:1",
		RecordID:     "rec-1",
		Title:        "Chat: a.pdf",
		CreatedAt:    now,
		LastActivity: now,
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if session.ID != "s-old" || session.Metadata["pdfTitle"] != "a.pdf" {
		t.Fatalf("unexpected session %+v", session)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetSessionNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT id, account_id, record_id").WithArgs("s-1", "google:2").WillReturnError(sql.ErrNoRows)

	if _, err := repo.GetSession(context.Background(), "google:2", "s-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestPGRepoAppendMessagesIsTransactional(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO chat_messages").
		WithArgs("m-1", "s-1", "google:1", "user", "hi", []byte("[]"), []byte("[]"), []byte("{}"), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO chat_messages").
		WithArgs("m-2", "s-1", "google:1", "assistant", "hello", sqlmock.AnyArg(), []byte(`["more?"]`), sqlmock.AnyArg(), now).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.AppendMessages(context.Background(),
		Message{ID: "m-1", SessionID: "s-1", AccountID: "google:1", Role: RoleUser, Content: "hi", CreatedAt: now},
		Message{
			ID: "m-2", SessionID: "s-1", AccountID: "google:1", Role: RoleAssistant, Content: "hello",
			Citations:   []summaries.Citation{{Page: 1, Text: "q", Relevance: 0.5}},
			Suggestions: []string{"more?"},
			Metadata:    map[string]any{"confidence": 0.9},
			CreatedAt:   now,
		},
	)
	if err == nil {
		t.Fatalf("expected insert failure")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoRecentMessagesDecodesJSON(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "session_id", "account_id", "seq", "role", "content", "citations", "suggestions", "metadata", "created_at"}).
		AddRow("m-1", "s-1", "google:1", int64(7), "user", "hi", []byte("[]"), []byte("[]"), []byte(`{"searchMode":false}`), now).
		AddRow("m-2", "s-1", "google:1", int64(8), "assistant", "hello", []byte(`[{"page":2,"text":"q","relevance":0.5}]`), []byte(`["next?"]`), []byte(`{}`), now)
	mock.ExpectQuery(`ORDER BY seq DESC\s+LIMIT \$2`).WithArgs("s-1", 50).WillReturnRows(rows)

	messages, err := repo.RecentMessages(context.Background(), "s-1", 50)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(messages) != 2 || messages[1].Role != RoleAssistant || messages[1].Citations[0].Page != 2 || messages[1].Suggestions[0] != "next?" {
		t.Fatalf("unexpected messages %+v", messages)
	}
	if messages[0].Seq != 7 {
		t.Fatalf("unexpected seq %d", messages[0].Seq)
	}
}

func TestPGRepoCountSessions(t *testing.T) {
	repo, mock := newMockRepo(t)
	since := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM chat_sessions").
		WithArgs("google:1", since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountSessions(context.Background(), Filter{AccountID: "google:1", Since: since})
	if err != nil || count != 4 {
		t.Fatalf("CountSessions = %d, %v", count, err)
	}
}
