package chat

import (
	"context"
	"time"
)

// Repo persists chat sessions and their messages.
type Repo interface {
	// CreateSession returns the existing session when one is already open for
	// the same account and record.
	CreateSession(ctx context.Context, session Session) (Session, error)
	FindSession(ctx context.Context, accountID, recordID string) (Session, error)
	GetSession(ctx context.Context, accountID, sessionID string) (Session, error)
	TouchSession(ctx context.Context, sessionID string, at time.Time) error
	// AppendMessages stores messages atomically in the given order.
	AppendMessages(ctx context.Context, messages ...Message) error
	// RecentMessages returns up to limit of the newest messages, oldest first.
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]Message, error)
	ListSessions(ctx context.Context, filter Filter, limit int) ([]Session, error)
	CountSessions(ctx context.Context, filter Filter) (int, error)
	CountMessages(ctx context.Context, filter Filter) (int, error)
}
