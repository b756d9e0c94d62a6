package chat

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores sessions and messages in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]Session
	messages map[string][]Message
	seq      int64
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		sessions: make(map[string]Session),
		messages: make(map[string][]Message),
	}
}

func (r *MemoryRepo) CreateSession(ctx context.Context, session Session) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.sessions {
		if existing.AccountID == session.AccountID && existing.RecordID == session.RecordID {
			return existing, nil
		}
	}
	r.sessions[session.ID] = session
	return session, nil
}

func (r *MemoryRepo) FindSession(ctx context.Context, accountID, recordID string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, session := range r.sessions {
		if session.AccountID == accountID && session.RecordID == recordID {
			return session, nil
		}
	}
	return Session{}, ErrSessionNotFound
}

func (r *MemoryRepo) GetSession(ctx context.Context, accountID, sessionID string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[sessionID]
	if !ok || session.AccountID != accountID {
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}

func (r *MemoryRepo) TouchSession(ctx context.Context, sessionID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	session.LastActivity = at
	r.sessions[sessionID] = session
	return nil
}

func (r *MemoryRepo) AppendMessages(ctx context.Context, messages ...Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, message := range messages {
		if _, ok := r.sessions[message.SessionID]; !ok {
			return ErrSessionNotFound
		}
	}
	for _, message := range messages {
		r.seq++
		message.Seq = r.seq
		r.messages[message.SessionID] = append(r.messages[message.SessionID], message)
	}
	return nil
}

func (r *MemoryRepo) RecentMessages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := r.messages[sessionID]
	start := 0
	if limit > 0 && len(all) > limit {
		start = len(all) - limit
	}
	out := make([]Message, len(all)-start)
	copy(out, all[start:])
	return out, nil
}

// ListSessions returns sessions by most recent activity first.
func (r *MemoryRepo) ListSessions(ctx context.Context, filter Filter, limit int) ([]Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		if matches(filter, session.AccountID, session.CreatedAt) {
			out = append(out, session)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) CountSessions(ctx context.Context, filter Filter) (int, error) {
	sessions, err := r.ListSessions(ctx, filter, 0)
	return len(sessions), err
}

func (r *MemoryRepo) CountMessages(ctx context.Context, filter Filter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, messages := range r.messages {
		for _, message := range messages {
			if matches(filter, message.AccountID, message.CreatedAt) {
				count++
			}
		}
	}
	return count, nil
}

func matches(filter Filter, accountID string, createdAt time.Time) bool {
	if filter.AccountID != "" && accountID != filter.AccountID {
		return false
	}
	return filter.Since.IsZero() || !createdAt.Before(filter.Since)
}
