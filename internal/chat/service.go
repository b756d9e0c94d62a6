package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"kamiscan-backend/internal/llm"
	"kamiscan-backend/internal/shared/metrics"
	"kamiscan-backend/internal/shared/telemetry"
	"kamiscan-backend/internal/summaries"
	"kamiscan-backend/internal/usage"
)

const (
	// HistoryLimit is the number of messages returned when a session is opened.
	HistoryLimit = 50
	// contextTurns is the number of prior turns included in a conversational prompt.
	contextTurns = 5

	streamFailedMessage = "Failed to process your message. Please try again."
)

// RecordSource loads the processing record a conversation is about.
type RecordSource interface {
	Get(ctx context.Context, accountID, recordID string) (summaries.Record, error)
}

// Sink receives stream events in order. A non-nil error aborts the turn.
type Sink func(Event) error

// Service runs chat sessions over previously stored summaries.
type Service struct {
	Repo    Repo
	Records RecordSource
	Usage   *usage.Service
	LLM     llm.Generator
	Now     func() time.Time
	NewID   func() string
}

// NewService constructs a Service.
func NewService(repo Repo, records RecordSource, usageSvc *usage.Service, generator llm.Generator) *Service {
	if generator == nil {
		generator = llm.PlaceholderGenerator{}
	}
	return &Service{
		Repo:    repo,
		Records: records,
		Usage:   usageSvc,
		LLM:     generator,
		Now:     func() time.Time { return time.Now().UTC() },
		NewID:   uuid.NewString,
	}
}

// OpenSession finds or creates the session for a record and returns it with
// its most recent messages, oldest first.
func (s *Service) OpenSession(ctx context.Context, accountID, recordID, title string) (SessionView, error) {
	recordID = strings.TrimSpace(recordID)
	title = strings.TrimSpace(title)
	if recordID == "" || title == "" {
		return SessionView{}, fmt.Errorf("%w: PDF ID and title are required", ErrInvalidInput)
	}
	if _, err := s.Records.Get(ctx, accountID, recordID); err != nil {
		return SessionView{}, err
	}

	session, err := s.session(ctx, accountID, recordID, "", title)
	if err != nil {
		return SessionView{}, err
	}
	messages, err := s.Repo.RecentMessages(ctx, session.ID, HistoryLimit)
	if err != nil {
		return SessionView{}, err
	}
	return SessionView{
		Session: SessionSummary{
			ID:           session.ID,
			PDFID:        session.RecordID,
			Title:        session.Title,
			CreatedAt:    session.CreatedAt,
			MessageCount: len(messages),
			LastActivity: session.LastActivity,
		},
		Messages: messages,
	}, nil
}

// Stream runs one chat turn. Errors returned before the first event reach the
// sink mean nothing was written. The user and assistant messages are stored
// and usage is charged only when the turn completes.
func (s *Service) Stream(ctx context.Context, accountID string, req Request, sink Sink) error {
	req.RecordID = strings.TrimSpace(req.RecordID)
	req.Message = strings.TrimSpace(req.Message)
	if req.RecordID == "" || req.Message == "" {
		return fmt.Errorf("%w: PDF ID and message are required", ErrInvalidInput)
	}
	if s.Usage != nil {
		if _, err := s.Usage.Check(ctx, accountID); err != nil {
			return err
		}
	}
	record, err := s.Records.Get(ctx, accountID, req.RecordID)
	if err != nil {
		return err
	}
	session, err := s.session(ctx, accountID, req.RecordID, req.SessionID, record.FileName)
	if err != nil {
		return err
	}
	history, err := s.history(ctx, session.ID, req.History)
	if err != nil {
		return err
	}

	stream, err := s.LLM.GenerateStream(ctx, llm.Request{Prompt: chatPrompt(req, record.Summary, history)})
	if err != nil {
		return err
	}
	metrics.IncChatStream()
	start := s.now()
	s.logStatus(ctx, "started", map[string]any{
		"user_id":    accountID,
		"session_id": session.ID,
		"record_id":  record.ID,
		"search":     req.SearchMode,
	})

	if err := sink(Event{Type: EventMetadata, Metadata: map[string]any{
		"model":      s.LLM.Model(),
		"searchMode": req.SearchMode,
		"startTime":  start.UnixMilli(),
	}}); err != nil {
		return s.abort(ctx, accountID, session.ID, err)
	}

	var full strings.Builder
	for done := false; !done; {
		select {
		case <-ctx.Done():
			return s.abort(ctx, accountID, session.ID, ctx.Err())
		case chunk, ok := <-stream:
			if !ok {
				done = true
				break
			}
			if err := ctx.Err(); err != nil {
				return s.abort(ctx, accountID, session.ID, err)
			}
			if chunk.Err != nil {
				return s.failStream(ctx, accountID, session.ID, chunk.Err, sink)
			}
			full.WriteString(chunk.Text)
			if err := sink(Event{Type: EventContent, Content: chunk.Text}); err != nil {
				return s.abort(ctx, accountID, session.ID, err)
			}
		}
	}
	// The producer closes the channel on cancellation too.
	if err := ctx.Err(); err != nil {
		return s.abort(ctx, accountID, session.ID, err)
	}

	answer := parseReply(full.String(), record.Summary)
	elapsed := s.now().Sub(start)
	if len(answer.Citations) > 0 {
		if err := sink(Event{Type: EventCitations, Citations: answer.Citations}); err != nil {
			return s.abort(ctx, accountID, session.ID, err)
		}
	}
	if len(answer.Suggestions) > 0 {
		if err := sink(Event{Type: EventSuggestions, Suggestions: answer.Suggestions}); err != nil {
			return s.abort(ctx, accountID, session.ID, err)
		}
	}
	if err := sink(Event{Type: EventMetadata, Metadata: map[string]any{
		"processingTime": elapsed.Milliseconds(),
		"confidence":     answer.Confidence,
		"tokensUsed":     estimateTokens(answer.Content),
	}}); err != nil {
		return s.abort(ctx, accountID, session.ID, err)
	}

	s.complete(ctx, accountID, session, req, answer, elapsed)
	return nil
}

// session resolves an explicit session id or finds or creates the record's session.
func (s *Service) session(ctx context.Context, accountID, recordID, sessionID, title string) (Session, error) {
	now := s.now()
	if sessionID != "" {
		session, err := s.Repo.GetSession(ctx, accountID, sessionID)
		if err != nil {
			return Session{}, err
		}
		if session.RecordID != recordID {
			return Session{}, ErrSessionNotFound
		}
		return session, nil
	}

	session, err := s.Repo.FindSession(ctx, accountID, recordID)
	if err == nil {
		if err := s.Repo.TouchSession(ctx, session.ID, now); err != nil {
			return Session{}, err
		}
		session.LastActivity = now
		return session, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return Session{}, err
	}
	return s.Repo.CreateSession(ctx, Session{
		ID:           s.NewID(),
		AccountID:    accountID,
		RecordID:     recordID,
		Title:        "Chat: " + title,
		Metadata:     map[string]any{"pdfTitle": title, "createdFrom": "web"},
		CreatedAt:    now,
		LastActivity: now,
	})
}

// history prefers the turns sent by the client and falls back to stored messages.
func (s *Service) history(ctx context.Context, sessionID string, turns []Turn) ([]Turn, error) {
	if len(turns) > 0 {
		if len(turns) > contextTurns {
			turns = turns[len(turns)-contextTurns:]
		}
		return turns, nil
	}
	stored, err := s.Repo.RecentMessages(ctx, sessionID, contextTurns)
	if err != nil {
		return nil, err
	}
	out := make([]Turn, 0, len(stored))
	for _, message := range stored {
		out = append(out, Turn{Role: message.Role, Content: message.Content})
	}
	return out, nil
}

func chatPrompt(req Request, documentSummary string, history []Turn) string {
	if req.SearchMode {
		return llm.RenderPrompt(llm.PromptChatSearch, map[string]string{
			"MESSAGE": req.Message,
			"SUMMARY": documentSummary,
		})
	}
	lines := make([]string, 0, len(history))
	for _, turn := range history {
		lines = append(lines, fmt.Sprintf("%s: %s", turn.Role, turn.Content))
	}
	return llm.RenderPrompt(llm.PromptChatConversation, map[string]string{
		"SUMMARY": documentSummary,
		"HISTORY": strings.Join(lines, "\n"),
		"MESSAGE": req.Message,
	})
}

// complete stores both messages, touches the session and charges one unit.
// Failures are logged and never reach the client.
func (s *Service) complete(ctx context.Context, accountID string, session Session, req Request, answer reply, elapsed time.Duration) {
	ctx = telemetry.Detached(ctx)
	now := s.now()
	user := Message{
		ID:        s.NewID(),
		SessionID: session.ID,
		AccountID: accountID,
		Role:      RoleUser,
		Content:   req.Message,
		Metadata:  map[string]any{"searchMode": req.SearchMode},
		CreatedAt: now,
	}
	assistant := Message{
		ID:          s.NewID(),
		SessionID:   session.ID,
		AccountID:   accountID,
		Role:        RoleAssistant,
		Content:     answer.Content,
		Citations:   answer.Citations,
		Suggestions: answer.Suggestions,
		Metadata: map[string]any{
			"confidence":     answer.Confidence,
			"processingTime": elapsed.Milliseconds(),
			"model":          s.LLM.Model(),
			"searchMode":     req.SearchMode,
			"structured":     answer.Structured,
			"userMessageId":  user.ID,
		},
		CreatedAt: now,
	}
	if err := s.Repo.AppendMessages(ctx, user, assistant); err != nil {
		s.ledgerFailed(ctx, accountID, session.ID, "messages", err)
	}
	if err := s.Repo.TouchSession(ctx, session.ID, now); err != nil {
		s.ledgerFailed(ctx, accountID, session.ID, "session", err)
	}
	if s.Usage != nil {
		if err := s.Usage.Increment(ctx, accountID); err != nil {
			s.ledgerFailed(ctx, accountID, session.ID, "increment", err)
		}
	}
	s.logStatus(ctx, "completed", map[string]any{
		"user_id":     accountID,
		"session_id":  session.ID,
		"duration_ms": elapsed.Milliseconds(),
		"structured":  answer.Structured,
	})
}

func (s *Service) abort(ctx context.Context, accountID, sessionID string, err error) error {
	metrics.IncChatAborted()
	s.logStatus(ctx, "aborted", map[string]any{
		"user_id":    accountID,
		"session_id": sessionID,
		"error":      telemetry.ErrorField(err),
	})
	return err
}

func (s *Service) failStream(ctx context.Context, accountID, sessionID string, cause error, sink Sink) error {
	s.logStatus(ctx, "failed", map[string]any{
		"user_id":    accountID,
		"session_id": sessionID,
		"error":      telemetry.ErrorField(cause),
	})
	_ = sink(Event{Type: EventError, Error: streamFailedMessage})
	return cause
}

func (s *Service) ledgerFailed(ctx context.Context, accountID, sessionID, step string, err error) {
	metrics.IncLedgerFailure()
	telemetry.Error("ledger.failed", map[string]any{
		"request_id": telemetry.RequestID(ctx),
		"user_id":    accountID,
		"session_id": sessionID,
		"step":       step,
		"error":      telemetry.ErrorField(err),
	})
}

func (s *Service) logStatus(ctx context.Context, status string, fields map[string]any) {
	fields["request_id"] = telemetry.RequestID(ctx)
	fields["status"] = status
	telemetry.Info("chat.status", fields)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}
