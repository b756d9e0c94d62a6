package chat

import (
	"time"

	"kamiscan-backend/internal/summaries"
)

// Role is the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Session ties an ordered conversation to one account and one processing record.
type Session struct {
	ID           string         `json:"id"`
	AccountID    string         `json:"-"`
	RecordID     string         `json:"pdfId"`
	Title        string         `json:"title"`
	Metadata     map[string]any `json:"-"`
	CreatedAt    time.Time      `json:"createdAt"`
	LastActivity time.Time      `json:"lastActivity"`
}

// Message is immutable once stored. Messages of a session are ordered by Seq.
type Message struct {
	ID          string               `json:"id"`
	SessionID   string               `json:"-"`
	AccountID   string               `json:"-"`
	Seq         int64                `json:"-"`
	Role        Role                 `json:"role"`
	Content     string               `json:"content"`
	Citations   []summaries.Citation `json:"citations"`
	Suggestions []string             `json:"suggestions"`
	Metadata    map[string]any       `json:"metadata"`
	CreatedAt   time.Time            `json:"timestamp"`
}

// SessionView is the body of POST /ai/chat-session.
type SessionView struct {
	Session  SessionSummary `json:"session"`
	Messages []Message      `json:"messages"`
}

// SessionSummary is the session header returned with its history.
type SessionSummary struct {
	ID           string    `json:"id"`
	PDFID        string    `json:"pdfId"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"createdAt"`
	MessageCount int       `json:"messageCount"`
	LastActivity time.Time `json:"lastActivity"`
}

// Turn is a prior exchange sent by the client as conversational context.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is the body of POST /ai/chat-with-pdf.
type Request struct {
	RecordID   string `json:"pdfId"`
	SessionID  string `json:"sessionId"`
	Message    string `json:"message"`
	History    []Turn `json:"history"`
	SearchMode bool   `json:"searchMode"`
}

// Event types relayed on the chat stream.
const (
	EventMetadata    = "metadata"
	EventContent     = "content"
	EventCitations   = "citations"
	EventSuggestions = "suggestions"
	EventError       = "error"
)

// Event is one `data:` frame of the chat stream.
type Event struct {
	Type        string               `json:"type"`
	Content     string               `json:"content,omitempty"`
	Citations   []summaries.Citation `json:"citations,omitempty"`
	Suggestions []string             `json:"suggestions,omitempty"`
	Metadata    map[string]any       `json:"metadata,omitempty"`
	Error       string               `json:"error,omitempty"`
}

// Filter scopes session and message counts. An empty AccountID spans all accounts.
type Filter struct {
	AccountID string
	Since     time.Time
}
