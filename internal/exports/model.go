package exports

import (
	"errors"
	"time"
)

var (
	ErrInvalidInput = errors.New("invalid export request")
	ErrNotFound     = errors.New("export not found")
)

// Content is the document being exported.
type Content struct {
	Title     string         `json:"title"`
	Summary   string         `json:"summary"`
	KeyPoints []string       `json:"keyPoints"`
	Metadata  map[string]any `json:"metadata"`
}

// Request is the body of POST /export.
type Request struct {
	Format   string  `json:"format"`
	Template string  `json:"template"`
	Content  Content `json:"content"`
}

// Result describes a stored export.
type Result struct {
	Success   bool      `json:"success"`
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	Format    string    `json:"format"`
	Template  string    `json:"template"`
	Size      int64     `json:"size"`
	Timestamp time.Time `json:"timestamp"`
}
