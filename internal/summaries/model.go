package summaries

import (
	"time"

	"kamiscan-backend/internal/extract"
)

// Record is the append-only audit entry for one completed summarization.
type Record struct {
	ID        string         `json:"id"`
	AccountID string         `json:"-"`
	FileName  string         `json:"fileName"`
	FileSize  int64          `json:"fileSize"`
	Summary   string         `json:"summary"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Metadata keys written on every record.
const (
	MetaProcessingTime = "processingTime"
	MetaParseMethod    = "parseMethod"
	MetaConfidence     = "confidence"
	MetaPages          = "pageCount"
	MetaTextLength     = "textLength"
	MetaTruncated      = "truncated"
	MetaModel          = "model"
	MetaMode           = "mode"
)

// Upload is the ephemeral document handed to the pipeline. It is never persisted.
type Upload struct {
	FileName string
	MimeType string
	Size     int64
	Data     []byte
}

// Result is the body of POST /summarize.
type Result struct {
	ID               string    `json:"id,omitempty"`
	Summary          string    `json:"summary"`
	OriginalFileName string    `json:"originalFileName"`
	FileSize         int64     `json:"fileSize"`
	TextLength       int       `json:"textLength"`
	ParseMethod      string    `json:"parseMethod"`
	ProcessedAt      time.Time `json:"processedAt"`
	ProcessingTime   int64     `json:"processingTime,omitempty"`
	AIPowered        bool      `json:"aiPowered"`
	Truncated        bool      `json:"truncated,omitempty"`
}

// Options tune POST /ai/advanced-process.
type Options struct {
	Type         string   `json:"type"`
	Language     string   `json:"language,omitempty"`
	OutputFormat string   `json:"outputFormat,omitempty"`
	Complexity   string   `json:"complexity,omitempty"`
	FocusAreas   []string `json:"focusAreas,omitempty"`
}

var (
	processingTypes = map[string]bool{"summary": true, "qa": true, "translate": true, "analyze": true, "extract": true, "compare": true}
	outputFormats   = map[string]bool{"text": true, "bullets": true, "outline": true, "mindmap": true, "flashcards": true}
	complexities    = map[string]bool{"simple": true, "detailed": true, "expert": true}
)

// Citation links a statement back to a page of the source.
type Citation struct {
	Page      int     `json:"page"`
	Text      string  `json:"text"`
	Relevance float64 `json:"relevance"`
	Context   string  `json:"context,omitempty"`
}

// AdvancedResult is the structured output of POST /ai/advanced-process.
type AdvancedResult struct {
	ID          string           `json:"id"`
	Summary     string           `json:"summary"`
	KeyPoints   []string         `json:"keyPoints"`
	Sentiment   string           `json:"sentiment"`
	ReadingTime int              `json:"readingTime"`
	WordCount   int              `json:"wordCount"`
	Topics      []string         `json:"topics"`
	Confidence  int              `json:"confidence"`
	Citations   []Citation       `json:"citations"`
	Metadata    AdvancedMetadata `json:"metadata"`
}

// AdvancedMetadata describes how an AdvancedResult was produced.
type AdvancedMetadata struct {
	FileName       string         `json:"fileName"`
	ProcessingTime int64          `json:"processingTime"`
	WordCount      int            `json:"wordCount"`
	PageCount      int            `json:"pageCount"`
	ParseMethod    extract.Method `json:"parseMethod"`
	AIPowered      bool           `json:"aiPowered"`
	Options        Options        `json:"options"`
}
