package summaries

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"kamiscan-backend/internal/extract"
	"kamiscan-backend/internal/llm"
	"kamiscan-backend/internal/shared/metrics"
	"kamiscan-backend/internal/shared/telemetry"
	"kamiscan-backend/internal/usage"
)

const (
	// minContentChars is the normalized length below which a document is too sparse to summarize.
	minContentChars = 10

	systemPrompt = "You are KamiScan, an assistant that summarizes documents accurately and concisely. Never invent facts that are not in the document."
)

// Service runs the upload gate, text extractor, summarization client and usage ledger.
type Service struct {
	Repo           Repo
	Usage          *usage.Service
	LLM            llm.Generator
	MaxUploadBytes int64
	MaxPromptChars int
	Now            func() time.Time
	NewID          func() string
}

// NewService constructs a Service.
func NewService(repo Repo, usageSvc *usage.Service, generator llm.Generator, maxUploadBytes int64, maxPromptChars int) *Service {
	if generator == nil {
		generator = llm.PlaceholderGenerator{}
	}
	return &Service{
		Repo:           repo,
		Usage:          usageSvc,
		LLM:            generator,
		MaxUploadBytes: maxUploadBytes,
		MaxPromptChars: maxPromptChars,
		Now:            func() time.Time { return time.Now().UTC() },
		NewID:          uuid.NewString,
	}
}

// prepared is an upload that passed the gate and the extractor.
type prepared struct {
	extraction extract.Result
	normalized string
	prompt     string
	truncated  bool
	demo       bool
}

// Summarize runs the full pipeline for POST /summarize.
func (s *Service) Summarize(ctx context.Context, accountID string, upload Upload) (Result, error) {
	start := s.now()
	metrics.IncSummaryStarted()

	p, err := s.prepare(ctx, accountID, upload)
	if err != nil {
		s.fail(ctx, accountID, upload, err)
		return Result{}, err
	}
	if p.demo {
		return s.demoResult(ctx, accountID, upload, p, demoUnreadable, start), nil
	}

	resp, err := s.LLM.Generate(ctx, llm.Request{
		System: systemPrompt,
		Prompt: llm.RenderPrompt(llm.PromptSummarize, map[string]string{
			"FILE_NAME": upload.FileName,
			"TEXT":      p.prompt,
		}),
	})
	if errors.Is(err, llm.ErrNotConfigured) {
		return s.demoResult(ctx, accountID, upload, p, demoNotConfigured, start), nil
	}
	if err != nil {
		s.fail(ctx, accountID, upload, err)
		return Result{}, err
	}

	elapsed := s.now().Sub(start)
	record := Record{
		ID:        s.NewID(),
		AccountID: accountID,
		FileName:  upload.FileName,
		FileSize:  upload.Size,
		Summary:   resp.Text,
		CreatedAt: s.now(),
		Metadata: map[string]any{
			MetaMode:           "summary",
			MetaProcessingTime: elapsed.Milliseconds(),
			MetaParseMethod:    string(p.extraction.Method),
			MetaPages:          p.extraction.Pages,
			MetaTextLength:     utf8.RuneCountInString(p.normalized),
			MetaTruncated:      p.truncated,
			MetaModel:          resp.Model,
		},
	}
	stored := s.recordUsage(ctx, record)

	metrics.IncSummaryCompleted()
	metrics.ObserveSummaryDurationMs(float64(elapsed.Milliseconds()))
	s.logStatus(ctx, "completed", map[string]any{
		"user_id":      accountID,
		"record_id":    record.ID,
		"parse_method": string(p.extraction.Method),
		"duration_ms":  elapsed.Milliseconds(),
		"truncated":    p.truncated,
	})

	result := Result{
		Summary:          resp.Text,
		OriginalFileName: upload.FileName,
		FileSize:         upload.Size,
		TextLength:       utf8.RuneCountInString(p.normalized),
		ParseMethod:      string(p.extraction.Method),
		ProcessedAt:      record.CreatedAt,
		ProcessingTime:   elapsed.Milliseconds(),
		AIPowered:        true,
		Truncated:        p.truncated,
	}
	if stored {
		result.ID = record.ID
	}
	return result, nil
}

// Get returns one of the caller's records.
func (s *Service) Get(ctx context.Context, accountID, recordID string) (Record, error) {
	return s.Repo.GetByID(ctx, accountID, recordID)
}

// List returns the caller's records, newest first.
func (s *Service) List(ctx context.Context, accountID string, limit, offset int) ([]Record, error) {
	return s.Repo.ListByAccount(ctx, accountID, limit, offset)
}

// prepare applies the upload gate and the extractor. Extraction exhaustion is
// not an error; it marks the upload for demo mode.
func (s *Service) prepare(ctx context.Context, accountID string, upload Upload) (prepared, error) {
	mimeType, err := s.validate(upload)
	if err != nil {
		return prepared{}, err
	}
	if s.Usage != nil {
		if _, err := s.Usage.Check(ctx, accountID); err != nil {
			return prepared{}, err
		}
	}

	extraction, err := extract.Run(ctx, upload.Data, mimeType, upload.FileName)
	if errors.Is(err, extract.ErrExhausted) {
		return prepared{demo: true, extraction: extract.Result{Method: extract.MethodDemo}}, nil
	}
	if err != nil {
		if errors.Is(err, extract.ErrUnsupportedType) {
			return prepared{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return prepared{}, err
	}

	normalized := extract.Normalize(extraction.Text)
	if utf8.RuneCountInString(normalized) < minContentChars {
		return prepared{}, fmt.Errorf("%w: no readable text content found in document", ErrInsufficientContent)
	}
	prompt, truncated := extract.Truncate(normalized, s.MaxPromptChars)
	return prepared{
		extraction: extraction,
		normalized: normalized,
		prompt:     prompt,
		truncated:  truncated,
	}, nil
}

func (s *Service) validate(upload Upload) (string, error) {
	if upload.FileName == "" || len(upload.Data) == 0 {
		return "", fmt.Errorf("%w: no file provided", ErrInvalidInput)
	}
	size := upload.Size
	if size == 0 {
		size = int64(len(upload.Data))
	}
	if s.MaxUploadBytes > 0 && size > s.MaxUploadBytes {
		return "", fmt.Errorf("%w: file size exceeds %dMB limit", ErrInvalidInput, s.MaxUploadBytes>>20)
	}
	mimeType, ok := extract.AcceptedMimeType(upload.MimeType, upload.FileName)
	if !ok {
		return "", fmt.Errorf("%w: unsupported file type %q", ErrInvalidInput, upload.MimeType)
	}
	return mimeType, nil
}

func (s *Service) demoResult(ctx context.Context, accountID string, upload Upload, p prepared, reason string, start time.Time) Result {
	metrics.IncSummaryDemo()
	s.logStatus(ctx, "demo", map[string]any{
		"user_id":      accountID,
		"file_name":    upload.FileName,
		"parse_method": string(p.extraction.Method),
		"reason":       reason,
	})
	return Result{
		Summary:          DemoSummary(upload.FileName, reason),
		OriginalFileName: upload.FileName,
		FileSize:         upload.Size,
		TextLength:       utf8.RuneCountInString(p.normalized),
		ParseMethod:      string(p.extraction.Method),
		ProcessedAt:      s.now(),
		ProcessingTime:   s.now().Sub(start).Milliseconds(),
		AIPowered:        false,
	}
}

// recordUsage appends the record and then charges one unit. Both steps are
// best-effort: failures are logged and never reach the caller. It reports
// whether the record was stored.
func (s *Service) recordUsage(ctx context.Context, record Record) bool {
	ctx = telemetry.Detached(ctx)
	stored := true
	if err := s.Repo.Create(ctx, record); err != nil {
		stored = false
		metrics.IncLedgerFailure()
		telemetry.Error("ledger.failed", map[string]any{
			"request_id": telemetry.RequestID(ctx),
			"user_id":    record.AccountID,
			"record_id":  record.ID,
			"step":       "record",
			"error":      telemetry.ErrorField(err),
		})
	}
	if s.Usage == nil {
		return stored
	}
	if err := s.Usage.Increment(ctx, record.AccountID); err != nil {
		metrics.IncLedgerFailure()
		telemetry.Error("ledger.failed", map[string]any{
			"request_id": telemetry.RequestID(ctx),
			"user_id":    record.AccountID,
			"record_id":  record.ID,
			"step":       "increment",
			"error":      telemetry.ErrorField(err),
		})
	}
	return stored
}

func (s *Service) fail(ctx context.Context, accountID string, upload Upload, err error) {
	metrics.IncSummaryFailed()
	s.logStatus(ctx, "failed", map[string]any{
		"user_id":   accountID,
		"file_name": upload.FileName,
		"file_size": upload.Size,
		"error":     telemetry.ErrorField(err),
	})
}

func (s *Service) logStatus(ctx context.Context, status string, fields map[string]any) {
	fields["request_id"] = telemetry.RequestID(ctx)
	fields["status"] = status
	telemetry.Info("summary.status", fields)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}
