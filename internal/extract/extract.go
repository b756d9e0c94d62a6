package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kamiscan-backend/internal/shared/telemetry"
)

// Method tags the tier that produced a Result.
type Method string

const (
	MethodPDFParse  Method = "pdf-parse"
	MethodDOCX      Method = "docx"
	MethodPlainText Method = "plain-text"
	MethodFallback  Method = "fallback"
	// MethodDemo is never produced here; the pipeline uses it once every tier failed.
	MethodDemo Method = "demo-mode"
)

var (
	// ErrExhausted means every tier failed for the payload.
	ErrExhausted = errors.New("extraction exhausted")
	// ErrUnsupportedType is returned for media types with no strategy list.
	ErrUnsupportedType = errors.New("unsupported document type")
)

// Result is the text obtained from an upload.
type Result struct {
	Text   string
	Method Method
	Pages  int
}

// Strategy is one extraction tier. Fn returns the text and a page or unit count.
type Strategy struct {
	Method Method
	Fn     func(ctx context.Context, data []byte) (string, int, error)
}

// StrategiesFor returns the ordered tiers for a canonical media type.
func StrategiesFor(mimeType string) []Strategy {
	switch mimeType {
	case MimePDF:
		return []Strategy{
			{Method: MethodPDFParse, Fn: parsePDF},
			{Method: MethodFallback, Fn: scanParenRuns},
		}
	case MimeDOCX:
		return []Strategy{
			{Method: MethodDOCX, Fn: parseDOCX},
			{Method: MethodFallback, Fn: scanParenRuns},
		}
	case MimeText, MimeMarkdown:
		return []Strategy{
			{Method: MethodPlainText, Fn: readPlainText},
		}
	default:
		return nil
	}
}

// Run extracts text from an in-memory upload, trying each tier in order.
func Run(ctx context.Context, data []byte, mimeType string, fileName string) (Result, error) {
	canonical, ok := AcceptedMimeType(mimeType, fileName)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedType, mimeType)
	}
	return RunStrategies(ctx, data, StrategiesFor(canonical))
}

// RunStrategies returns the first tier that succeeds. Tier failures, panics
// included, are logged and never returned; only cancellation and ErrExhausted are.
func RunStrategies(ctx context.Context, data []byte, strategies []Strategy) (Result, error) {
	for _, strategy := range strategies {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		text, pages, err := safeCall(ctx, strategy, data)
		if err == nil && strings.TrimSpace(text) != "" {
			return Result{Text: text, Method: strategy.Method, Pages: pages}, nil
		}
		if err == nil {
			err = errors.New("empty text")
		}
		telemetry.Warn("extract.tier_failed", map[string]any{
			"method": string(strategy.Method),
			"bytes":  len(data),
			"error":  telemetry.ErrorField(err),
		})
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return Result{}, ErrExhausted
}

func safeCall(ctx context.Context, strategy Strategy, data []byte) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, pages = "", 0
			err = fmt.Errorf("%s panicked: %v", strategy.Method, r)
		}
	}()
	return strategy.Fn(ctx, data)
}
