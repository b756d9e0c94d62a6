package summaries

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"kamiscan-backend/internal/llm"
	"kamiscan-backend/internal/shared/metrics"
	"kamiscan-backend/internal/shared/telemetry"
)

const (
	defaultProcessingType = "summary"
	defaultLanguage       = "English"
	defaultOutputFormat   = "text"
	defaultComplexity     = "detailed"

	// localConfidence is reported for results derived without the model.
	localConfidence = 50
	citationPreview = 150
)

type advancedPayload struct {
	Summary    string     `json:"summary"`
	KeyPoints  []string   `json:"keyPoints"`
	Sentiment  string     `json:"sentiment"`
	Topics     []string   `json:"topics"`
	Confidence float64    `json:"confidence"`
	Citations  []Citation `json:"citations"`
}

// NormalizeOptions fills defaults and rejects unknown enum values.
func NormalizeOptions(opts Options) (Options, error) {
	opts.Type = strings.ToLower(strings.TrimSpace(opts.Type))
	if opts.Type == "" {
		opts.Type = defaultProcessingType
	}
	if !processingTypes[opts.Type] {
		return Options{}, fmt.Errorf("%w: unknown processing type %q", ErrInvalidInput, opts.Type)
	}
	opts.OutputFormat = strings.ToLower(strings.TrimSpace(opts.OutputFormat))
	if opts.OutputFormat == "" {
		opts.OutputFormat = defaultOutputFormat
	}
	if !outputFormats[opts.OutputFormat] {
		return Options{}, fmt.Errorf("%w: unknown output format %q", ErrInvalidInput, opts.OutputFormat)
	}
	opts.Complexity = strings.ToLower(strings.TrimSpace(opts.Complexity))
	if opts.Complexity == "" {
		opts.Complexity = defaultComplexity
	}
	if !complexities[opts.Complexity] {
		return Options{}, fmt.Errorf("%w: unknown complexity %q", ErrInvalidInput, opts.Complexity)
	}
	opts.Language = strings.TrimSpace(opts.Language)
	if opts.Language == "" {
		opts.Language = defaultLanguage
	}
	focus := make([]string, 0, len(opts.FocusAreas))
	for _, area := range opts.FocusAreas {
		if area = strings.TrimSpace(area); area != "" {
			focus = append(focus, area)
		}
	}
	opts.FocusAreas = focus
	return opts, nil
}

// Advanced runs POST /ai/advanced-process. A missing key or an unparseable
// model response yields a result derived locally from the extracted text.
func (s *Service) Advanced(ctx context.Context, accountID string, upload Upload, opts Options) (AdvancedResult, error) {
	start := s.now()
	opts, err := NormalizeOptions(opts)
	if err != nil {
		return AdvancedResult{}, err
	}
	metrics.IncSummaryStarted()

	p, err := s.prepare(ctx, accountID, upload)
	if err != nil {
		s.fail(ctx, accountID, upload, err)
		return AdvancedResult{}, err
	}

	var payload advancedPayload
	aiPowered := false
	model := ""
	if !p.demo {
		resp, err := s.LLM.Generate(ctx, llm.Request{
			System: systemPrompt,
			Prompt: advancedPrompt(upload.FileName, p.prompt, opts),
			JSON:   true,
		})
		switch {
		case errors.Is(err, llm.ErrNotConfigured):
		case err != nil:
			s.fail(ctx, accountID, upload, err)
			return AdvancedResult{}, err
		default:
			model = resp.Model
			if parsed, ok := parseAdvanced(resp.Text); ok {
				payload = parsed
				aiPowered = true
			} else {
				telemetry.Warn("summary.unstructured_response", map[string]any{
					"request_id": telemetry.RequestID(ctx),
					"user_id":    accountID,
					"bytes":      len(resp.Text),
				})
			}
		}
	}

	result := AdvancedResult{
		ID:          s.NewID(),
		ReadingTime: int(math.Ceil(float64(utf8.RuneCountInString(p.normalized)) / 1000)),
		WordCount:   len(strings.Fields(p.normalized)),
		Metadata: AdvancedMetadata{
			FileName:    upload.FileName,
			PageCount:   p.extraction.Pages,
			ParseMethod: p.extraction.Method,
			AIPowered:   aiPowered,
			Options:     opts,
		},
	}
	result.Metadata.WordCount = result.WordCount
	if aiPowered {
		applyPayload(&result, payload)
	} else {
		applyLocal(&result, p, upload, opts)
	}
	elapsed := s.now().Sub(start)
	result.Metadata.ProcessingTime = elapsed.Milliseconds()

	if !aiPowered {
		metrics.IncSummaryDemo()
		s.logStatus(ctx, "local", map[string]any{
			"user_id":      accountID,
			"parse_method": string(p.extraction.Method),
			"type":         opts.Type,
		})
		return result, nil
	}

	s.recordUsage(ctx, Record{
		ID:        result.ID,
		AccountID: accountID,
		FileName:  upload.FileName,
		FileSize:  upload.Size,
		Summary:   result.Summary,
		CreatedAt: s.now(),
		Metadata: map[string]any{
			MetaMode:           "advanced",
			MetaProcessingTime: elapsed.Milliseconds(),
			MetaParseMethod:    string(p.extraction.Method),
			MetaPages:          p.extraction.Pages,
			MetaTextLength:     utf8.RuneCountInString(p.normalized),
			MetaTruncated:      p.truncated,
			MetaModel:          model,
			MetaConfidence:     float64(result.Confidence) / 100,
			"type":             opts.Type,
			"keyPoints":        result.KeyPoints,
			"topics":           result.Topics,
			"sentiment":        result.Sentiment,
		},
	})
	metrics.IncSummaryCompleted()
	metrics.ObserveSummaryDurationMs(float64(elapsed.Milliseconds()))
	s.logStatus(ctx, "completed", map[string]any{
		"user_id":      accountID,
		"record_id":    result.ID,
		"parse_method": string(p.extraction.Method),
		"type":         opts.Type,
		"duration_ms":  elapsed.Milliseconds(),
	})
	return result, nil
}

func advancedPrompt(fileName, text string, opts Options) string {
	focus := "none specified"
	if len(opts.FocusAreas) > 0 {
		focus = strings.Join(opts.FocusAreas, ", ")
	}
	return llm.RenderPrompt(llm.PromptAdvanced, map[string]string{
		"TYPE":          opts.Type,
		"LANGUAGE":      opts.Language,
		"OUTPUT_FORMAT": opts.OutputFormat,
		"COMPLEXITY":    opts.Complexity,
		"FOCUS_AREAS":   focus,
		"FILE_NAME":     fileName,
		"TEXT":          text,
	})
}

func parseAdvanced(text string) (advancedPayload, bool) {
	raw, ok := llm.FirstJSONObject(text)
	if !ok {
		return advancedPayload{}, false
	}
	var payload advancedPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return advancedPayload{}, false
	}
	if strings.TrimSpace(payload.Summary) == "" {
		return advancedPayload{}, false
	}
	return payload, true
}

func applyPayload(result *AdvancedResult, payload advancedPayload) {
	result.Summary = strings.TrimSpace(payload.Summary)
	result.KeyPoints = nonNil(payload.KeyPoints)
	result.Topics = nonNil(payload.Topics)
	result.Sentiment = normalizeSentiment(payload.Sentiment)
	result.Confidence = confidencePercent(payload.Confidence)
	result.Citations = payload.Citations
	if result.Citations == nil {
		result.Citations = []Citation{}
	}
}

func applyLocal(result *AdvancedResult, p prepared, upload Upload, opts Options) {
	if p.demo {
		result.Summary = DemoSummary(upload.FileName, demoUnreadable)
	} else {
		result.Summary = fmt.Sprintf("This document was processed in %s mode. %d words were extracted from %d page(s); AI analysis was not available for this request.",
			opts.Type, result.WordCount, max(p.extraction.Pages, 1))
	}
	result.KeyPoints = []string{
		"Document successfully uploaded and processed",
		fmt.Sprintf("Text extraction completed: %d words", result.WordCount),
		fmt.Sprintf("Processing mode: %s", opts.Type),
		fmt.Sprintf("File size: %.1f KB", float64(upload.Size)/1024),
	}
	result.Sentiment = "neutral"
	result.Topics = []string{"Document Processing", strings.ToUpper(opts.Type[:1]) + opts.Type[1:]}
	result.Confidence = localConfidence
	result.Citations = []Citation{}
	if preview := previewText(p.normalized, citationPreview); preview != "" {
		result.Citations = append(result.Citations, Citation{Page: 1, Text: preview, Relevance: 0.95})
	}
}

func previewText(text string, limit int) string {
	if text == "" {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

func normalizeSentiment(value string) string {
	switch v := strings.ToLower(strings.TrimSpace(value)); v {
	case "positive", "negative", "neutral":
		return v
	default:
		return "neutral"
	}
}

// confidencePercent accepts either a 0-1 fraction or a 0-100 percentage.
func confidencePercent(value float64) int {
	if value <= 1 {
		value *= 100
	}
	return int(math.Round(math.Max(0, math.Min(100, value))))
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
