package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Generator abstracts hosted generative-AI providers.
type Generator interface {
	// Generate performs a single request/response call.
	Generate(ctx context.Context, req Request) (Response, error)
	// GenerateStream opens an incremental stream. The channel is closed when the
	// upstream finishes, fails (the last chunk carries Err) or ctx is cancelled.
	GenerateStream(ctx context.Context, req Request) (<-chan StreamChunk, error)
	// Model names the upstream model for metadata and logs.
	Model() string
}

// Request is a provider-neutral prompt.
type Request struct {
	System string
	Prompt string
	// JSON asks the provider for a JSON-only response body.
	JSON        bool
	Temperature *float32
}

// Response is the result of a synchronous call.
type Response struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// StreamChunk is one incremental piece of a streamed response.
type StreamChunk struct {
	Text string
	Err  error
}

// StreamBuffer bounds the chunks a producer may run ahead of its consumer.
const StreamBuffer = 16

var (
	// ErrUnavailable covers missing or rejected credentials and unreachable upstreams.
	ErrUnavailable = errors.New("ai service unavailable")
	// ErrThrottled is an upstream rate limit.
	ErrThrottled = errors.New("ai service throttled")
	// ErrUpstream is any other upstream failure.
	ErrUpstream = errors.New("ai processing failed")
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = fmt.Errorf("%w: api key not configured", ErrUnavailable)
)

// ClassifyStatus maps an upstream HTTP status to the error taxonomy.
func ClassifyStatus(provider string, status int, detail string) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s status %d: %s", ErrUnavailable, provider, status, detail)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s status %d: %s", ErrThrottled, provider, status, detail)
	case status == http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %s status %d: %s", ErrUnavailable, provider, status, detail)
	default:
		return fmt.Errorf("%w: %s status %d: %s", ErrUpstream, provider, status, detail)
	}
}

// TransportError wraps a failed round trip. Cancellation is passed through untouched.
func TransportError(ctx context.Context, provider string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %s request: %v", ErrUnavailable, provider, err)
}

// PlaceholderGenerator is used when no provider key is configured.
type PlaceholderGenerator struct{}

// Generate returns ErrNotConfigured.
func (PlaceholderGenerator) Generate(context.Context, Request) (Response, error) {
	return Response{}, ErrNotConfigured
}

// GenerateStream returns ErrNotConfigured.
func (PlaceholderGenerator) GenerateStream(context.Context, Request) (<-chan StreamChunk, error) {
	return nil, ErrNotConfigured
}

func (PlaceholderGenerator) Model() string { return "none" }

// Collect drains a stream into a single string.
func Collect(ctx context.Context, stream <-chan StreamChunk) (string, error) {
	var text []byte
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case chunk, ok := <-stream:
			if !ok {
				return string(text), nil
			}
			if chunk.Err != nil {
				return "", chunk.Err
			}
			text = append(text, chunk.Text...)
		}
	}
}
