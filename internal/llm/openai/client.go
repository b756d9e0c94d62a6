package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"kamiscan-backend/internal/llm"
)

const provider = "openai"

var apiURL = "https://api.openai.com/v1/chat/completions"

// Client implements llm.Generator using OpenAI Chat Completions.
type Client struct {
	apiKey     string
	model      string
	httpClient *http.Client
	// streamClient has no overall timeout; streams are bounded by the request context.
	streamClient *http.Client
}

// NewClient constructs a new OpenAI client.
func NewClient(apiKey, model string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for OpenAI")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, llm.ErrNotConfigured
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		apiKey:       apiKey,
		model:        model,
		httpClient:   &http.Client{Timeout: timeout},
		streamClient: &http.Client{},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float32        `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	Stream         bool            `json:"stream,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *apiError `json:"error,omitempty"`
}

type streamResponse struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Generate sends one chat completion request.
func (c *Client) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	resp, err := c.do(ctx, c.httpClient, c.buildRequest(req, false))
	if err != nil {
		return llm.Response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.Response{}, llm.TransportError(ctx, provider, err)
	}
	if resp.StatusCode >= 400 {
		return llm.Response{}, llm.ClassifyStatus(provider, resp.StatusCode, errorDetail(body))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return llm.Response{}, fmt.Errorf("%w: openai response parse: %v", llm.ErrUpstream, err)
	}
	if parsed.Error != nil {
		return llm.Response{}, fmt.Errorf("%w: openai error: %s (%s)", llm.ErrUpstream, parsed.Error.Message, parsed.Error.Type)
	}
	if len(parsed.Choices) == 0 {
		return llm.Response{}, fmt.Errorf("%w: openai response missing choices", llm.ErrUpstream)
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return llm.Response{}, fmt.Errorf("%w: openai response empty content", llm.ErrUpstream)
	}

	out := llm.Response{Text: content, Model: c.model}
	if parsed.Model != "" {
		out.Model = parsed.Model
	}
	if parsed.Usage != nil {
		out.PromptTokens = parsed.Usage.PromptTokens
		out.CompletionTokens = parsed.Usage.CompletionTokens
	}
	logUsage(c.model, out)
	return out, nil
}

// GenerateStream sends a streamed chat completion request and relays deltas.
func (c *Client) GenerateStream(ctx context.Context, req llm.Request) (<-chan llm.StreamChunk, error) {
	resp, err := c.do(ctx, c.streamClient, c.buildRequest(req, true))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, llm.ClassifyStatus(provider, resp.StatusCode, errorDetail(body))
	}

	out := make(chan llm.StreamChunk, llm.StreamBuffer)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		err := llm.ReadEvents(ctx, resp.Body, func(data []byte) error {
			if string(data) == "[DONE]" {
				return io.EOF
			}
			var event streamResponse
			if err := json.Unmarshal(data, &event); err != nil {
				return fmt.Errorf("%w: openai stream parse: %v", llm.ErrUpstream, err)
			}
			if event.Error != nil {
				return fmt.Errorf("%w: openai error: %s (%s)", llm.ErrUpstream, event.Error.Message, event.Error.Type)
			}
			for _, choice := range event.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				if !llm.Send(ctx, out, llm.StreamChunk{Text: choice.Delta.Content}) {
					return ctx.Err()
				}
			}
			return nil
		})
		if err != nil && err != io.EOF && ctx.Err() == nil {
			llm.Send(ctx, out, llm.StreamChunk{Err: err})
		}
	}()
	return out, nil
}

func (c *Client) buildRequest(req llm.Request, stream bool) chatRequest {
	messages := make([]chatMessage, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body := chatRequest{Model: c.model, Messages: messages, Stream: stream}
	if req.JSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	// gpt-5 models only accept the default temperature.
	if req.Temperature != nil && !isGPT5(c.model) {
		body.Temperature = req.Temperature
	}
	return body
}

func (c *Client) do(ctx context.Context, client *http.Client, body chatRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	if body.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, llm.TransportError(ctx, provider, err)
	}
	return resp, nil
}

func errorDetail(body []byte) string {
	var parsed struct {
		Error *apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil {
		return parsed.Error.Message
	}
	return strings.TrimSpace(string(body))
}

func logUsage(model string, resp llm.Response) {
	log.Printf("llm response provider=openai model=%s prompt_tokens=%d completion_tokens=%d",
		model, resp.PromptTokens, resp.CompletionTokens)
}

func isGPT5(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gpt-5")
}

var _ llm.Generator = (*Client)(nil)
