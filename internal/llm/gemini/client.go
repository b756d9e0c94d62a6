package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"kamiscan-backend/internal/llm"
)

const (
	provider     = "gemini"
	DefaultModel = "gemini-1.5-flash"
)

var baseURL = "https://generativelanguage.googleapis.com/v1beta"

// Client implements llm.Generator against the Gemini REST API.
type Client struct {
	apiKey       string
	model        string
	httpClient   *http.Client
	streamClient *http.Client
}

// NewClient constructs a Gemini client. An empty model selects DefaultModel.
func NewClient(apiKey, model string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, llm.ErrNotConfigured
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		apiKey:       apiKey,
		model:        strings.TrimSpace(model),
		httpClient:   &http.Client{Timeout: timeout},
		streamClient: &http.Client{},
	}, nil
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature      *float32 `json:"temperature,omitempty"`
	ResponseMimeType string   `json:"responseMimeType,omitempty"`
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata,omitempty"`
	ModelVersion string    `json:"modelVersion"`
	Error        *apiError `json:"error,omitempty"`
}

// text joins the parts of the first candidate.
func (r generateResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Generate calls models/{model}:generateContent.
func (c *Client) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	resp, err := c.do(ctx, c.httpClient, "generateContent", nil, req)
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

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return llm.Response{}, fmt.Errorf("%w: gemini response parse: %v", llm.ErrUpstream, err)
	}
	if parsed.Error != nil {
		return llm.Response{}, fmt.Errorf("%w: gemini error: %s (%s)", llm.ErrUpstream, parsed.Error.Message, parsed.Error.Status)
	}
	if parsed.PromptFeedback != nil && parsed.PromptFeedback.BlockReason != "" {
		return llm.Response{}, fmt.Errorf("%w: gemini blocked prompt: %s", llm.ErrUpstream, parsed.PromptFeedback.BlockReason)
	}
	text := strings.TrimSpace(parsed.text())
	if text == "" {
		return llm.Response{}, fmt.Errorf("%w: gemini response empty content", llm.ErrUpstream)
	}

	out := llm.Response{Text: text, Model: c.model}
	if parsed.ModelVersion != "" {
		out.Model = parsed.ModelVersion
	}
	if parsed.UsageMetadata != nil {
		out.PromptTokens = parsed.UsageMetadata.PromptTokenCount
		out.CompletionTokens = parsed.UsageMetadata.CandidatesTokenCount
	}
	log.Printf("llm response provider=gemini model=%s prompt_tokens=%d completion_tokens=%d",
		out.Model, out.PromptTokens, out.CompletionTokens)
	return out, nil
}

// GenerateStream calls models/{model}:streamGenerateContent?alt=sse.
func (c *Client) GenerateStream(ctx context.Context, req llm.Request) (<-chan llm.StreamChunk, error) {
	resp, err := c.do(ctx, c.streamClient, "streamGenerateContent", url.Values{"alt": {"sse"}}, req)
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
			var event generateResponse
			if err := json.Unmarshal(data, &event); err != nil {
				return fmt.Errorf("%w: gemini stream parse: %v", llm.ErrUpstream, err)
			}
			if event.Error != nil {
				return fmt.Errorf("%w: gemini error: %s (%s)", llm.ErrUpstream, event.Error.Message, event.Error.Status)
			}
			text := event.text()
			if text == "" {
				return nil
			}
			if !llm.Send(ctx, out, llm.StreamChunk{Text: text}) {
				return ctx.Err()
			}
			return nil
		})
		if err != nil && ctx.Err() == nil {
			llm.Send(ctx, out, llm.StreamChunk{Err: err})
		}
	}()
	return out, nil
}

func (c *Client) do(ctx context.Context, client *http.Client, method string, query url.Values, req llm.Request) (*http.Response, error) {
	body := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: req.Prompt}}}},
	}
	if strings.TrimSpace(req.System) != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: req.System}}}
	}
	if req.JSON || req.Temperature != nil {
		body.GenerationConfig = &generationConfig{Temperature: req.Temperature}
		if req.JSON {
			body.GenerationConfig.ResponseMimeType = "application/json"
		}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/models/%s:%s", strings.TrimRight(baseURL, "/"), url.PathEscape(c.model), method)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

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

var _ llm.Generator = (*Client)(nil)
