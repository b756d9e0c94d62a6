package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kamiscan-backend/internal/llm"
)

func withServer(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	server := httptest.NewServer(handler)
	old := baseURL
	baseURL = server.URL
	t.Cleanup(func() {
		baseURL = old
		server.Close()
	})
}

func TestGenerate(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-1.5-flash:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		var payload generateRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if payload.SystemInstruction == nil || payload.GenerationConfig == nil || payload.GenerationConfig.ResponseMimeType != "application/json" {
			t.Errorf("expected system instruction and json mime type, got %+v", payload)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Summary "},{"text":"text"}]}}],"usageMetadata":{"promptTokenCount":40,"candidatesTokenCount":2}}`))
	})

	client, err := NewClient("test-key", "", time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	resp, err := client.Generate(context.Background(), llm.Request{System: "sys", Prompt: "doc", JSON: true})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Text != "Summary text" || resp.PromptTokens != 40 || resp.CompletionTokens != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{status: http.StatusForbidden, want: llm.ErrUnavailable},
		{status: http.StatusTooManyRequests, want: llm.ErrThrottled},
		{status: http.StatusInternalServerError, want: llm.ErrUpstream},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			withServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"code":1,"message":"denied","status":"X"}}`))
			})
			client, err := NewClient("test-key", "gemini-1.5-pro", time.Second)
			if err != nil {
				t.Fatalf("NewClient: %v", err)
			}
			_, err = client.Generate(context.Background(), llm.Request{Prompt: "doc"})
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if !strings.Contains(err.Error(), "denied") {
				t.Fatalf("expected upstream message in error, got %v", err)
			}
		})
	}
}

func TestGenerateUnreachable(t *testing.T) {
	old := baseURL
	baseURL = "http://127.0.0.1:1"
	t.Cleanup(func() { baseURL = old })

	client, err := NewClient("test-key", "", time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.Generate(context.Background(), llm.Request{Prompt: "doc"}); !errors.Is(err, llm.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestGenerateStream(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("alt") != "sse" {
			t.Errorf("expected alt=sse, got %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"The report \"}]}}]}\r\n\r\n")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"covers Q3.\"}]},\"finishReason\":\"STOP\"}]}\r\n\r\n")
	})

	client, err := NewClient("test-key", "", time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	stream, err := client.GenerateStream(context.Background(), llm.Request{Prompt: "q"})
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	var chunks []string
	for chunk := range stream {
		if chunk.Err != nil {
			t.Fatalf("unexpected stream error: %v", chunk.Err)
		}
		chunks = append(chunks, chunk.Text)
	}
	if strings.Join(chunks, "|") != "The report |covers Q3." {
		t.Fatalf("unexpected chunks %q", chunks)
	}
}

func TestGenerateStreamMalformedEvent(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"partial\"}]}}]}\n\n")
		fmt.Fprint(w, "data: {not json\n\n")
	})
	client, err := NewClient("test-key", "", time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	stream, err := client.GenerateStream(context.Background(), llm.Request{Prompt: "q"})
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	if _, err := llm.Collect(context.Background(), stream); !errors.Is(err, llm.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestGenerateStreamStopsOnCancel(t *testing.T) {
	release := make(chan struct{})
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"first\"}]}}]}\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	defer close(release)

	client, err := NewClient("test-key", "", time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	stream, err := client.GenerateStream(ctx, llm.Request{Prompt: "q"})
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	first := <-stream
	if first.Text != "first" {
		t.Fatalf("unexpected first chunk %+v", first)
	}
	cancel()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case chunk, ok := <-stream:
			if !ok {
				return
			}
			if chunk.Err != nil {
				t.Fatalf("cancellation should not surface as an error chunk: %v", chunk.Err)
			}
		case <-timeout:
			t.Fatalf("stream did not close after cancellation")
		}
	}
}
