package summaries

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"kamiscan-backend/internal/accounts"
	"kamiscan-backend/internal/llm"
	"kamiscan-backend/internal/usage"
)

const testAccountID = "google:tester"

type fakeGenerator struct {
	mu       sync.Mutex
	text     string
	err      error
	requests []llm.Request
}

func (f *fakeGenerator) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return llm.Response{}, f.err
	}
	return llm.Response{Text: f.text, Model: "fake-model"}, nil
}

func (f *fakeGenerator) GenerateStream(ctx context.Context, req llm.Request) (<-chan llm.StreamChunk, error) {
	return nil, llm.ErrUpstream
}

func (f *fakeGenerator) Model() string { return "fake-model" }

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type failingRepo struct {
	*MemoryRepo
}

func (failingRepo) Create(context.Context, Record) error {
	return context.DeadlineExceeded
}

type fixture struct {
	svc      *Service
	repo     *MemoryRepo
	accounts *accounts.MemoryRepo
	gen      *fakeGenerator
	now      time.Time
}

func newFixture(t *testing.T, gen llm.Generator, seed accounts.Account) fixture {
	t.Helper()
	now := time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC)
	accountRepo := accounts.NewMemoryRepo()
	if seed.ID == "" {
		seed = accounts.Account{
			ID:            testAccountID,
			Email:         "tester@example.com",
			Subscription:  accounts.PlanFree,
			UsageLimit:    10,
			LastResetDate: now.Add(-24 * time.Hour),
		}
	}
	accountRepo.Put(seed)
	usageSvc := usage.NewService(accountRepo)
	usageSvc.Now = func() time.Time { return now }

	repo := NewMemoryRepo()
	svc := NewService(repo, usageSvc, gen, 10<<20, 15000)
	svc.Now = func() time.Time { return now }
	ids := 0
	svc.NewID = func() string {
		ids++
		return "rec-" + strings.Repeat("x", ids)
	}
	f := fixture{svc: svc, repo: repo, accounts: accountRepo, now: now}
	if fg, ok := gen.(*fakeGenerator); ok {
		f.gen = fg
	}
	return f
}

func textUpload(body string) Upload {
	return Upload{FileName: "notes.txt", MimeType: "text/plain", Size: int64(len(body)), Data: []byte(body)}
}

// fallbackPDF fails structured parsing but carries recoverable literal strings.
func fallbackPDF() []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n% not a real cross reference table\n")
	for i := 0; i < 5; i++ {
		b.WriteString("(Hello world this is a test document with enough text)\n")
	}
	return b.Bytes()
}

func newRouter(t *testing.T, svc *Service) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("userId", testAccountID)
		c.Next()
	})
	NewHandler(svc).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func multipartRequest(t *testing.T, path, fileName, contentType string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if fileName != "" {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
		header.Set("Content-Type", contentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}
