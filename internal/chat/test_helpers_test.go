package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"kamiscan-backend/internal/accounts"
	"kamiscan-backend/internal/llm"
	"kamiscan-backend/internal/summaries"
	"kamiscan-backend/internal/usage"
)

const (
	testAccountID = "google:tester"
	testRecordID  = "rec-1"
	testSummary   = "The report reviews quarterly revenue across every regional office in detail. Growth was driven by enterprise renewals and new partnerships in Europe. Costs fell"
)

// streamGenerator replays chunks and optionally blocks until cancelled.
type streamGenerator struct {
	mu      sync.Mutex
	chunks  []llm.StreamChunk
	block   bool
	openErr error
	prompts []string
}

func (g *streamGenerator) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	return llm.Response{}, llm.ErrUpstream
}

func (g *streamGenerator) GenerateStream(ctx context.Context, req llm.Request) (<-chan llm.StreamChunk, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, req.Prompt)
	g.mu.Unlock()
	if g.openErr != nil {
		return nil, g.openErr
	}
	out := make(chan llm.StreamChunk, llm.StreamBuffer)
	go func() {
		defer close(out)
		for _, chunk := range g.chunks {
			if !llm.Send(ctx, out, chunk) {
				return
			}
		}
		if g.block {
			<-ctx.Done()
		}
	}()
	return out, nil
}

func (g *streamGenerator) Model() string { return "fake-stream" }

func (g *streamGenerator) prompt(t *testing.T, i int) string {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	if i >= len(g.prompts) {
		t.Fatalf("expected at least %d prompts, got %d", i+1, len(g.prompts))
	}
	return g.prompts[i]
}

func textChunks(parts ...string) []llm.StreamChunk {
	chunks := make([]llm.StreamChunk, 0, len(parts))
	for _, part := range parts {
		chunks = append(chunks, llm.StreamChunk{Text: part})
	}
	return chunks
}

type recordSource struct {
	repo *summaries.MemoryRepo
}

func (r recordSource) Get(ctx context.Context, accountID, recordID string) (summaries.Record, error) {
	return r.repo.GetByID(ctx, accountID, recordID)
}

type fixture struct {
	svc      *Service
	repo     *MemoryRepo
	accounts *accounts.MemoryRepo
	gen      *streamGenerator
}

func newFixture(t *testing.T, gen *streamGenerator, seed accounts.Account) fixture {
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

	records := summaries.NewMemoryRepo()
	if err := records.Create(context.Background(), summaries.Record{
		ID:        testRecordID,
		AccountID: testAccountID,
		FileName:  "report.pdf",
		Summary:   testSummary,
		CreatedAt: now.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	repo := NewMemoryRepo()
	svc := NewService(repo, recordSource{repo: records}, usageSvc, gen)
	tick := 0
	svc.Now = func() time.Time {
		tick++
		return now.Add(time.Duration(tick) * time.Millisecond)
	}
	ids := 0
	svc.NewID = func() string {
		ids++
		return fmt.Sprintf("id-%d", ids)
	}
	return fixture{svc: svc, repo: repo, accounts: accountRepo, gen: gen}
}

func (f fixture) usageCount(t *testing.T) int {
	t.Helper()
	account, err := f.accounts.GetByID(context.Background(), testAccountID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	return account.UsageCount
}

func (f fixture) messages(t *testing.T) []Message {
	t.Helper()
	session, err := f.repo.FindSession(context.Background(), testAccountID, testRecordID)
	if err != nil {
		return nil
	}
	messages, err := f.repo.RecentMessages(context.Background(), session.ID, 0)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	return messages
}

type collector struct {
	events []Event
}

func (c *collector) sink(event Event) error {
	c.events = append(c.events, event)
	return nil
}

func (c *collector) types() string {
	types := make([]string, 0, len(c.events))
	for _, event := range c.events {
		types = append(types, event.Type)
	}
	return strings.Join(types, ",")
}
