package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"kamiscan-backend/internal/chat"
	"kamiscan-backend/internal/summaries"
)

var fixedNow = time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc     *Service
	records *summaries.MemoryRepo
	chats   *chat.MemoryRepo
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	records := summaries.NewMemoryRepo()
	chats := chat.NewMemoryRepo()

	seed := []summaries.Record{
		{ID: "r1", AccountID: "acct-a", FileName: "q1.pdf", CreatedAt: fixedNow.Add(-time.Hour),
			Metadata: map[string]any{summaries.MetaProcessingTime: int64(4000), summaries.MetaConfidence: 0.9}},
		{ID: "r2", AccountID: "acct-a", FileName: "q2.pdf", CreatedAt: fixedNow.AddDate(0, 0, -2),
			Metadata: map[string]any{summaries.MetaProcessingTime: float64(2000), summaries.MetaConfidence: 0.8}},
		{ID: "r3", AccountID: "acct-a", FileName: "old.pdf", CreatedAt: fixedNow.AddDate(0, 0, -40),
			Metadata: map[string]any{summaries.MetaProcessingTime: int64(9000)}},
		{ID: "r4", AccountID: "acct-b", FileName: "other.pdf", CreatedAt: fixedNow.Add(-3 * time.Hour),
			Metadata: map[string]any{}},
	}
	for _, record := range seed {
		if err := records.Create(ctx, record); err != nil {
			t.Fatalf("seed record: %v", err)
		}
	}

	session := chat.Session{
		ID:           "s1",
		AccountID:    "acct-a",
		RecordID:     "r1",
		Title:        "Chat: q1.pdf",
		CreatedAt:    fixedNow.AddDate(0, 0, -1),
		LastActivity: fixedNow.Add(-30 * time.Minute),
	}
	if _, err := chats.CreateSession(ctx, session); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	err := chats.AppendMessages(ctx,
		chat.Message{ID: "m1", SessionID: "s1", AccountID: "acct-a", Role: chat.RoleUser, Content: "hi", CreatedAt: fixedNow.Add(-30 * time.Minute)},
		chat.Message{ID: "m2", SessionID: "s1", AccountID: "acct-a", Role: chat.RoleAssistant, Content: "hello", CreatedAt: fixedNow.Add(-30 * time.Minute)},
	)
	if err != nil {
		t.Fatalf("seed messages: %v", err)
	}

	svc := NewService(records, chats)
	svc.Now = func() time.Time { return fixedNow }
	return fixture{svc: svc, records: records, chats: chats}
}

func TestDashboardForAccount(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.Dashboard(context.Background(), "acct-a", "")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if got.Range != RangeMonth || got.Scope != "account" {
		t.Fatalf("unexpected range/scope: %s/%s", got.Range, got.Scope)
	}
	if got.TotalSummaries != 2 {
		t.Fatalf("expected 2 summaries in range, got %d", got.TotalSummaries)
	}
	if got.TotalChatSessions != 1 || got.TotalChatMessages != 2 {
		t.Fatalf("unexpected chat totals: %d/%d", got.TotalChatSessions, got.TotalChatMessages)
	}
	if got.AverageProcessingTime != 3 {
		t.Fatalf("expected 3s average, got %v", got.AverageProcessingTime)
	}
	if got.AverageConfidence != 85 {
		t.Fatalf("expected 85%% confidence, got %d", got.AverageConfidence)
	}
	if got.TotalTimeSaved != 0.1 {
		t.Fatalf("expected 0.1h saved, got %v", got.TotalTimeSaved)
	}

	if len(got.WeeklyUsage) != 7 {
		t.Fatalf("expected 7 days, got %d", len(got.WeeklyUsage))
	}
	last := got.WeeklyUsage[6]
	if last.Date != "2025-05-10" || last.Day != "Sat" || last.Count != 1 {
		t.Fatalf("unexpected last day: %+v", last)
	}
	if got.WeeklyUsage[4].Date != "2025-05-08" || got.WeeklyUsage[4].Count != 1 {
		t.Fatalf("unexpected day 4: %+v", got.WeeklyUsage[4])
	}

	if len(got.RecentActivity) != 3 {
		t.Fatalf("expected 3 recent items, got %+v", got.RecentActivity)
	}
	if got.RecentActivity[0].Type != activityChat || got.RecentActivity[0].Document != "Chat: q1.pdf" {
		t.Fatalf("expected chat first, got %+v", got.RecentActivity[0])
	}
	if got.RecentActivity[1].ID != "r1" || got.RecentActivity[1].Duration != 4 {
		t.Fatalf("unexpected second item: %+v", got.RecentActivity[1])
	}
}

func TestDashboardGlobalScope(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.Dashboard(context.Background(), "", RangeYear)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if got.Scope != "global" || got.Range != RangeYear {
		t.Fatalf("unexpected scope/range: %s/%s", got.Scope, got.Range)
	}
	if got.TotalSummaries != 4 {
		t.Fatalf("expected all 4 records, got %d", got.TotalSummaries)
	}
}

func TestDashboardWeekRange(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.Dashboard(context.Background(), "acct-a", RangeWeek)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if !got.Since.Equal(fixedNow.AddDate(0, 0, -7)) {
		t.Fatalf("unexpected since: %v", got.Since)
	}
	if got.TotalSummaries != 2 {
		t.Fatalf("expected 2 summaries, got %d", got.TotalSummaries)
	}
}

func TestNormalizeRange(t *testing.T) {
	tests := map[string]string{
		"week":    RangeWeek,
		"quarter": RangeQuarter,
		"year":    RangeYear,
		"month":   RangeMonth,
		"":        RangeMonth,
		"decade":  RangeMonth,
	}
	for in, want := range tests {
		if got := NormalizeRange(in); got != want {
			t.Fatalf("NormalizeRange(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestActivityCountsLifetimeHistory(t *testing.T) {
	f := newFixture(t)

	activity, err := f.svc.Activity(context.Background(), "acct-a")
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if activity.TotalProcessed != 3 {
		t.Fatalf("expected 3 lifetime records, got %d", activity.TotalProcessed)
	}
	if activity.TotalChatSessions != 1 || activity.TotalChatMessages != 2 {
		t.Fatalf("unexpected chat counts: %+v", activity)
	}
	if activity.AvgConfidence < 0.849 || activity.AvgConfidence > 0.851 {
		t.Fatalf("expected 0.85 confidence, got %v", activity.AvgConfidence)
	}
}

func TestDashboardPropagatesCancellation(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.svc.Dashboard(ctx, "acct-a", RangeMonth); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
