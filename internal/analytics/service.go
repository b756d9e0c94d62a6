package analytics

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"kamiscan-backend/internal/chat"
	"kamiscan-backend/internal/summaries"
	"kamiscan-backend/internal/usage"
)

const (
	RangeWeek    = "week"
	RangeMonth   = "month"
	RangeQuarter = "quarter"
	RangeYear    = "year"

	recentLimit     = 10
	dailyWindow     = 7
	minutesSaved    = 2.5
	dayLayout       = "2006-01-02"
	activityChat    = "chat"
	activitySummary = "summary"
)

// DayCount is one bar of the weekly usage chart.
type DayCount struct {
	Day   string `json:"day"`
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// ActivityItem is an entry of the recent activity feed.
type ActivityItem struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Document  string    `json:"document"`
	Timestamp time.Time `json:"timestamp"`
	Duration  float64   `json:"duration,omitempty"`
}

// Dashboard is the body of GET /analytics.
type Dashboard struct {
	Range                 string         `json:"range"`
	Scope                 string         `json:"scope"`
	Since                 time.Time      `json:"since"`
	TotalSummaries        int            `json:"totalSummaries"`
	TotalChatSessions     int            `json:"totalChatSessions"`
	TotalChatMessages     int            `json:"totalChatMessages"`
	WeeklyUsage           []DayCount     `json:"weeklyUsage"`
	AverageProcessingTime float64        `json:"averageProcessingTime"`
	AverageConfidence     int            `json:"averageConfidence"`
	TotalTimeSaved        float64        `json:"totalTimeSaved"`
	RecentActivity        []ActivityItem `json:"recentActivity"`
}

// Service reads records and chats to build usage dashboards.
type Service struct {
	Records summaries.Repo
	Chats   chat.Repo
	Now     func() time.Time
}

func NewService(records summaries.Repo, chats chat.Repo) *Service {
	return &Service{Records: records, Chats: chats, Now: time.Now}
}

// NormalizeRange maps unknown values to the monthly view.
func NormalizeRange(value string) string {
	switch value {
	case RangeWeek, RangeQuarter, RangeYear:
		return value
	default:
		return RangeMonth
	}
}

func rangeStart(now time.Time, name string) time.Time {
	switch name {
	case RangeWeek:
		return now.AddDate(0, 0, -7)
	case RangeQuarter:
		return now.AddDate(0, -3, 0)
	case RangeYear:
		return now.AddDate(-1, 0, 0)
	default:
		return now.AddDate(0, -1, 0)
	}
}

// Dashboard aggregates activity inside the named range. An empty accountID
// spans every account and is reserved for administrators.
func (s *Service) Dashboard(ctx context.Context, accountID, rangeName string) (Dashboard, error) {
	if s == nil || s.Records == nil || s.Chats == nil {
		return Dashboard{}, errors.New("analytics service not configured")
	}
	now := s.now()
	rangeName = NormalizeRange(rangeName)
	since := rangeStart(now, rangeName)

	records := summaries.Filter{AccountID: accountID, Since: since}
	chats := chat.Filter{AccountID: accountID, Since: since}

	agg, err := s.Records.Aggregate(ctx, records)
	if err != nil {
		return Dashboard{}, err
	}
	sessions, err := s.Chats.CountSessions(ctx, chats)
	if err != nil {
		return Dashboard{}, err
	}
	messages, err := s.Chats.CountMessages(ctx, chats)
	if err != nil {
		return Dashboard{}, err
	}
	recent, err := s.recentActivity(ctx, records, chats)
	if err != nil {
		return Dashboard{}, err
	}

	scope := "account"
	if accountID == "" {
		scope = "global"
	}
	return Dashboard{
		Range:                 rangeName,
		Scope:                 scope,
		Since:                 since,
		TotalSummaries:        agg.Count,
		TotalChatSessions:     sessions,
		TotalChatMessages:     messages,
		WeeklyUsage:           weeklyUsage(now, agg.Daily),
		AverageProcessingTime: round1(agg.AvgProcessingMs / 1000),
		AverageConfidence:     int(math.Round(agg.AvgConfidence * 100)),
		TotalTimeSaved:        round1(float64(agg.Count) * minutesSaved / 60),
		RecentActivity:        recent,
	}, nil
}

// Activity reports an account's lifetime history for GET /user/stats.
func (s *Service) Activity(ctx context.Context, accountID string) (usage.Activity, error) {
	if s == nil || s.Records == nil || s.Chats == nil {
		return usage.Activity{}, errors.New("analytics service not configured")
	}
	agg, err := s.Records.Aggregate(ctx, summaries.Filter{AccountID: accountID})
	if err != nil {
		return usage.Activity{}, err
	}
	filter := chat.Filter{AccountID: accountID}
	sessions, err := s.Chats.CountSessions(ctx, filter)
	if err != nil {
		return usage.Activity{}, err
	}
	messages, err := s.Chats.CountMessages(ctx, filter)
	if err != nil {
		return usage.Activity{}, err
	}
	return usage.Activity{
		TotalProcessed:    agg.Count,
		TotalChatSessions: sessions,
		TotalChatMessages: messages,
		AvgConfidence:     agg.AvgConfidence,
	}, nil
}

func (s *Service) recentActivity(ctx context.Context, records summaries.Filter, chats chat.Filter) ([]ActivityItem, error) {
	recentRecords, err := s.Records.ListRecent(ctx, records, recentLimit)
	if err != nil {
		return nil, err
	}
	recentSessions, err := s.Chats.ListSessions(ctx, chats, recentLimit)
	if err != nil {
		return nil, err
	}

	items := make([]ActivityItem, 0, len(recentRecords)+len(recentSessions))
	for _, record := range recentRecords {
		item := ActivityItem{
			ID:        record.ID,
			Type:      activitySummary,
			Document:  record.FileName,
			Timestamp: record.CreatedAt,
		}
		if ms, ok := number(record.Metadata[summaries.MetaProcessingTime]); ok {
			item.Duration = round1(ms / 1000)
		}
		items = append(items, item)
	}
	for _, session := range recentSessions {
		items = append(items, ActivityItem{
			ID:        session.ID,
			Type:      activityChat,
			Document:  session.Title,
			Timestamp: session.LastActivity,
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp.After(items[j].Timestamp)
	})
	if len(items) > recentLimit {
		items = items[:recentLimit]
	}
	return items, nil
}

// weeklyUsage returns the seven UTC days ending today, oldest first.
func weeklyUsage(now time.Time, daily map[string]int) []DayCount {
	today := now.UTC().Truncate(24 * time.Hour)
	out := make([]DayCount, 0, dailyWindow)
	for i := dailyWindow - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		key := day.Format(dayLayout)
		out = append(out, DayCount{
			Day:   day.Format("Mon"),
			Date:  key,
			Count: daily[key],
		})
	}
	return out
}

// number reads a metadata value that may have round-tripped through JSON.
func number(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func round1(value float64) float64 {
	return math.Round(value*10) / 10
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
