package usage

import (
	"context"
	"math"

	"kamiscan-backend/internal/accounts"
)

// minutesSavedPerDocument is the reading time a summary is credited with.
const minutesSavedPerDocument = 15

// Activity aggregates an account's persisted history.
type Activity struct {
	TotalProcessed    int
	TotalChatSessions int
	TotalChatMessages int
	AvgConfidence     float64
}

// ActivitySource reads history owned by other packages.
type ActivitySource interface {
	Activity(ctx context.Context, accountID string) (Activity, error)
}

// Stats is the body of GET /user/stats.
type Stats struct {
	TotalProcessed    int    `json:"totalProcessed"`
	TotalChatSessions int    `json:"totalChatSessions"`
	TotalChatMessages int    `json:"totalChatMessages"`
	TimesSaved        int    `json:"timesSaved"`
	AccuracyRate      int    `json:"accuracyRate"`
	Subscription      string `json:"subscription"`
	UsageCount        int    `json:"usageCount"`
	UsageLimit        int    `json:"usageLimit"`
	Remaining         int    `json:"remaining"`
	LastResetDate     string `json:"lastResetDate"`
	NextResetDate     string `json:"nextResetDate"`
}

// BuildStats combines the quota counter with historical activity.
func BuildStats(account accounts.Account, activity Activity) Stats {
	accuracy := 0
	if activity.AvgConfidence > 0 {
		accuracy = int(math.Round(activity.AvgConfidence * 100))
	}
	return Stats{
		TotalProcessed:    activity.TotalProcessed,
		TotalChatSessions: activity.TotalChatSessions,
		TotalChatMessages: activity.TotalChatMessages,
		TimesSaved:        activity.TotalProcessed * minutesSavedPerDocument,
		AccuracyRate:      accuracy,
		Subscription:      account.Subscription,
		UsageCount:        account.UsageCount,
		UsageLimit:        account.UsageLimit,
		Remaining:         account.Remaining(),
		LastResetDate:     account.LastResetDate.UTC().Format("2006-01-02T15:04:05Z07:00"),
		NextResetDate:     NextReset(account).UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}
