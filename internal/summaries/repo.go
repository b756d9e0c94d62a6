package summaries

import (
	"context"
	"time"
)

// Filter scopes record queries. An empty AccountID spans all accounts.
type Filter struct {
	AccountID string
	Since     time.Time
}

// Aggregate summarizes the records matched by a Filter.
type Aggregate struct {
	Count           int
	AvgProcessingMs float64
	AvgConfidence   float64
	// Daily counts records per UTC day, keyed YYYY-MM-DD.
	Daily map[string]int
}

// Repo persists processing records. Records are never updated.
type Repo interface {
	Create(ctx context.Context, record Record) error
	// GetByID only returns records owned by accountID.
	GetByID(ctx context.Context, accountID, recordID string) (Record, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]Record, error)
	// ListRecent returns up to limit records matched by filter, newest first.
	ListRecent(ctx context.Context, filter Filter, limit int) ([]Record, error)
	Aggregate(ctx context.Context, filter Filter) (Aggregate, error)
}

const dayLayout = "2006-01-02"
