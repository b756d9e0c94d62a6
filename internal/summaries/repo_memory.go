package summaries

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo stores records in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Record
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Record)}
}

func (r *MemoryRepo) Create(ctx context.Context, record Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[record.ID] = record
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, accountID, recordID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.byID[recordID]
	if !ok || record.AccountID != accountID {
		return Record{}, ErrNotFound
	}
	return record, nil
}

// ListByAccount returns records newest first.
func (r *MemoryRepo) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records := r.matching(Filter{AccountID: accountID})
	if offset < 0 {
		offset = 0
	}
	if offset >= len(records) {
		return []Record{}, nil
	}
	end := len(records)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return records[offset:end], nil
}

func (r *MemoryRepo) ListRecent(ctx context.Context, filter Filter, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records := r.matching(filter)
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (r *MemoryRepo) Aggregate(ctx context.Context, filter Filter) (Aggregate, error) {
	if err := ctx.Err(); err != nil {
		return Aggregate{}, err
	}
	agg := Aggregate{Daily: map[string]int{}}
	var totalMs, totalConfidence float64
	var withMs, withConfidence int
	for _, record := range r.matching(filter) {
		agg.Count++
		agg.Daily[record.CreatedAt.UTC().Format(dayLayout)]++
		if ms, ok := numeric(record.Metadata[MetaProcessingTime]); ok {
			totalMs += ms
			withMs++
		}
		if confidence, ok := numeric(record.Metadata[MetaConfidence]); ok {
			totalConfidence += confidence
			withConfidence++
		}
	}
	if withMs > 0 {
		agg.AvgProcessingMs = totalMs / float64(withMs)
	}
	if withConfidence > 0 {
		agg.AvgConfidence = totalConfidence / float64(withConfidence)
	}
	return agg, nil
}

func (r *MemoryRepo) matching(filter Filter) []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, 0, len(r.byID))
	for _, record := range r.byID {
		if filter.AccountID != "" && record.AccountID != filter.AccountID {
			continue
		}
		if !filter.Since.IsZero() && record.CreatedAt.Before(filter.Since) {
			continue
		}
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func numeric(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
