package usage

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is a Store kept in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	events    []Event
	keys      map[string]bool
	summaries map[summaryKey]DailySummary
}

type summaryKey struct {
	date   string
	userID int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		keys:      make(map[string]bool),
		summaries: make(map[summaryKey]DailySummary),
	}
}

func (s *MemoryStore) Append(_ context.Context, e Event) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.SourceEventKey != "" {
		if s.keys[e.SourceEventKey] {
			return false, nil
		}
		s.keys[e.SourceEventKey] = true
	}
	s.events = append(s.events, e)
	return true, nil
}

func (s *MemoryStore) Events(_ context.Context, f Filter) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.events {
		if e.UserID != f.UserID {
			continue
		}
		if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
			continue
		}
		if !f.Until.IsZero() && !e.Timestamp.Before(f.Until) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *MemoryStore) UpsertDailySummary(_ context.Context, d DailySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.TotalTokens = d.Total()
	s.summaries[summaryKey{date: d.Date, userID: d.UserID}] = d
	return nil
}

func (s *MemoryStore) DailySummaries(_ context.Context, userID int, from, to string) ([]DailySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []DailySummary
	for k, d := range s.summaries {
		if k.userID != userID || (from != "" && k.date < from) || (to != "" && k.date > to) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}
