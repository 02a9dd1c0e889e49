package usage

import (
	"context"
	"fmt"
	"math"
	"time"
)

// MockAPI serves fixed fixture data after an artificial delay. Range queries
// do not filter events: they scale the all-time totals by the share of
// logged days that fall inside the range.
type MockAPI struct {
	latency time.Duration
	events  []Event
	stats   UsageStats
}

var mockStart = time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC)

const mockDays = 5

func NewMockAPI(latency time.Duration) *MockAPI {
	events := mockEvents(DefaultPrices())
	return &MockAPI{
		latency: latency,
		events:  events,
		stats:   Summarize(events, time.UTC),
	}
}

func mockEvents(prices *PriceTable) []Event {
	projects := []string{"/home/dev/lifelock", "/home/dev/notes"}
	var events []Event
	for day := 0; day < mockDays; day++ {
		ts := mockStart.AddDate(0, 0, day).Add(9 * time.Hour)
		session := fmt.Sprintf("mock-session-%d", day+1)
		n := int64(day + 1)
		for i, req := range []struct {
			model  string
			tokens TokenCounts
		}{
			{"claude-3.5-sonnet", TokenCounts{Input: 12_000 * n, Output: 3_000 * n, CacheCreation: 8_000, CacheRead: 40_000}},
			{"claude-3.5-haiku", TokenCounts{Input: 5_000, Output: 1_000 * n}},
		} {
			events = append(events, Event{
				ID:          fmt.Sprintf("mock-%d-%d", day+1, i+1),
				EventName:   DefaultEventName,
				SessionID:   session,
				Model:       req.model,
				CostUSD:     prices.Estimate(req.model, req.tokens),
				TokenCounts: req.tokens,
				ProjectPath: projects[(day+i)%len(projects)],
				Timestamp:   ts.Add(time.Duration(i) * 90 * time.Minute),
			})
		}
	}
	return events
}

func (m *MockAPI) wait(ctx context.Context) error {
	if m.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(m.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (m *MockAPI) UsageStats(ctx context.Context) (UsageStats, error) {
	if err := m.wait(ctx); err != nil {
		return UsageStats{}, err
	}
	return m.stats, nil
}

func (m *MockAPI) UsageByDateRange(ctx context.Context, start, end time.Time) (UsageStats, error) {
	from, to := start.UTC().Format(dateLayout), end.UTC().Format(dateLayout)
	if to < from {
		return UsageStats{}, ErrInvalidRange
	}
	if err := m.wait(ctx); err != nil {
		return UsageStats{}, err
	}

	var inRange []DailyUsage
	for _, d := range m.stats.ByDate {
		if d.Date >= from && d.Date <= to {
			inRange = append(inRange, d)
		}
	}
	if len(m.stats.ByDate) == 0 {
		return UsageStats{}, nil
	}
	ratio := float64(len(inRange)) / float64(len(m.stats.ByDate))
	out := scaleStats(m.stats, ratio)
	out.ByDate = inRange
	if out.ByDate == nil {
		out.ByDate = []DailyUsage{}
	}
	return out, nil
}

func (m *MockAPI) SessionStats(ctx context.Context, since, until *time.Time, order string) ([]ProjectUsage, error) {
	if order == "" {
		order = "desc"
	}
	if order != "asc" && order != "desc" {
		return nil, ErrInvalidOrder
	}
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	var events []Event
	for _, e := range m.events {
		day := e.Timestamp.Format(dateLayout)
		if since != nil && day < since.UTC().Format(dateLayout) {
			continue
		}
		if until != nil && day > until.UTC().Format(dateLayout) {
			continue
		}
		events = append(events, e)
	}
	return ByProject(events, order), nil
}

func scaleStats(s UsageStats, ratio float64) UsageStats {
	out := UsageStats{
		TotalCost:                s.TotalCost * ratio,
		TotalTokens:              scaleInt(s.TotalTokens, ratio),
		TotalInputTokens:         scaleInt(s.TotalInputTokens, ratio),
		TotalOutputTokens:        scaleInt(s.TotalOutputTokens, ratio),
		TotalCacheCreationTokens: scaleInt(s.TotalCacheCreationTokens, ratio),
		TotalCacheReadTokens:     scaleInt(s.TotalCacheReadTokens, ratio),
		TotalSessions:            int(scaleInt(int64(s.TotalSessions), ratio)),
		ByModel:                  make([]ModelUsage, len(s.ByModel)),
		ByProject:                make([]ProjectUsage, len(s.ByProject)),
	}
	for i, m := range s.ByModel {
		m.TotalCost *= ratio
		m.TotalTokens = scaleInt(m.TotalTokens, ratio)
		m.InputTokens = scaleInt(m.InputTokens, ratio)
		m.OutputTokens = scaleInt(m.OutputTokens, ratio)
		m.CacheCreationTokens = scaleInt(m.CacheCreationTokens, ratio)
		m.CacheReadTokens = scaleInt(m.CacheReadTokens, ratio)
		m.SessionCount = int(scaleInt(int64(m.SessionCount), ratio))
		out.ByModel[i] = m
	}
	for i, p := range s.ByProject {
		p.TotalCost *= ratio
		p.TotalTokens = scaleInt(p.TotalTokens, ratio)
		p.SessionCount = int(scaleInt(int64(p.SessionCount), ratio))
		out.ByProject[i] = p
	}
	return out
}

func scaleInt(v int64, ratio float64) int64 {
	return int64(math.Round(float64(v) * ratio))
}
