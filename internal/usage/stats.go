package usage

import (
	"path/filepath"
	"sort"
	"time"
)

const dateLayout = "2006-01-02"

// UsageStats aggregates a set of events. Costs are USD, dates are
// yyyy-MM-dd in the rollup timezone.
type UsageStats struct {
	TotalCost                float64        `json:"total_cost"`
	TotalTokens              int64          `json:"total_tokens"`
	TotalInputTokens         int64          `json:"total_input_tokens"`
	TotalOutputTokens        int64          `json:"total_output_tokens"`
	TotalCacheCreationTokens int64          `json:"total_cache_creation_tokens"`
	TotalCacheReadTokens     int64          `json:"total_cache_read_tokens"`
	TotalSessions            int            `json:"total_sessions"`
	ByModel                  []ModelUsage   `json:"by_model"`
	ByDate                   []DailyUsage   `json:"by_date"`
	ByProject                []ProjectUsage `json:"by_project"`
}

type ModelUsage struct {
	Model               string  `json:"model"`
	TotalCost           float64 `json:"total_cost"`
	TotalTokens         int64   `json:"total_tokens"`
	InputTokens         int64   `json:"input_tokens"`
	OutputTokens        int64   `json:"output_tokens"`
	CacheCreationTokens int64   `json:"cache_creation_tokens"`
	CacheReadTokens     int64   `json:"cache_read_tokens"`
	SessionCount        int     `json:"session_count"`
}

type DailyUsage struct {
	Date        string   `json:"date"`
	TotalCost   float64  `json:"total_cost"`
	TotalTokens int64    `json:"total_tokens"`
	ModelsUsed  []string `json:"models_used"`
}

type ProjectUsage struct {
	ProjectPath  string    `json:"project_path"`
	ProjectName  string    `json:"project_name"`
	TotalCost    float64   `json:"total_cost"`
	TotalTokens  int64     `json:"total_tokens"`
	SessionCount int       `json:"session_count"`
	LastUsed     time.Time `json:"last_used"`
}

func (s *UsageStats) setTotals(t TokenCounts) {
	s.TotalInputTokens = t.Input
	s.TotalOutputTokens = t.Output
	s.TotalCacheCreationTokens = t.CacheCreation
	s.TotalCacheReadTokens = t.CacheRead
	s.TotalTokens = t.Total()
}

// Summarize aggregates events. Models are ordered by cost (highest first),
// dates oldest first and projects by cost.
func Summarize(events []Event, loc *time.Location) UsageStats {
	if loc == nil {
		loc = time.UTC
	}

	type modelAcc struct {
		ModelUsage
		tokens   TokenCounts
		sessions map[string]bool
	}
	type dayAcc struct {
		DailyUsage
		models map[string]bool
	}

	var (
		totals   TokenCounts
		stats    UsageStats
		sessions = map[string]bool{}
		models   = map[string]*modelAcc{}
		days     = map[string]*dayAcc{}
	)
	for _, e := range events {
		stats.TotalCost += e.CostUSD
		totals.add(e.TokenCounts)
		if e.SessionID != "" {
			sessions[e.SessionID] = true
		}

		m, ok := models[e.Model]
		if !ok {
			m = &modelAcc{ModelUsage: ModelUsage{Model: e.Model}, sessions: map[string]bool{}}
			models[e.Model] = m
		}
		m.TotalCost += e.CostUSD
		m.tokens.add(e.TokenCounts)
		if e.SessionID != "" {
			m.sessions[e.SessionID] = true
		}

		date := e.Timestamp.In(loc).Format(dateLayout)
		d, ok := days[date]
		if !ok {
			d = &dayAcc{DailyUsage: DailyUsage{Date: date}, models: map[string]bool{}}
			days[date] = d
		}
		d.TotalCost += e.CostUSD
		d.TotalTokens += e.Total()
		d.models[e.Model] = true
	}

	stats.setTotals(totals)
	stats.TotalSessions = len(sessions)

	stats.ByModel = make([]ModelUsage, 0, len(models))
	for _, m := range models {
		u := m.ModelUsage
		u.InputTokens = m.tokens.Input
		u.OutputTokens = m.tokens.Output
		u.CacheCreationTokens = m.tokens.CacheCreation
		u.CacheReadTokens = m.tokens.CacheRead
		u.TotalTokens = m.tokens.Total()
		u.SessionCount = len(m.sessions)
		stats.ByModel = append(stats.ByModel, u)
	}
	sort.Slice(stats.ByModel, func(i, j int) bool {
		if stats.ByModel[i].TotalCost != stats.ByModel[j].TotalCost {
			return stats.ByModel[i].TotalCost > stats.ByModel[j].TotalCost
		}
		return stats.ByModel[i].Model < stats.ByModel[j].Model
	})

	stats.ByDate = make([]DailyUsage, 0, len(days))
	for _, d := range days {
		u := d.DailyUsage
		u.ModelsUsed = sortedKeys(d.models)
		stats.ByDate = append(stats.ByDate, u)
	}
	sort.Slice(stats.ByDate, func(i, j int) bool { return stats.ByDate[i].Date < stats.ByDate[j].Date })

	stats.ByProject = ByProject(events, "cost")
	return stats
}

// ByProject groups events per project path. order is "asc" or "desc" by
// last use, or "cost" for highest cost first.
func ByProject(events []Event, order string) []ProjectUsage {
	type projectAcc struct {
		ProjectUsage
		sessions map[string]bool
	}
	projects := map[string]*projectAcc{}
	for _, e := range events {
		p, ok := projects[e.ProjectPath]
		if !ok {
			p = &projectAcc{
				ProjectUsage: ProjectUsage{ProjectPath: e.ProjectPath, ProjectName: projectName(e.ProjectPath)},
				sessions:     map[string]bool{},
			}
			projects[e.ProjectPath] = p
		}
		p.TotalCost += e.CostUSD
		p.TotalTokens += e.Total()
		if e.SessionID != "" {
			p.sessions[e.SessionID] = true
		}
		if e.Timestamp.After(p.LastUsed) {
			p.LastUsed = e.Timestamp
		}
	}

	out := make([]ProjectUsage, 0, len(projects))
	for _, p := range projects {
		u := p.ProjectUsage
		u.SessionCount = len(p.sessions)
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch order {
		case "asc":
			if !a.LastUsed.Equal(b.LastUsed) {
				return a.LastUsed.Before(b.LastUsed)
			}
		case "cost":
			if a.TotalCost != b.TotalCost {
				return a.TotalCost > b.TotalCost
			}
		default:
			if !a.LastUsed.Equal(b.LastUsed) {
				return a.LastUsed.After(b.LastUsed)
			}
		}
		return a.ProjectPath < b.ProjectPath
	})
	return out
}

func projectName(path string) string {
	if path == "" {
		return "unknown"
	}
	return filepath.Base(path)
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DailySummary is the rollup of one user's events on one calendar day.
type DailySummary struct {
	Date     string `json:"date"`
	UserID   int    `json:"user_id"`
	Events   int    `json:"events"`
	Sessions int    `json:"sessions"`
	TokenCounts
	TotalTokens int64     `json:"total_tokens"`
	CostUSD     float64   `json:"cost_usd"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SummarizeDay rolls up events already restricted to one day.
func SummarizeDay(userID int, date string, events []Event) DailySummary {
	s := DailySummary{Date: date, UserID: userID, Events: len(events)}
	sessions := map[string]bool{}
	for _, e := range events {
		s.add(e.TokenCounts)
		s.CostUSD += e.CostUSD
		if e.SessionID != "" {
			sessions[e.SessionID] = true
		}
	}
	s.Sessions = len(sessions)
	s.TotalTokens = s.Total()
	return s
}

// dayBounds returns [start, end) of the calendar day containing t in loc.
func dayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	lt := t.In(loc)
	start := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
