package usage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"lifelock-backend/internal/db"
)

// Store is the append-only event log plus its daily rollup table.
type Store interface {
	// Append inserts e and reports whether a row was written. An event whose
	// SourceEventKey is already stored is ignored.
	Append(ctx context.Context, e Event) (bool, error)
	Events(ctx context.Context, f Filter) ([]Event, error)
	UpsertDailySummary(ctx context.Context, s DailySummary) error
	DailySummaries(ctx context.Context, userID int, from, to string) ([]DailySummary, error)
}

// Filter selects one user's events in [Since, Until). Zero times are open
// bounds.
type Filter struct {
	UserID int
	Since  time.Time
	Until  time.Time
}

// SQLStore implements Store on postgres or sqlite.
type SQLStore struct {
	db      *sql.DB
	dialect db.Dialect
}

func NewSQLStore(conn *sql.DB, dialect db.Dialect) *SQLStore {
	return &SQLStore{db: conn, dialect: dialect}
}

func (s *SQLStore) Append(ctx context.Context, e Event) (bool, error) {
	props := string(e.Properties)
	if props == "" {
		props = "{}"
	}
	res, err := s.db.ExecContext(ctx, db.Rebind(s.dialect, `
		INSERT INTO usage_events (
			id, event_name, session_id, model, cost_usd,
			input_tokens, output_tokens, cache_creation_tokens, cache_read_tokens,
			project_path, user_id, event_time, properties, source_event_key
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_event_key) DO NOTHING
	`),
		e.ID, e.EventName, e.SessionID, e.Model, e.CostUSD,
		e.Input, e.Output, e.CacheCreation, e.CacheRead,
		e.ProjectPath, e.UserID, e.Timestamp.UnixMilli(), props, nullIfEmpty(e.SourceEventKey),
	)
	if err != nil {
		return false, fmt.Errorf("insert usage event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert usage event: %w", err)
	}
	return n > 0, nil
}

func (s *SQLStore) Events(ctx context.Context, f Filter) ([]Event, error) {
	where := []string{"user_id = ?"}
	args := []any{f.UserID}
	if !f.Since.IsZero() {
		where = append(where, "event_time >= ?")
		args = append(args, f.Since.UnixMilli())
	}
	if !f.Until.IsZero() {
		where = append(where, "event_time < ?")
		args = append(args, f.Until.UnixMilli())
	}

	rows, err := s.db.QueryContext(ctx, db.Rebind(s.dialect, `
		SELECT id, event_name, session_id, model, cost_usd,
			input_tokens, output_tokens, cache_creation_tokens, cache_read_tokens,
			project_path, user_id, event_time, properties, COALESCE(source_event_key, '')
		FROM usage_events
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY event_time, id
	`), args...)
	if err != nil {
		return nil, fmt.Errorf("query usage events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e      Event
			millis int64
			props  string
		)
		if err := rows.Scan(
			&e.ID, &e.EventName, &e.SessionID, &e.Model, &e.CostUSD,
			&e.Input, &e.Output, &e.CacheCreation, &e.CacheRead,
			&e.ProjectPath, &e.UserID, &millis, &props, &e.SourceEventKey,
		); err != nil {
			return nil, fmt.Errorf("scan usage event: %w", err)
		}
		e.Timestamp = time.UnixMilli(millis).UTC()
		if props != "" && props != "{}" {
			e.Properties = json.RawMessage(props)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *SQLStore) UpsertDailySummary(ctx context.Context, d DailySummary) error {
	updated := d.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err := s.db.ExecContext(ctx, db.Rebind(s.dialect, `
		INSERT INTO usage_daily_summary (
			summary_date, user_id, events, sessions,
			input_tokens, output_tokens, cache_creation_tokens, cache_read_tokens,
			cost_usd, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (summary_date, user_id) DO UPDATE SET
			events = excluded.events,
			sessions = excluded.sessions,
			input_tokens = excluded.input_tokens,
			output_tokens = excluded.output_tokens,
			cache_creation_tokens = excluded.cache_creation_tokens,
			cache_read_tokens = excluded.cache_read_tokens,
			cost_usd = excluded.cost_usd,
			updated_at = excluded.updated_at
	`),
		d.Date, d.UserID, d.Events, d.Sessions,
		d.Input, d.Output, d.CacheCreation, d.CacheRead,
		d.CostUSD, updated.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert daily summary %s: %w", d.Date, err)
	}
	return nil
}

// DailySummaries returns summaries with from <= date <= to, oldest first.
// Empty bounds are open.
func (s *SQLStore) DailySummaries(ctx context.Context, userID int, from, to string) ([]DailySummary, error) {
	where := []string{"user_id = ?"}
	args := []any{userID}
	if from != "" {
		where = append(where, "summary_date >= ?")
		args = append(args, from)
	}
	if to != "" {
		where = append(where, "summary_date <= ?")
		args = append(args, to)
	}

	rows, err := s.db.QueryContext(ctx, db.Rebind(s.dialect, `
		SELECT summary_date, user_id, events, sessions,
			input_tokens, output_tokens, cache_creation_tokens, cache_read_tokens,
			cost_usd, updated_at
		FROM usage_daily_summary
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY summary_date
	`), args...)
	if err != nil {
		return nil, fmt.Errorf("query daily summaries: %w", err)
	}
	defer rows.Close()

	var out []DailySummary
	for rows.Next() {
		var (
			d       DailySummary
			updated int64
		)
		if err := rows.Scan(
			&d.Date, &d.UserID, &d.Events, &d.Sessions,
			&d.Input, &d.Output, &d.CacheCreation, &d.CacheRead,
			&d.CostUSD, &updated,
		); err != nil {
			return nil, fmt.Errorf("scan daily summary: %w", err)
		}
		d.TotalTokens = d.Total()
		d.UpdatedAt = time.UnixMilli(updated).UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}

// RollupDay recomputes the summary of the calendar day containing day in
// loc from the event log and stores it.
func RollupDay(ctx context.Context, store Store, userID int, day time.Time, loc *time.Location) (DailySummary, error) {
	if loc == nil {
		loc = time.UTC
	}
	start, end := dayBounds(day, loc)
	events, err := store.Events(ctx, Filter{UserID: userID, Since: start, Until: end})
	if err != nil {
		return DailySummary{}, err
	}
	summary := SummarizeDay(userID, start.Format(dateLayout), events)
	summary.UpdatedAt = time.Now().UTC()
	if err := store.UpsertDailySummary(ctx, summary); err != nil {
		return DailySummary{}, err
	}
	return summary, nil
}

func nullIfEmpty(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
