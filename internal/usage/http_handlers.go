package usage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"lifelock-backend/internal/auth"
	"lifelock-backend/internal/httpx"
)

// DailySource serves stored daily rollups.
type DailySource interface {
	DailySummaries(ctx context.Context, from, to string) ([]DailySummary, error)
}

// Routes bundles what the usage handlers need.
type Routes struct {
	API      API
	Daily    DailySource
	Recorder *Recorder
	Prices   *PriceTable
}

// RegisterRoutes mounts the usage API; wrap authenticates each handler.
func RegisterRoutes(mux *http.ServeMux, rt Routes, wrap func(http.HandlerFunc) http.HandlerFunc) {
	if rt.Prices == nil {
		rt.Prices = DefaultPrices()
	}
	mux.HandleFunc("GET /usage/stats", wrap(StatsHandler(rt.API)))
	mux.HandleFunc("GET /usage/range", wrap(RangeHandler(rt.API)))
	mux.HandleFunc("GET /usage/sessions", wrap(SessionsHandler(rt.API)))
	mux.HandleFunc("GET /usage/estimate", EstimateHandler(rt.Prices))
	if rt.Daily != nil {
		mux.HandleFunc("GET /usage/daily", wrap(DailyHandler(rt.Daily)))
	}
	if rt.Recorder != nil {
		mux.HandleFunc("POST /usage/events", wrap(RecordEventHandler(rt.Recorder)))
	}
}

// parseDay accepts yyyy-MM-dd or an RFC 3339 timestamp.
func parseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func optionalDay(q, name string) (*time.Time, error) {
	if q == "" {
		return nil, nil
	}
	t, err := parseDay(q)
	if err != nil {
		return nil, errors.New(name + " must be yyyy-MM-dd or RFC 3339")
	}
	return &t, nil
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidRange), errors.Is(err, ErrInvalidOrder):
		httpx.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrRecorderClosed):
		httpx.Error(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		httpx.Error(w, http.StatusGatewayTimeout, "request cancelled")
	default:
		httpx.Error(w, http.StatusInternalServerError, "internal error")
	}
}

func StatsHandler(api API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := api.UsageStats(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, stats)
	}
}

func RangeHandler(api API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		start, err := parseDay(q.Get("start"))
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, "start must be yyyy-MM-dd or RFC 3339")
			return
		}
		end, err := parseDay(q.Get("end"))
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, "end must be yyyy-MM-dd or RFC 3339")
			return
		}
		stats, err := api.UsageByDateRange(r.Context(), start, end)
		if err != nil {
			writeError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, stats)
	}
}

func SessionsHandler(api API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		since, err := optionalDay(q.Get("since"), "since")
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		until, err := optionalDay(q.Get("until"), "until")
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		projects, err := api.SessionStats(r.Context(), since, until, q.Get("order"))
		if err != nil {
			writeError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, projects)
	}
}

func DailyHandler(src DailySource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		from, to := q.Get("start"), q.Get("end")
		for _, d := range []string{from, to} {
			if d == "" {
				continue
			}
			if _, err := time.Parse(dateLayout, d); err != nil {
				httpx.Error(w, http.StatusBadRequest, "dates must be yyyy-MM-dd")
				return
			}
		}
		days, err := src.DailySummaries(r.Context(), from, to)
		if err != nil {
			writeError(w, err)
			return
		}
		if days == nil {
			days = []DailySummary{}
		}
		httpx.WriteJSON(w, http.StatusOK, days)
	}
}

type recordRequest struct {
	EventName   string          `json:"event_name"`
	SessionID   string          `json:"session_id"`
	Model       string          `json:"model"`
	ProjectPath string          `json:"project_path"`
	Timestamp   *time.Time      `json:"timestamp"`
	Properties  json.RawMessage `json:"properties"`
	TokenCounts
}

// RecordEventHandler appends one usage event. The session falls back to the
// X-Session-Id header; Idempotency-Key makes retries safe.
func RecordEventHandler(rec *Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body recordRequest
		if err := httpx.DecodeJSON(w, r, &body); err != nil {
			httpx.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(body.Model) == "" {
			httpx.Errors(w, http.StatusUnprocessableEntity, []string{"model is required"})
			return
		}
		if len(body.Properties) > 0 && !json.Valid(body.Properties) {
			httpx.Errors(w, http.StatusUnprocessableEntity, []string{"properties must be a JSON object"})
			return
		}

		env := FromRequest(r)
		env.UserID, _ = auth.UserIDFromContext(r.Context())
		e := Event{
			EventName:      body.EventName,
			SessionID:      strings.TrimSpace(body.SessionID),
			Model:          strings.TrimSpace(body.Model),
			TokenCounts:    body.TokenCounts,
			ProjectPath:    strings.TrimSpace(body.ProjectPath),
			UserID:         env.UserID,
			Properties:     withEnvelope(body.Properties, env),
			SourceEventKey: SourceEventKeyFromRequest(r),
		}
		if e.SessionID == "" {
			e.SessionID = env.SessionID
		}
		if body.Timestamp != nil {
			e.Timestamp = *body.Timestamp
		}

		stored, inserted, err := rec.Record(r.Context(), e)
		if err != nil {
			writeError(w, err)
			return
		}
		status := http.StatusCreated
		if !inserted {
			status = http.StatusOK
		}
		httpx.WriteJSON(w, status, map[string]any{"event": stored, "inserted": inserted})
	}
}

// withEnvelope adds platform and app version to the client's properties.
func withEnvelope(raw json.RawMessage, env Envelope) json.RawMessage {
	props := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &props); err != nil {
			props = map[string]any{"value": raw}
		}
	}
	props["platform"] = env.Platform
	if env.AppVersion != "" {
		props["app_version"] = env.AppVersion
	}
	b, err := json.Marshal(props)
	if err != nil {
		return nil
	}
	return b
}

func EstimateHandler(prices *PriceTable) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var tokens TokenCounts
		for _, f := range []struct {
			name string
			dst  *int64
		}{
			{"input", &tokens.Input},
			{"output", &tokens.Output},
			{"cache_creation", &tokens.CacheCreation},
			{"cache_read", &tokens.CacheRead},
		} {
			v := q.Get(f.name)
			if v == "" {
				continue
			}
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < 0 {
				httpx.Error(w, http.StatusBadRequest, f.name+" must be a non-negative integer")
				return
			}
			*f.dst = n
		}
		model := q.Get("model")
		resolved, pricing := prices.Resolve(model)
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"model":          model,
			"priced_as":      resolved,
			"cost_usd":       pricing.Cost(tokens),
			"total_tokens":   tokens.Total(),
			"per_token_rate": pricing,
		})
	}
}
