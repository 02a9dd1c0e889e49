// Package usage records model API consumption as an append-only event log,
// prices it from a static table and aggregates it into stats and daily
// summaries.
package usage

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// TokenCounts splits a request's tokens by kind.
type TokenCounts struct {
	Input         int64 `json:"input_tokens"`
	Output        int64 `json:"output_tokens"`
	CacheCreation int64 `json:"cache_creation_tokens"`
	CacheRead     int64 `json:"cache_read_tokens"`
}

func (t TokenCounts) Total() int64 {
	return t.Input + t.Output + t.CacheCreation + t.CacheRead
}

func (t *TokenCounts) add(o TokenCounts) {
	t.Input += o.Input
	t.Output += o.Output
	t.CacheCreation += o.CacheCreation
	t.CacheRead += o.CacheRead
}

func (t TokenCounts) clamp() TokenCounts {
	return TokenCounts{
		Input:         max(t.Input, 0),
		Output:        max(t.Output, 0),
		CacheCreation: max(t.CacheCreation, 0),
		CacheRead:     max(t.CacheRead, 0),
	}
}

// Event is one logged unit of model consumption. Rows are never updated;
// CostUSD is fixed when the event is recorded.
type Event struct {
	ID        string  `json:"id"`
	EventName string  `json:"event_name"`
	SessionID string  `json:"session_id"`
	Model     string  `json:"model"`
	CostUSD   float64 `json:"cost_usd"`
	TokenCounts
	ProjectPath    string          `json:"project_path"`
	UserID         int             `json:"user_id"`
	Timestamp      time.Time       `json:"timestamp"`
	Properties     json.RawMessage `json:"properties,omitempty"`
	SourceEventKey string          `json:"source_event_key,omitempty"`
}

const DefaultEventName = "model_request"

// Envelope holds the request-derived fields stored with every event.
type Envelope struct {
	UserID     int
	SessionID  string
	Platform   string
	AppVersion string
}

// FromRequest extracts envelope fields the backend can trust from headers.
func FromRequest(r *http.Request) Envelope {
	platform := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Platform")))
	switch platform {
	case "ios", "android", "web", "desktop", "cli":
	default:
		platform = "unknown"
	}
	return Envelope{
		SessionID:  strings.TrimSpace(r.Header.Get("X-Session-Id")),
		Platform:   platform,
		AppVersion: strings.TrimSpace(r.Header.Get("X-App-Version")),
	}
}

// SourceEventKeyFromRequest returns the client idempotency key, if any. A
// repeated key is stored once.
func SourceEventKeyFromRequest(r *http.Request) string {
	if k := strings.TrimSpace(r.Header.Get("Idempotency-Key")); k != "" {
		return k
	}
	return strings.TrimSpace(r.Header.Get("X-Source-Event-Key"))
}
