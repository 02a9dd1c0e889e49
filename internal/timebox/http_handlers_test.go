package timebox

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifelock-backend/internal/auth"
)

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	RegisterRoutes(mux, newTestScheduler(NewMemoryRepository()), auth.New(nil, nil).Wrap)
	return mux
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHandlers_CreateConflictAndDay(t *testing.T) {
	mux := newTestMux(t)

	rec := do(t, mux, http.MethodPost, "/timebox/2025-01-15/tasks",
		`{"title":"Deep work","startTime":"09:00","endTime":"10:30","category":"deep-work"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	assert.Equal(t, "id-1", created["id"])

	rec = do(t, mux, http.MethodPost, "/timebox/2025-01-15/tasks",
		`{"title":"Email","startTime":"10:00","endTime":"10:45","category":"admin"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, []any{`overlaps with "Deep work" (09:00-10:30)`}, decode(t, rec)["errors"])

	rec = do(t, mux, http.MethodGet, "/timebox/2025-01-15", "")
	require.Equal(t, http.StatusOK, rec.Code)
	day := decode(t, rec)
	assert.Equal(t, "2025-01-15", day["date"])
	tasks := day["tasks"].([]any)
	require.Len(t, tasks, 1)
	first := tasks[0].(map[string]any)
	assert.Equal(t, float64(90), first["duration"])
	assert.Equal(t, "#3b82f6", first["color"])
	assert.Equal(t, []any{}, day["conflicts"])
}

func TestHandlers_Errors(t *testing.T) {
	mux := newTestMux(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"bad date", http.MethodGet, "/timebox/15-01-2025", "", http.StatusBadRequest},
		{"invalid json", http.MethodPost, "/timebox/2025-01-15/tasks", `{"title":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/timebox/2025-01-15/tasks", `{"duration":30}`, http.StatusBadRequest},
		{"validation", http.MethodPost, "/timebox/2025-01-15/tasks", `{"title":"","startTime":"9","endTime":"10:00","category":"admin"}`, http.StatusUnprocessableEntity},
		{"missing task", http.MethodPatch, "/timebox/2025-01-15/tasks/nope", `{"title":"x"}`, http.StatusNotFound},
		{"missing toggle", http.MethodPost, "/timebox/2025-01-15/tasks/nope/toggle", "", http.StatusNotFound},
		{"bad gap min", http.MethodGet, "/timebox/2025-01-15/gaps?min=abc", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, mux, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestHandlers_AutoFitNoFreeSlot(t *testing.T) {
	mux := newTestMux(t)

	rec := do(t, mux, http.MethodPut, "/timebox/2025-01-15", `{"tasks":[
		{"id":"all","title":"Offsite","startTime":"00:00","endTime":"24:00","category":"deep-work","completed":false},
		{"id":"b","title":"Email","startTime":"10:00","endTime":"10:45","category":"admin","completed":false}
	]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, mux, http.MethodPost, "/timebox/2025-01-15/tasks/b/autofit", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "no free slot", decode(t, rec)["error"])
}

func TestHandlers_CheckGapsDensitySuggest(t *testing.T) {
	mux := newTestMux(t)
	rec := do(t, mux, http.MethodPost, "/timebox/2025-01-15/tasks",
		`{"title":"Deep work","startTime":"09:00","endTime":"10:30","category":"deep-work"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, mux, http.MethodPost, "/timebox/2025-01-15/check",
		`{"title":"Email","startTime":"10:30","endTime":"11:00","category":"admin"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	check := decode(t, rec)
	assert.Equal(t, true, check["valid"])
	assert.Equal(t, []any{}, check["errors"])

	rec = do(t, mux, http.MethodGet, "/timebox/2025-01-15/gaps?min=60&from=08:00&to=12:00", "")
	require.Equal(t, http.StatusOK, rec.Code)
	gaps := decode(t, rec)["gaps"].([]any)
	require.Len(t, gaps, 2)
	assert.Equal(t, "08:00", gaps[0].(map[string]any)["startTime"])
	assert.Equal(t, "10:30", gaps[1].(map[string]any)["startTime"])

	rec = do(t, mux, http.MethodGet, "/timebox/2025-01-15/density", "")
	require.Equal(t, http.StatusOK, rec.Code)
	density := decode(t, rec)["density"].([]any)
	require.Len(t, density, 24)
	assert.Equal(t, float64(60), density[9])
	assert.Equal(t, float64(30), density[10])

	rec = do(t, mux, http.MethodPost, "/timebox/2025-01-15/suggest",
		`{"pending":[{"title":"Walk","minutes":30,"category":"wellness"}],"from":"09:00","to":"12:00"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	suggested := decode(t, rec)
	placed := suggested["placed"].([]any)
	require.Len(t, placed, 1)
	assert.Equal(t, "10:30", placed[0].(map[string]any)["startTime"])
	assert.Equal(t, []any{}, suggested["unplaced"])
}

func TestHandlers_UsersSeeTheirOwnDays(t *testing.T) {
	secret := []byte("test-secret")
	mux := http.NewServeMux()
	RegisterRoutes(mux, newTestScheduler(NewMemoryRepository()), auth.New(secret, nil).Wrap)

	token, err := auth.GenerateToken(secret, 5, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/timebox/2025-01-15/tasks",
		strings.NewReader(`{"title":"Run","startTime":"07:00","endTime":"07:30","category":"wellness"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, mux, http.MethodGet, "/timebox/2025-01-15", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlers_DayViewTasksCanBeSentBack(t *testing.T) {
	mux := newTestMux(t)
	rec := do(t, mux, http.MethodPost, "/timebox/2025-01-10/tasks",
		`{"title":"Deep work","startTime":"09:00","endTime":"10:30","category":"deep-work"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, mux, http.MethodGet, "/timebox/2025-01-10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	tasks := decode(t, rec)["tasks"].([]any)
	require.Len(t, tasks, 1)
	view := tasks[0].(map[string]any)
	require.Contains(t, view, "position")

	// a stale derived duration is ignored, not trusted
	view["duration"] = 5
	body, err := json.Marshal(map[string]any{"tasks": []any{view}})
	require.NoError(t, err)
	rec = do(t, mux, http.MethodPut, "/timebox/2025-01-10", string(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, mux, http.MethodGet, "/timebox/2025-01-10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	again := decode(t, rec)["tasks"].([]any)
	require.Len(t, again, 1)
	assert.Equal(t, float64(90), again[0].(map[string]any)["duration"])

	rec = do(t, mux, http.MethodPost, "/timebox/2025-01-10/check",
		`{"id":"id-1","title":"Deep work","startTime":"09:00","endTime":"10:30","category":"deep-work","completed":false,"duration":90,"color":"#3b82f6","conflicting":false}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, decode(t, rec)["valid"])
}
