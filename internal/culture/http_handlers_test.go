package culture

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMux() *http.ServeMux {
	mux := http.NewServeMux()
	RegisterRoutes(mux, DefaultScorer())
	return mux
}

func do(t *testing.T, mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestProfilesHandler(t *testing.T) {
	rec := do(t, newTestMux(), http.MethodGet, "/culture/profiles", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Profiles  []Profile `json:"profiles"`
		Mechanics []string  `json:"mechanics"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Profiles, 8)
	assert.Contains(t, body.Mechanics, "streaks")
}

func TestScoreHandler(t *testing.T) {
	mux := newTestMux()
	rec := do(t, mux, http.MethodPost, "/culture/score",
		`{"feature":{"name":"board","mechanics":["leaderboard"]},"profile":"sweden"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var fs FitScore
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fs))
	assert.Equal(t, "sweden", fs.Profile)
	assert.Equal(t, LevelGood, fs.Level)
	assert.Len(t, fs.Warnings, 1)

	rec = do(t, mux, http.MethodPost, "/culture/score", `{"feature":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdaptAndRankHandlers(t *testing.T) {
	mux := newTestMux()

	rec := do(t, mux, http.MethodPost, "/culture/adapt", `{"feature":{"mechanics":["badges"]},"profile":"us"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var a Adaptation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.Equal(t, "us", a.Profile)
	assert.Contains(t, a.Competition, "open leaderboards")

	rec = do(t, mux, http.MethodPost, "/culture/rank", `{"feature":{"mechanics":["team_challenge"]}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Ranking []FitScore `json:"ranking"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Ranking, 8)
}
