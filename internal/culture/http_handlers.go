package culture

import (
	"net/http"

	"lifelock-backend/internal/httpx"
)

// RegisterRoutes mounts the culture endpoints. They are pure functions over
// static tables and are not behind auth.
func RegisterRoutes(mux *http.ServeMux, s *Scorer) {
	mux.HandleFunc("GET /culture/profiles", ProfilesHandler(s))
	mux.HandleFunc("POST /culture/score", ScoreHandler(s))
	mux.HandleFunc("POST /culture/adapt", AdaptHandler(s))
	mux.HandleFunc("POST /culture/rank", RankHandler(s))
}

// ProfilesHandler lists profiles and known mechanics.
func ProfilesHandler(s *Scorer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"profiles":  s.Profiles(),
			"mechanics": s.Mechanics(),
		})
	}
}

func ScoreHandler(s *Scorer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Feature Feature `json:"feature"`
			Profile string  `json:"profile"`
		}
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		httpx.WriteJSON(w, http.StatusOK, s.Score(req.Feature, req.Profile))
	}
}

func AdaptHandler(s *Scorer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Feature Feature `json:"feature"`
			Profile string  `json:"profile"`
		}
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		httpx.WriteJSON(w, http.StatusOK, s.Adapt(req.Feature, req.Profile))
	}
}

func RankHandler(s *Scorer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Feature Feature `json:"feature"`
		}
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"ranking": s.Rank(req.Feature)})
	}
}
