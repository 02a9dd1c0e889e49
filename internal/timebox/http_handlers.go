package timebox

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"lifelock-backend/internal/auth"
	"lifelock-backend/internal/httpx"
)

// RegisterRoutes mounts the timebox API; wrap authenticates each handler.
func RegisterRoutes(mux *http.ServeMux, s *Scheduler, wrap func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("GET /timebox/{date}", wrap(GetDayHandler(s)))
	mux.HandleFunc("PUT /timebox/{date}", wrap(ReplaceDayHandler(s)))
	mux.HandleFunc("POST /timebox/{date}/tasks", wrap(CreateTaskHandler(s)))
	mux.HandleFunc("PATCH /timebox/{date}/tasks/{id}", wrap(UpdateTaskHandler(s)))
	mux.HandleFunc("DELETE /timebox/{date}/tasks/{id}", wrap(DeleteTaskHandler(s)))
	mux.HandleFunc("POST /timebox/{date}/tasks/{id}/toggle", wrap(ToggleTaskHandler(s)))
	mux.HandleFunc("POST /timebox/{date}/tasks/{id}/autofit", wrap(AutoFitHandler(s)))
	mux.HandleFunc("POST /timebox/{date}/check", wrap(CheckHandler(s)))
	mux.HandleFunc("GET /timebox/{date}/density", wrap(DensityHandler(s)))
	mux.HandleFunc("GET /timebox/{date}/gaps", wrap(GapsHandler(s)))
	mux.HandleFunc("POST /timebox/{date}/suggest", wrap(SuggestHandler(s)))
}

func dayKey(w http.ResponseWriter, r *http.Request) (DayKey, bool) {
	uid, _ := auth.UserIDFromContext(r.Context())
	key, err := NewDayKey(uid, r.PathValue("date"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return DayKey{}, false
	}
	return key, true
}

// writeError maps scheduler errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	var cerr *ConflictError
	switch {
	case errors.As(err, &verr):
		httpx.Errors(w, http.StatusUnprocessableEntity, verr.Problems)
	case errors.As(err, &cerr):
		httpx.Errors(w, http.StatusConflict, cerr.Problems())
	case errors.Is(err, ErrNotFound):
		httpx.Error(w, http.StatusNotFound, "task not found")
	case errors.Is(err, ErrNoFreeSlot):
		httpx.Error(w, http.StatusConflict, "no free slot")
	default:
		httpx.Error(w, http.StatusInternalServerError, "internal error")
	}
}

// taskBody is a Task as the day view returns it. Clients syncing a day send
// tasks back unchanged, so the derived view fields are accepted and dropped.
type taskBody struct {
	Task
	Duration    json.RawMessage `json:"duration,omitempty"`
	Color       json.RawMessage `json:"color,omitempty"`
	Position    json.RawMessage `json:"position,omitempty"`
	Conflicting json.RawMessage `json:"conflicting,omitempty"`
}

func GetDayHandler(s *Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := dayKey(w, r)
		if !ok {
			return
		}
		view, err := s.Day(r.Context(), key)
		if err != nil {
			writeError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, view)
	}
}

func ReplaceDayHandler(s *Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := dayKey(w, r)
		if !ok {
			return
		}
		var body struct {
			Tasks []taskBody `json:"tasks"`
		}
		if err := httpx.DecodeJSON(w, r, &body); err != nil {
			httpx.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		in := make([]Task, len(body.Tasks))
		for i, t := range body.Tasks {
			in[i] = t.Task
		}
		tasks, err := s.Replace(r.Context(), key, in)
		if err != nil {
			writeError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
	}
}

func CreateTaskHandler(s *Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := dayKey(w, r)
		if !ok {
			return
		}
		var in Input
		if err := httpx.DecodeJSON(w, r, &in); err != nil {
			httpx.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		t, err := s.Create(r.Context(), key, in)
		if err != nil {
			writeError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, t)
	}
}

func UpdateTaskHandler(s *Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := dayKey(w, r)
		if !ok {
			return
		}
		var p Patch
		if err := httpx.DecodeJSON(w, r, &p); err != nil {
			httpx.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		t, err := s.Update(r.Context(), key, r.PathValue("id"), p)
		if err != nil {
			writeError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, t)
	}
}

func DeleteTaskHandler(s *Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := dayKey(w, r)
		if !ok {
			return
		}
		if err := s.Delete(r.Context(), key, r.PathValue("id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ToggleTaskHandler(s *Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := dayKey(w, r)
		if !ok {
			return
		}
		t, err := s.Toggle(r.Context(), key, r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, t)
	}
}

func AutoFitHandler(s *Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := dayKey(w, r)
		if !ok {
			return
		}
		t, err := s.AutoFit(r.Context(), key, r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, t)
	}
}

// CheckHandler validates a candidate without saving. An id in the body marks
// an edit so the task is not compared against itself.
func CheckHandler(s *Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := dayKey(w, r)
		if !ok {
			return
		}
		var candidate taskBody
		if err := httpx.DecodeJSON(w, r, &candidate); err != nil {
			httpx.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		problems, err := s.Check(r.Context(), key, candidate.Task)
		if err != nil {
			writeError(w, err)
			return
		}
		if problems == nil {
			problems = []string{}
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"valid":  len(problems) == 0,
			"errors": problems,
		})
	}
}

func DensityHandler(s *Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := dayKey(w, r)
		if !ok {
			return
		}
		density, err := s.Density(r.Context(), key)
		if err != nil {
			writeError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"density": density})
	}
}

func GapsHandler(s *Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := dayKey(w, r)
		if !ok {
			return
		}
		q := r.URL.Query()
		minMinutes := 30
		if v := q.Get("min"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				httpx.Error(w, http.StatusBadRequest, "min must be a positive number of minutes")
				return
			}
			minMinutes = n
		}
		window, err := NewWindow(q.Get("from"), q.Get("to"))
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, "invalid window: "+err.Error())
			return
		}
		gaps, err := s.Gaps(r.Context(), key, minMinutes, window)
		if err != nil {
			writeError(w, err)
			return
		}
		if gaps == nil {
			gaps = []Gap{}
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"gaps": gaps})
	}
}

func SuggestHandler(s *Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := dayKey(w, r)
		if !ok {
			return
		}
		var body struct {
			Pending []Pending `json:"pending"`
			From    string    `json:"from"`
			To      string    `json:"to"`
		}
		if err := httpx.DecodeJSON(w, r, &body); err != nil {
			httpx.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		window, err := NewWindow(body.From, body.To)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, "invalid window: "+err.Error())
			return
		}
		placed, unplaced, err := s.Suggest(r.Context(), key, body.Pending, window)
		if err != nil {
			writeError(w, err)
			return
		}
		if placed == nil {
			placed = []Task{}
		}
		if unplaced == nil {
			unplaced = []Pending{}
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"placed": placed, "unplaced": unplaced})
	}
}
