package timebox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lifelock-backend/internal/logging"
	"lifelock-backend/internal/xp"
)

var ErrNotFound = errors.New("task not found")

// Scheduler owns the read-modify-write cycle of a day's task list. Changes
// are applied to a copy and only become visible once Save succeeds, so a
// failed write leaves the stored list untouched.
type Scheduler struct {
	repo    Repository
	layout  Layout
	autofit AutoFitOptions
	logger  *zap.Logger
	locks   keyedMutex
	newID   func() string
}

func NewScheduler(repo Repository, layout Layout, autofit AutoFitOptions, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		repo:    repo,
		layout:  layout,
		autofit: autofit,
		logger:  logging.OrNop(logger),
		newID:   uuid.NewString,
	}
}

// TaskView is a task as the timeline renders it.
type TaskView struct {
	Task
	Duration    int      `json:"duration"`
	Color       string   `json:"color"`
	Position    Position `json:"position"`
	Conflicting bool     `json:"conflicting"`
}

type DayView struct {
	Date       string        `json:"date"`
	Tasks      []TaskView    `json:"tasks"`
	Conflicts  []Conflict    `json:"conflicts"`
	Density    [24]int       `json:"density"`
	GridHeight float64       `json:"gridHeight"`
	XP         xp.DaySummary `json:"xp"`
}

// List returns the stored tasks as they are, malformed ones included.
func (s *Scheduler) List(ctx context.Context, key DayKey) ([]Task, error) {
	return s.repo.List(ctx, key)
}

// Day builds the timeline view. Malformed stored tasks are dropped from the
// view with a warning.
func (s *Scheduler) Day(ctx context.Context, key DayKey) (DayView, error) {
	stored, err := s.repo.List(ctx, key)
	if err != nil {
		return DayView{}, err
	}

	tasks := make([]Task, 0, len(stored))
	for _, t := range stored {
		if _, _, ok := t.span(); !ok {
			s.logger.Warn("dropping malformed timebox from view",
				zap.String("day", key.String()), zap.String("id", t.ID),
				zap.String("start", t.StartTime), zap.String("end", t.EndTime))
			continue
		}
		tasks = append(tasks, t)
	}

	conflicting := ConflictingIDs(tasks)
	blocks := make([]xp.Block, 0, len(tasks))
	view := DayView{
		Date:       key.Date,
		Tasks:      make([]TaskView, 0, len(tasks)),
		Conflicts:  FindConflicts(tasks),
		Density:    HourlyDensity(tasks),
		GridHeight: s.layout.GridHeight(),
	}
	for _, t := range sortedValid(tasks) {
		view.Tasks = append(view.Tasks, TaskView{
			Task:        t,
			Duration:    t.Duration(),
			Color:       CategoryColor(t.Category),
			Position:    s.layout.Position(t.StartTime, t.EndTime),
			Conflicting: conflicting[t.ID],
		})
		blocks = append(blocks, xp.Block{Category: string(t.Category), Minutes: t.Duration(), Completed: t.Completed})
	}
	if view.Conflicts == nil {
		view.Conflicts = []Conflict{}
	}
	view.XP = xp.Summarize(blocks, 0)
	return view, nil
}

// Input is the editable part of a task.
type Input struct {
	Title       string   `json:"title"`
	StartTime   string   `json:"startTime"`
	EndTime     string   `json:"endTime"`
	Category    Category `json:"category"`
	Description string   `json:"description,omitempty"`
}

// Patch updates the non-nil fields of a task.
type Patch struct {
	Title       *string   `json:"title,omitempty"`
	StartTime   *string   `json:"startTime,omitempty"`
	EndTime     *string   `json:"endTime,omitempty"`
	Category    *Category `json:"category,omitempty"`
	Description *string   `json:"description,omitempty"`
	Completed   *bool     `json:"completed,omitempty"`
}

func (p Patch) apply(t Task) Task {
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.StartTime != nil {
		t.StartTime = strings.TrimSpace(*p.StartTime)
	}
	if p.EndTime != nil {
		t.EndTime = strings.TrimSpace(*p.EndTime)
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	return t
}

// Check validates a candidate against the stored day without saving.
func (s *Scheduler) Check(ctx context.Context, key DayKey, candidate Task) ([]string, error) {
	tasks, err := s.repo.List(ctx, key)
	if err != nil {
		return nil, err
	}
	return Validate(candidate, tasks), nil
}

// Create adds a task. Invalid fields return *ValidationError, overlaps
// return *ConflictError.
func (s *Scheduler) Create(ctx context.Context, key DayKey, in Input) (Task, error) {
	t := Task{
		ID:          s.newID(),
		Title:       strings.TrimSpace(in.Title),
		StartTime:   strings.TrimSpace(in.StartTime),
		EndTime:     strings.TrimSpace(in.EndTime),
		Category:    in.Category,
		Description: strings.TrimSpace(in.Description),
	}
	return s.mutate(ctx, key, "create", func(tasks []Task) ([]Task, Task, error) {
		if err := check(t, tasks); err != nil {
			return nil, Task{}, err
		}
		return append(tasks, t), t, nil
	})
}

// Update edits a task; moved or resized tasks must not overlap others.
func (s *Scheduler) Update(ctx context.Context, key DayKey, id string, p Patch) (Task, error) {
	return s.mutate(ctx, key, "update", func(tasks []Task) ([]Task, Task, error) {
		i := indexOf(tasks, id)
		if i < 0 {
			return nil, Task{}, ErrNotFound
		}
		updated := p.apply(tasks[i])
		if err := check(updated, tasks); err != nil {
			return nil, Task{}, err
		}
		tasks[i] = updated
		return tasks, updated, nil
	})
}

// Toggle flips a task's completion flag.
func (s *Scheduler) Toggle(ctx context.Context, key DayKey, id string) (Task, error) {
	return s.mutate(ctx, key, "toggle", func(tasks []Task) ([]Task, Task, error) {
		i := indexOf(tasks, id)
		if i < 0 {
			return nil, Task{}, ErrNotFound
		}
		tasks[i].Completed = !tasks[i].Completed
		return tasks, tasks[i], nil
	})
}

func (s *Scheduler) Delete(ctx context.Context, key DayKey, id string) error {
	_, err := s.mutate(ctx, key, "delete", func(tasks []Task) ([]Task, Task, error) {
		i := indexOf(tasks, id)
		if i < 0 {
			return nil, Task{}, ErrNotFound
		}
		removed := tasks[i]
		return append(tasks[:i], tasks[i+1:]...), removed, nil
	})
	return err
}

// AutoFit moves a task to the first later slot where it overlaps nothing
// and persists the new range. ErrNoFreeSlot leaves the day unchanged.
func (s *Scheduler) AutoFit(ctx context.Context, key DayKey, id string) (Task, error) {
	return s.mutate(ctx, key, "autofit", func(tasks []Task) ([]Task, Task, error) {
		i := indexOf(tasks, id)
		if i < 0 {
			return nil, Task{}, ErrNotFound
		}
		fitted, err := AutoFit(tasks, tasks[i], s.autofit)
		if err != nil {
			return nil, Task{}, err
		}
		tasks[i] = fitted
		return tasks, fitted, nil
	})
}

// Replace stores a whole day at once, as a client syncing its local list
// does. Every task must be well-formed and ids must be unique; overlaps are
// allowed and show up as conflicts in the day view.
func (s *Scheduler) Replace(ctx context.Context, key DayKey, tasks []Task) ([]Task, error) {
	seen := make(map[string]bool, len(tasks))
	var problems []string
	next := make([]Task, len(tasks))
	for i, t := range tasks {
		if t.ID == "" {
			t.ID = s.newID()
		}
		if seen[t.ID] {
			problems = append(problems, fmt.Sprintf("task %d: duplicate id %q", i+1, t.ID))
		}
		seen[t.ID] = true
		for _, p := range checkFields(t) {
			problems = append(problems, fmt.Sprintf("task %d: %s", i+1, p))
		}
		next[i] = t
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	unlock := s.locks.lock(key.String())
	defer unlock()
	if err := s.repo.Save(ctx, key, next); err != nil {
		s.logger.Error("saving timebox day failed", zap.String("day", key.String()), zap.String("op", "replace"), zap.Error(err))
		return nil, fmt.Errorf("save %s: %w", key, err)
	}
	return next, nil
}

func (s *Scheduler) Density(ctx context.Context, key DayKey) ([24]int, error) {
	tasks, err := s.repo.List(ctx, key)
	if err != nil {
		return [24]int{}, err
	}
	return HourlyDensity(tasks), nil
}

func (s *Scheduler) Gaps(ctx context.Context, key DayKey, minMinutes int, w Window) ([]Gap, error) {
	tasks, err := s.repo.List(ctx, key)
	if err != nil {
		return nil, err
	}
	return FindGaps(tasks, minMinutes, w), nil
}

func (s *Scheduler) Suggest(ctx context.Context, key DayKey, pending []Pending, w Window) ([]Task, []Pending, error) {
	tasks, err := s.repo.List(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	placed, unplaced := Suggest(tasks, pending, w)
	return placed, unplaced, nil
}

// mutate runs fn on a copy of the day under the day's lock and saves the
// result.
func (s *Scheduler) mutate(ctx context.Context, key DayKey, op string, fn func([]Task) ([]Task, Task, error)) (Task, error) {
	unlock := s.locks.lock(key.String())
	defer unlock()

	stored, err := s.repo.List(ctx, key)
	if err != nil {
		return Task{}, fmt.Errorf("load %s: %w", key, err)
	}
	next, changed, err := fn(append([]Task(nil), stored...))
	if err != nil {
		return Task{}, err
	}
	if err := s.repo.Save(ctx, key, next); err != nil {
		s.logger.Error("saving timebox day failed", zap.String("day", key.String()), zap.String("op", op), zap.Error(err))
		return Task{}, fmt.Errorf("save %s: %w", key, err)
	}
	s.logger.Debug("timebox day updated", zap.String("day", key.String()), zap.String("op", op), zap.String("id", changed.ID))
	return changed, nil
}

func indexOf(tasks []Task, id string) int {
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// keyedMutex serializes work per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedEntry)
	}
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
