package timebox

import (
	"context"
	"sync"
)

// Repository stores one task list per day. Save replaces the whole list.
type Repository interface {
	List(ctx context.Context, key DayKey) ([]Task, error)
	Save(ctx context.Context, key DayKey, tasks []Task) error
}

// MemoryRepository keeps lists in process memory.
type MemoryRepository struct {
	mu    sync.RWMutex
	lists map[string][]Task
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{lists: make(map[string][]Task)}
}

func (r *MemoryRepository) List(_ context.Context, key DayKey) ([]Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Task(nil), r.lists[key.String()]...), nil
}

func (r *MemoryRepository) Save(_ context.Context, key DayKey, tasks []Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists[key.String()] = append([]Task(nil), tasks...)
	return nil
}
