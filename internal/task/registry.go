package task

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrUnknownTaskType is returned when no factory is registered for a
// persisted task type.
var ErrUnknownTaskType = errors.New("unknown task type")

// Factory rebuilds an executable task from its persisted ID and payload.
type Factory func(id uuid.UUID, payload []byte) (Task, error)

// Registry maps task types to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register installs the factory for taskType, replacing any previous one.
func (r *Registry) Register(taskType string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[taskType] = f
}

// Rehydrate builds the task described by rec.
func (r *Registry) Rehydrate(rec Record) (Task, error) {
	r.mu.RLock()
	f, ok := r.factories[rec.Type]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskType, rec.Type)
	}
	t, err := f(rec.ID, rec.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to rehydrate %s task %s: %w", rec.Type, rec.ID, err)
	}
	return t, nil
}
