package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// InMemoryEventEmitter dispatches events synchronously to registered
// handlers, in registration order.
type InMemoryEventEmitter struct {
	handlers []EventHandler
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewInMemoryEventEmitter creates an emitter with no handlers.
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	return &InMemoryEventEmitter{
		handlers: make([]EventHandler, 0),
		logger:   logger.With("component", "event_emitter"),
	}
}

// RegisterHandler adds a handler.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, handler)
	e.logger.Debug("registered event handler", "handler_count", len(e.handlers))
}

// EmitEvent validates the event and hands it to every handler. A failing
// or panicking handler does not stop the others; all failures are joined
// into the returned error.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *TaskRequestEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}

	e.mu.RLock()
	handlers := make([]EventHandler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	log := e.logger.With("event_id", event.ID, "event_type", event.Type)

	if len(handlers) == 0 {
		log.Warn("no handlers registered for event")
		return nil
	}

	var errs []error
	for i, handler := range handlers {
		if err := dispatch(ctx, handler, event); err != nil {
			log.Error("handler failed to process event", "error", err, "handler_index", i)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func dispatch(ctx context.Context, h EventHandler, event *TaskRequestEvent) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("event handler panicked: %v", rec)
		}
	}()
	return h.HandleEvent(ctx, event)
}
