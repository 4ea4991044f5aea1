package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mygeslike/api/internal/events"
)

// Submitter accepts tasks for execution. *TaskRunner implements it.
type Submitter interface {
	Submit(ctx context.Context, task Task) error
}

// TaskFactoryEventHandler turns task request events into tasks through the
// registry and submits them. Events of unregistered types are ignored.
type TaskFactoryEventHandler struct {
	registry  *Registry
	submitter Submitter
	logger    *slog.Logger
}

// NewTaskFactoryEventHandler creates the handler.
func NewTaskFactoryEventHandler(registry *Registry, submitter Submitter, logger *slog.Logger) *TaskFactoryEventHandler {
	return &TaskFactoryEventHandler{
		registry:  registry,
		submitter: submitter,
		logger:    logger.With("component", "task_factory_event_handler"),
	}
}

var _ events.EventHandler = (*TaskFactoryEventHandler)(nil)

// HandleEvent builds the task named by the event and submits it. The task
// reuses the event ID.
func (h *TaskFactoryEventHandler) HandleEvent(ctx context.Context, event *events.TaskRequestEvent) error {
	log := h.logger.With("event_id", event.ID, "event_type", event.Type)

	task, err := h.registry.Rehydrate(Record{
		ID:      event.ID,
		Type:    event.Type,
		Payload: event.Payload,
		Status:  TaskStatusPending,
	})
	if errors.Is(err, ErrUnknownTaskType) {
		log.Debug("ignoring event with unsupported type")
		return nil
	}
	if err != nil {
		log.Error("failed to create task", "error", err)
		return fmt.Errorf("failed to create task: %w", err)
	}

	if err := h.submitter.Submit(ctx, task); err != nil {
		log.Error("failed to submit task", "error", err, "task_id", task.ID())
		return fmt.Errorf("failed to submit task: %w", err)
	}

	log.Info("task created and submitted", "task_id", task.ID())
	return nil
}
