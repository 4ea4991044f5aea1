package task

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current state of a task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// TaskTypeSimilarityAnalysis compares every archived deliverable of a
// promotion project.
const TaskTypeSimilarityAnalysis = "similarity_analysis"

// Task represents a unit of background work to be processed
type Task interface {
	// ID returns the task's unique identifier
	ID() uuid.UUID

	// Type returns the task type identifier
	Type() string

	// Payload returns the task data as a byte slice
	Payload() []byte

	// Status returns the current task status
	Status() TaskStatus

	// Execute runs the task logic
	Execute(ctx context.Context) error
}

// Record is a task as persisted. It carries no executor; Registry turns it
// back into a Task.
type Record struct {
	ID           uuid.UUID
	Type         string
	Payload      []byte
	Status       TaskStatus
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TaskQueueReader provides read-only access to the task channel
type TaskQueueReader interface {
	GetChannel() <-chan Task
}

// TaskQueueWriter provides write access to the task queue
type TaskQueueWriter interface {
	// Enqueue adds a task without blocking. Returns ErrQueueFull or
	// ErrQueueClosed.
	Enqueue(task Task) error
	Close()
}

// TaskStore defines the interface for persisting tasks
type TaskStore interface {
	// SaveTask persists a task to the database
	SaveTask(ctx context.Context, task Task) error

	// UpdateTaskStatus updates the status of a task. Unknown IDs are a no-op.
	UpdateTaskStatus(ctx context.Context, taskID uuid.UUID, status TaskStatus, errorMsg string) error

	// GetPendingTasks retrieves all tasks with "pending" status, oldest first
	GetPendingTasks(ctx context.Context) ([]Record, error)

	// GetProcessingTasks retrieves tasks with "processing" status. A
	// non-zero olderThan restricts the result to tasks last updated longer
	// ago than that.
	GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]Record, error)

	// WithTx returns a TaskStore bound to tx.
	WithTx(tx *sql.Tx) TaskStore
}
