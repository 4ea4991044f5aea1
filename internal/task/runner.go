package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int

	// StuckTaskAge defines how long a task can be in processing state
	// before it's considered stuck and reset
	StuckTaskAge time.Duration

	// StuckTaskCheckInterval defines how often to check for stuck tasks
	// If zero, defaults to 5 minutes
	StuckTaskCheckInterval time.Duration

	// BacklogRetryInterval defines how often tasks that found the queue
	// full are offered to it again. If zero, defaults to 5 seconds
	BacklogRetryInterval time.Duration
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:            2,
		QueueSize:              100,
		StuckTaskAge:           30 * time.Minute,
		StuckTaskCheckInterval: 5 * time.Minute,
		BacklogRetryInterval:   5 * time.Second,
	}
}

// TaskRunner persists submitted tasks, feeds them to a WorkerPool and
// resumes unfinished ones after a restart.
type TaskRunner struct {
	store    TaskStore
	registry *Registry
	queue    *TaskQueue
	pool     *WorkerPool

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopOnce   sync.Once

	// backlog holds persisted tasks that found the queue full, in
	// submission order.
	backlogMu sync.Mutex
	backlog   []Task

	config     TaskRunnerConfig
	logger     *slog.Logger
	errHandler func(task Task, err error)
}

// NewTaskRunner creates a new TaskRunner
func NewTaskRunner(store TaskStore, registry *Registry, config TaskRunnerConfig, logger *slog.Logger) *TaskRunner {
	if config.StuckTaskCheckInterval == 0 {
		config.StuckTaskCheckInterval = 5 * time.Minute
	}
	if config.BacklogRetryInterval == 0 {
		config.BacklogRetryInterval = 5 * time.Second
	}
	if registry == nil {
		registry = NewRegistry()
	}
	logger = logger.With("component", "task_runner")

	ctx, cancel := context.WithCancel(context.Background())

	r := &TaskRunner{
		store:      store,
		registry:   registry,
		queue:      NewTaskQueue(config.QueueSize, logger),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     logger,
	}
	r.errHandler = func(task Task, err error) {
		logger.Error("task execution failed",
			"task_id", task.ID(),
			"task_type", task.Type(),
			"error", err)
	}
	r.pool = NewWorkerPool(r.queue, WorkerPoolConfig{WorkerCount: config.WorkerCount}, r.processTask, logger)
	r.pool.SetErrorHandler(r.handlePanic)
	return r
}

// SetErrorHandler allows setting a custom error handler function
func (r *TaskRunner) SetErrorHandler(handler func(task Task, err error)) {
	r.errHandler = handler
}

// Registry returns the registry used to rehydrate persisted tasks.
func (r *TaskRunner) Registry() *Registry {
	return r.registry
}

// Submit persists a task and queues it. When the queue is full the task
// is accepted anyway: it stays pending and waits in the backlog until the
// queue has room. A task that cannot be queued at all is marked failed.
func (r *TaskRunner) Submit(ctx context.Context, task Task) error {
	if err := r.store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	if err := r.enqueue(task); err != nil {
		if updateErr := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusFailed, err.Error()); updateErr != nil {
			r.logger.Error("failed to mark unqueued task as failed", "task_id", task.ID(), "error", updateErr)
		}
		return fmt.Errorf("failed to queue task %s: %w", task.ID(), err)
	}
	return nil
}

// enqueue queues task, parking it in the backlog when the queue is full.
func (r *TaskRunner) enqueue(task Task) error {
	err := r.queue.Enqueue(task)
	if !errors.Is(err, ErrQueueFull) {
		return err
	}

	r.backlogMu.Lock()
	r.backlog = append(r.backlog, task)
	n := len(r.backlog)
	r.backlogMu.Unlock()

	r.logger.Warn("task queue full, task parked in backlog",
		"task_id", task.ID(),
		"task_type", task.Type(),
		"backlog_len", n)
	return nil
}

// drainBacklog moves parked tasks into the queue until it is full again.
func (r *TaskRunner) drainBacklog() {
	r.backlogMu.Lock()
	defer r.backlogMu.Unlock()

	moved := 0
	for _, task := range r.backlog {
		if err := r.queue.Enqueue(task); err != nil {
			if !errors.Is(err, ErrQueueFull) {
				r.logger.Error("failed to queue backlog task", "task_id", task.ID(), "error", err)
			}
			break
		}
		moved++
	}
	if moved == 0 {
		return
	}
	r.backlog = append(r.backlog[:0], r.backlog[moved:]...)
	r.logger.Debug("backlog drained", "moved", moved, "remaining", len(r.backlog))
}

func (r *TaskRunner) backlogLen() int {
	r.backlogMu.Lock()
	defer r.backlogMu.Unlock()
	return len(r.backlog)
}

// Start recovers unfinished tasks, then starts the workers and the stuck
// task monitor.
func (r *TaskRunner) Start() error {
	if err := r.Recover(); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	r.pool.Start()

	r.wg.Add(1)
	go r.stuckTaskMonitor()

	return nil
}

// Stop cancels running tasks and waits for workers and the monitor. Tasks
// interrupted this way stay in processing state and resume on restart.
func (r *TaskRunner) Stop() {
	r.stopOnce.Do(func() {
		r.cancelFunc()
		r.wg.Wait()
		r.pool.Stop()
		r.queue.Close()
	})
}

// Recover requeues pending tasks and resets tasks left in processing state
// by a previous run.
func (r *TaskRunner) Recover() error {
	ctx := context.Background()

	pending, err := r.store.GetPendingTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending tasks: %w", err)
	}

	processing, err := r.store.GetProcessingTasks(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to get processing tasks: %w", err)
	}

	r.logger.Info("recovering unfinished tasks",
		"pending_count", len(pending),
		"processing_count", len(processing))

	for _, rec := range pending {
		r.requeue(ctx, rec, false, "")
	}
	for _, rec := range processing {
		r.requeue(ctx, rec, true, "Reset after recovery")
	}
	return nil
}

// requeue rehydrates a record and queues it, optionally resetting it to
// pending first. Records of unknown types are marked failed.
func (r *TaskRunner) requeue(ctx context.Context, rec Record, reset bool, reason string) {
	log := r.logger.With("task_id", rec.ID, "task_type", rec.Type)

	task, err := r.registry.Rehydrate(rec)
	if err != nil {
		log.Error("failed to rehydrate task", "error", err)
		if updateErr := r.store.UpdateTaskStatus(ctx, rec.ID, TaskStatusFailed, err.Error()); updateErr != nil {
			log.Error("failed to mark task as failed", "error", updateErr)
		}
		return
	}

	if reset {
		if err := r.store.UpdateTaskStatus(ctx, rec.ID, TaskStatusPending, reason); err != nil {
			log.Error("failed to reset task status", "error", err)
			return
		}
	}

	if err := r.enqueue(task); err != nil {
		log.Error("failed to requeue task", "error", err)
		return
	}
	log.Info("task requeued")
}

// processTask runs a single task and records its outcome.
func (r *TaskRunner) processTask(ctx context.Context, task Task) {
	log := r.logger.With(
		"task_id", task.ID(),
		"task_type", task.Type(),
	)

	// Status updates use a background context so that a shutdown in the
	// middle of a task cannot lose its outcome.
	bg := context.Background()

	if err := r.store.UpdateTaskStatus(bg, task.ID(), TaskStatusProcessing, ""); err != nil {
		log.Error("failed to update task status to processing", "error", err)
		return
	}

	log.Info("processing task")
	err := task.Execute(ctx)

	switch {
	case err == nil:
		log.Info("task completed successfully")
		if updateErr := r.store.UpdateTaskStatus(bg, task.ID(), TaskStatusCompleted, ""); updateErr != nil {
			log.Error("failed to update task status to completed", "error", updateErr)
		}
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		log.Warn("task interrupted by shutdown, it will resume on restart")
	default:
		log.Error("task execution failed", "error", err)
		if updateErr := r.store.UpdateTaskStatus(bg, task.ID(), TaskStatusFailed, err.Error()); updateErr != nil {
			log.Error("failed to update task status to failed", "error", updateErr)
		}
		r.errHandler(task, err)
	}
}

func (r *TaskRunner) handlePanic(task Task, err error) {
	if updateErr := r.store.UpdateTaskStatus(context.Background(), task.ID(), TaskStatusFailed, err.Error()); updateErr != nil {
		r.logger.Error("failed to update panicked task status",
			"task_id", task.ID(),
			"error", updateErr)
	}
	r.errHandler(task, err)
}

// stuckTaskMonitor periodically resets tasks that have been processing for
// longer than StuckTaskAge and feeds backlogged tasks to the queue.
func (r *TaskRunner) stuckTaskMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckTaskCheckInterval)
	defer ticker.Stop()
	backlogTicker := time.NewTicker(r.config.BacklogRetryInterval)
	defer backlogTicker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case <-ticker.C:
			r.checkStuckTasks(context.Background())

		case <-backlogTicker.C:
			r.drainBacklog()
		}
	}
}

func (r *TaskRunner) checkStuckTasks(ctx context.Context) {
	stuck, err := r.store.GetProcessingTasks(ctx, r.config.StuckTaskAge)
	if err != nil {
		r.logger.Error("failed to check for stuck tasks", "error", err)
		return
	}
	if len(stuck) == 0 {
		return
	}

	r.logger.Info("found stuck tasks", "count", len(stuck))
	for _, rec := range stuck {
		r.requeue(ctx, rec, true, "Reset after being stuck in processing state")
	}
}
