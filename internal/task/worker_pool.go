package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Handler processes one task. The context is canceled when the pool stops.
type Handler func(ctx context.Context, task Task)

// WorkerPool manages a pool of worker goroutines that process tasks
// from a task queue.
type WorkerPool struct {
	taskQueue   TaskQueueReader
	workerCount int
	handler     Handler

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	// errorHandler is called when a handler panics. If nil, the panic is
	// only logged.
	errorHandler func(task Task, err error)
}

// WorkerPoolConfig holds configuration options for the worker pool
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent worker goroutines to start
	// If zero or negative, defaults to 1
	WorkerCount int
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount: 2,
	}
}

// NewWorkerPool creates a new worker pool with the specified configuration
func NewWorkerPool(taskQueue TaskQueueReader, config WorkerPoolConfig, handler Handler, logger *slog.Logger) *WorkerPool {
	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		taskQueue:   taskQueue,
		workerCount: workerCount,
		handler:     handler,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
	}
}

// SetErrorHandler sets the callback invoked when a handler panics.
func (p *WorkerPool) SetErrorHandler(handler func(task Task, err error)) {
	p.errorHandler = handler
}

// Start launches the workers.
func (p *WorkerPool) Start() {
	p.logger.Info("starting worker pool", "worker_count", p.workerCount)
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop cancels in-flight handlers and waits for every worker to return.
func (p *WorkerPool) Stop() {
	p.cancel()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("starting worker", "worker_id", id)
	tasks := p.taskQueue.GetChannel()

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug("stopping worker", "worker_id", id)
			return

		case task, ok := <-tasks:
			if !ok {
				p.logger.Debug("task channel closed, stopping worker", "worker_id", id)
				return
			}
			p.run(task, id)
		}
	}
}

// run calls the handler, turning a panic into a reported failure so the
// worker survives.
func (p *WorkerPool) run(task Task, workerID int) {
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("task panicked: %v", rec)
			p.logger.Error("task handler panicked",
				"task_id", task.ID(),
				"task_type", task.Type(),
				"worker_id", workerID,
				"error", err)
			if p.errorHandler != nil {
				p.errorHandler(task, err)
			}
		}
	}()
	p.handler(p.ctx, task)
}
