package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRunnerConfig() TaskRunnerConfig {
	cfg := DefaultTaskRunnerConfig()
	cfg.QueueSize = 4
	cfg.StuckTaskCheckInterval = time.Hour
	return cfg
}

func TestTaskRunner_Submit(t *testing.T) {
	t.Run("saves then queues", func(t *testing.T) {
		store := newMockTaskStore()
		runner := NewTaskRunner(store, nil, testRunnerConfig(), discardLogger())

		task := newMockTask(nil)
		require.NoError(t, runner.Submit(context.Background(), task))

		status, _ := store.status(task.ID())
		assert.Equal(t, TaskStatusPending, status)
		assert.Equal(t, 1, runner.queue.Len())
	})

	t.Run("store error", func(t *testing.T) {
		store := newMockTaskStore()
		store.SaveFn = func(context.Context, Task) error { return errors.New("db down") }
		runner := NewTaskRunner(store, nil, testRunnerConfig(), discardLogger())

		err := runner.Submit(context.Background(), newMockTask(nil))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to save task")
		assert.Equal(t, 0, runner.queue.Len())
	})

	t.Run("full queue parks the task in the backlog", func(t *testing.T) {
		store := newMockTaskStore()
		cfg := testRunnerConfig()
		cfg.QueueSize = 1
		runner := NewTaskRunner(store, nil, cfg, discardLogger())

		first := newMockTask(nil)
		require.NoError(t, runner.Submit(context.Background(), first))
		overflow := newMockTask(nil)
		require.NoError(t, runner.Submit(context.Background(), overflow))

		status, _ := store.status(overflow.ID())
		assert.Equal(t, TaskStatusPending, status)
		assert.Equal(t, 1, runner.queue.Len())
		assert.Equal(t, 1, runner.backlogLen())

		runner.drainBacklog()
		assert.Equal(t, 1, runner.backlogLen(), "queue is still full")

		got := <-runner.queue.GetChannel()
		assert.Equal(t, first.ID(), got.ID())
		runner.drainBacklog()
		assert.Equal(t, 0, runner.backlogLen())
		got = <-runner.queue.GetChannel()
		assert.Equal(t, overflow.ID(), got.ID())
	})

	t.Run("closed queue", func(t *testing.T) {
		store := newMockTaskStore()
		runner := NewTaskRunner(store, nil, testRunnerConfig(), discardLogger())
		runner.queue.Close()

		task := newMockTask(nil)
		err := runner.Submit(context.Background(), task)
		assert.ErrorIs(t, err, ErrQueueClosed)
		assert.Equal(t, 0, runner.backlogLen())
		status, _ := store.status(task.ID())
		assert.Equal(t, TaskStatusFailed, status)
	})
}

func TestTaskRunner_BackloggedTasksRun(t *testing.T) {
	store := newMockTaskStore()
	cfg := testRunnerConfig()
	cfg.QueueSize = 1
	cfg.WorkerCount = 1
	cfg.BacklogRetryInterval = 10 * time.Millisecond
	runner := NewTaskRunner(store, nil, cfg, discardLogger())
	require.NoError(t, runner.Start())
	defer runner.Stop()

	gate := make(chan struct{})
	blocked := newMockTask(func(ctx context.Context) error {
		select {
		case <-gate:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	tasks := []*mockTask{blocked, newMockTask(nil), newMockTask(nil), newMockTask(nil)}
	for _, task := range tasks {
		require.NoError(t, runner.Submit(context.Background(), task))
	}
	close(gate)

	assert.Eventually(t, func() bool {
		for _, task := range tasks {
			if status, _ := store.status(task.ID()); status != TaskStatusCompleted {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, runner.backlogLen())
}

func TestTaskRunner_Execution(t *testing.T) {
	store := newMockTaskStore()
	runner := NewTaskRunner(store, nil, testRunnerConfig(), discardLogger())

	var (
		mu     sync.Mutex
		failed []uuid.UUID
	)
	runner.SetErrorHandler(func(task Task, err error) {
		mu.Lock()
		defer mu.Unlock()
		failed = append(failed, task.ID())
	})

	require.NoError(t, runner.Start())
	defer runner.Stop()

	ok := newMockTask(nil)
	bad := newMockTask(func(context.Context) error { return errors.New("exploded") })
	panicky := newMockTask(func(context.Context) error { panic("kaboom") })

	for _, task := range []Task{ok, bad, panicky} {
		require.NoError(t, runner.Submit(context.Background(), task))
	}

	require.Eventually(t, func() bool {
		s1, _ := store.status(ok.ID())
		s2, _ := store.status(bad.ID())
		s3, _ := store.status(panicky.ID())
		return s1 == TaskStatusCompleted && s2 == TaskStatusFailed && s3 == TaskStatusFailed
	}, 2*time.Second, 5*time.Millisecond)

	_, msg := store.status(bad.ID())
	assert.Equal(t, "exploded", msg)
	_, msg = store.status(panicky.ID())
	assert.Contains(t, msg, "kaboom")

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []uuid.UUID{bad.ID(), panicky.ID()}, failed)
}

func TestTaskRunner_Recover(t *testing.T) {
	store := newMockTaskStore()
	registry := NewRegistry()
	analyses := &mockAnalysisRunner{}
	registry.Register(TaskTypeSimilarityAnalysis, SimilarityAnalysisFactory(analyses, discardLogger()))

	pendingID, processingID := uuid.New(), uuid.New()
	analysisA, analysisB := uuid.New(), uuid.New()
	unknownID := uuid.New()

	store.put(Record{ID: pendingID, Type: TaskTypeSimilarityAnalysis, Status: TaskStatusPending,
		Payload: []byte(`{"analysis_id":"` + analysisA.String() + `"}`)})
	store.put(Record{ID: processingID, Type: TaskTypeSimilarityAnalysis, Status: TaskStatusProcessing,
		Payload: []byte(`{"analysis_id":"` + analysisB.String() + `"}`)})
	store.put(Record{ID: unknownID, Type: "retired_type", Status: TaskStatusPending, Payload: []byte(`{}`)})

	runner := NewTaskRunner(store, registry, testRunnerConfig(), discardLogger())
	require.NoError(t, runner.Start())
	defer runner.Stop()

	require.Eventually(t, func() bool {
		s1, _ := store.status(pendingID)
		s2, _ := store.status(processingID)
		return s1 == TaskStatusCompleted && s2 == TaskStatusCompleted
	}, 2*time.Second, 5*time.Millisecond)

	assert.ElementsMatch(t, []uuid.UUID{analysisA, analysisB}, analyses.calls())

	status, msg := store.status(unknownID)
	assert.Equal(t, TaskStatusFailed, status)
	assert.Contains(t, msg, "unknown task type")
}

func TestTaskRunner_RecoverStoreError(t *testing.T) {
	store := newMockTaskStore()
	store.PendingFn = func(context.Context) ([]Record, error) { return nil, errors.New("db down") }
	runner := NewTaskRunner(store, nil, testRunnerConfig(), discardLogger())

	err := runner.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get pending tasks")
}

func TestTaskRunner_StopLeavesInterruptedTaskProcessing(t *testing.T) {
	store := newMockTaskStore()
	runner := NewTaskRunner(store, nil, testRunnerConfig(), discardLogger())
	require.NoError(t, runner.Start())

	started := make(chan struct{})
	task := newMockTask(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, runner.Submit(context.Background(), task))

	<-started
	runner.Stop()
	runner.Stop()

	status, _ := store.status(task.ID())
	assert.Equal(t, TaskStatusProcessing, status)
}

func TestTaskRunner_CheckStuckTasks(t *testing.T) {
	store := newMockTaskStore()
	registry := NewRegistry()
	registry.Register("mock", func(id uuid.UUID, payload []byte) (Task, error) {
		task := newMockTask(nil)
		task.id = id
		return task, nil
	})

	stuckID := uuid.New()
	store.put(Record{ID: stuckID, Type: "mock", Status: TaskStatusProcessing, Payload: []byte(`{}`)})

	var gotAge time.Duration
	store.ProcessingFn = func(_ context.Context, olderThan time.Duration) ([]Record, error) {
		gotAge = olderThan
		return store.byStatus(TaskStatusProcessing), nil
	}

	runner := NewTaskRunner(store, registry, testRunnerConfig(), discardLogger())
	runner.checkStuckTasks(context.Background())

	assert.Equal(t, testRunnerConfig().StuckTaskAge, gotAge)
	status, msg := store.status(stuckID)
	assert.Equal(t, TaskStatusPending, status)
	assert.Equal(t, "Reset after being stuck in processing state", msg)
	assert.Equal(t, 1, runner.queue.Len())
}
