package task

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockTask implements Task with an overridable Execute.
type mockTask struct {
	id       uuid.UUID
	taskType string
	payload  []byte
	status   TaskStatus
	execFn   func(ctx context.Context) error
}

func newMockTask(execFn func(ctx context.Context) error) *mockTask {
	return &mockTask{
		id:       uuid.New(),
		taskType: "mock",
		payload:  []byte(`{}`),
		status:   TaskStatusPending,
		execFn:   execFn,
	}
}

func (m *mockTask) ID() uuid.UUID      { return m.id }
func (m *mockTask) Type() string       { return m.taskType }
func (m *mockTask) Payload() []byte    { return m.payload }
func (m *mockTask) Status() TaskStatus { return m.status }

func (m *mockTask) Execute(ctx context.Context) error {
	if m.execFn != nil {
		return m.execFn(ctx)
	}
	return nil
}

// mockTaskStore keeps records in memory. Fn fields override behavior.
type mockTaskStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*Record

	SaveFn       func(ctx context.Context, task Task) error
	PendingFn    func(ctx context.Context) ([]Record, error)
	ProcessingFn func(ctx context.Context, olderThan time.Duration) ([]Record, error)
}

func newMockTaskStore() *mockTaskStore {
	return &mockTaskStore{records: make(map[uuid.UUID]*Record)}
}

func (s *mockTaskStore) put(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := rec
	s.records[rec.ID] = &r
}

func (s *mockTaskStore) status(id uuid.UUID) (TaskStatus, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[id]; ok {
		return r.Status, r.ErrorMessage
	}
	return "", ""
}

func (s *mockTaskStore) SaveTask(ctx context.Context, task Task) error {
	if s.SaveFn != nil {
		return s.SaveFn(ctx, task)
	}
	now := time.Now()
	s.put(Record{ID: task.ID(), Type: task.Type(), Payload: task.Payload(), Status: task.Status(),
		CreatedAt: now, UpdatedAt: now})
	return nil
}

func (s *mockTaskStore) UpdateTaskStatus(_ context.Context, id uuid.UUID, status TaskStatus, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[id]; ok {
		r.Status = status
		r.ErrorMessage = msg
		r.UpdatedAt = time.Now()
	}
	return nil
}

func (s *mockTaskStore) byStatus(status TaskStatus) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, r := range s.records {
		if r.Status == status {
			out = append(out, *r)
		}
	}
	return out
}

func (s *mockTaskStore) GetPendingTasks(ctx context.Context) ([]Record, error) {
	if s.PendingFn != nil {
		return s.PendingFn(ctx)
	}
	return s.byStatus(TaskStatusPending), nil
}

func (s *mockTaskStore) GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]Record, error) {
	if s.ProcessingFn != nil {
		return s.ProcessingFn(ctx, olderThan)
	}
	return s.byStatus(TaskStatusProcessing), nil
}

func (s *mockTaskStore) WithTx(*sql.Tx) TaskStore { return s }

// mockAnalysisRunner records analysis runs.
type mockAnalysisRunner struct {
	mu    sync.Mutex
	ran   []uuid.UUID
	RunFn func(ctx context.Context, analysisID uuid.UUID) error
}

func (m *mockAnalysisRunner) RunAnalysis(ctx context.Context, analysisID uuid.UUID) error {
	m.mu.Lock()
	m.ran = append(m.ran, analysisID)
	m.mu.Unlock()
	if m.RunFn != nil {
		return m.RunFn(ctx, analysisID)
	}
	return nil
}

func (m *mockAnalysisRunner) calls() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uuid.UUID(nil), m.ran...)
}
