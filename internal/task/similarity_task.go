package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Errors returned when building a similarity analysis task.
var (
	ErrNilAnalysisRunner = errors.New("analysis runner cannot be nil")
	ErrEmptyAnalysisID   = errors.New("analysis ID cannot be empty")
)

// AnalysisRunner executes a persisted similarity analysis.
type AnalysisRunner interface {
	RunAnalysis(ctx context.Context, analysisID uuid.UUID) error
}

// SimilarityPayload is the persisted payload of a similarity analysis task.
type SimilarityPayload struct {
	AnalysisID         uuid.UUID `json:"analysis_id"`
	PromotionProjectID uuid.UUID `json:"promotion_project_id"`
}

// SimilarityAnalysisTask runs one similarity analysis.
type SimilarityAnalysisTask struct {
	id      uuid.UUID
	payload SimilarityPayload
	raw     []byte
	runner  AnalysisRunner
	logger  *slog.Logger
	status  TaskStatus
}

// NewSimilarityAnalysisTask builds a task with the given ID.
func NewSimilarityAnalysisTask(
	id uuid.UUID,
	payload SimilarityPayload,
	runner AnalysisRunner,
	logger *slog.Logger,
) (*SimilarityAnalysisTask, error) {
	if runner == nil {
		return nil, ErrNilAnalysisRunner
	}
	if payload.AnalysisID == uuid.Nil {
		return nil, ErrEmptyAnalysisID
	}
	if id == uuid.Nil {
		id = uuid.New()
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	return &SimilarityAnalysisTask{
		id:      id,
		payload: payload,
		raw:     raw,
		runner:  runner,
		logger: logger.With(
			"task_type", TaskTypeSimilarityAnalysis,
			"analysis_id", payload.AnalysisID),
		status: TaskStatusPending,
	}, nil
}

// SimilarityAnalysisFactory returns the Factory registered for
// TaskTypeSimilarityAnalysis.
func SimilarityAnalysisFactory(runner AnalysisRunner, logger *slog.Logger) Factory {
	return func(id uuid.UUID, payload []byte) (Task, error) {
		var p SimilarityPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("failed to decode similarity payload: %w", err)
		}
		return NewSimilarityAnalysisTask(id, p, runner, logger)
	}
}

func (t *SimilarityAnalysisTask) ID() uuid.UUID      { return t.id }
func (t *SimilarityAnalysisTask) Type() string       { return TaskTypeSimilarityAnalysis }
func (t *SimilarityAnalysisTask) Payload() []byte    { return t.raw }
func (t *SimilarityAnalysisTask) Status() TaskStatus { return t.status }

// AnalysisID returns the analysis this task runs.
func (t *SimilarityAnalysisTask) AnalysisID() uuid.UUID { return t.payload.AnalysisID }

// Execute runs the analysis.
func (t *SimilarityAnalysisTask) Execute(ctx context.Context) error {
	t.status = TaskStatusProcessing
	t.logger.Info("starting similarity analysis")

	if err := t.runner.RunAnalysis(ctx, t.payload.AnalysisID); err != nil {
		t.status = TaskStatusFailed
		return fmt.Errorf("similarity analysis %s: %w", t.payload.AnalysisID, err)
	}

	t.status = TaskStatusCompleted
	t.logger.Info("similarity analysis finished")
	return nil
}
