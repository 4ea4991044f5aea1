package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/mygeslike/api/internal/analyzer"
	"github.com/mygeslike/api/internal/domain"
	"github.com/mygeslike/api/internal/events"
	"github.com/mygeslike/api/internal/platform/logger"
	"github.com/mygeslike/api/internal/platform/storage"
	"github.com/mygeslike/api/internal/store"
	"github.com/mygeslike/api/internal/task"
)

// ErrNotEnoughDeliverables is returned when fewer than two deliverables of
// a promotion project carry an archive.
var ErrNotEnoughDeliverables = domain.Invalid("need at least 2 deliverables to analyze similarity")

// ComparisonRunner runs pair comparisons. *analyzer.Pool implements it.
type ComparisonRunner interface {
	RunWithProgress(ctx context.Context, jobs []analyzer.Job, progress analyzer.ProgressFunc) (*analyzer.Report, error)
}

// SimilarityService requests similarity analyses and serves their results.
type SimilarityService interface {
	// Analyze records a pending analysis and asks for it to run in the
	// background.
	Analyze(ctx context.Context, teacherID, promotionProjectID uuid.UUID) (*domain.SimilarityAnalysis, error)
	GetAnalysis(ctx context.Context, id uuid.UUID) (*domain.SimilarityAnalysis, error)
	// ProjectResults returns the pairs of the latest completed analysis.
	ProjectResults(ctx context.Context, promotionProjectID uuid.UUID) ([]domain.SimilarityResultView, error)
	DeliverableResults(ctx context.Context, deliverableID uuid.UUID) ([]domain.SimilarityResultView, error)
	// RunAnalysis compares every archived deliverable pair and stores the
	// results.
	RunAnalysis(ctx context.Context, analysisID uuid.UUID) error
}

type similarityService struct {
	similarity   store.SimilarityStore
	deliverables store.DeliverableStore
	files        storage.Store
	runner       ComparisonRunner
	emitter      events.EventEmitter
	threshold    float64
	logger       *slog.Logger
	now          func() time.Time
}

var _ task.AnalysisRunner = (*similarityService)(nil)

// NewSimilarityService creates a SimilarityService. A threshold outside
// (0, 1] falls back to domain.SuspiciousScore.
func NewSimilarityService(
	similarity store.SimilarityStore,
	deliverables store.DeliverableStore,
	files storage.Store,
	runner ComparisonRunner,
	emitter events.EventEmitter,
	threshold float64,
	logger *slog.Logger,
) SimilarityService {
	if threshold <= 0 || threshold > 1 {
		threshold = domain.SuspiciousScore
	}
	return &similarityService{
		similarity:   similarity,
		deliverables: deliverables,
		files:        files,
		runner:       runner,
		emitter:      emitter,
		threshold:    threshold,
		logger:       logger.With("component", "similarity_service"),
		now:          time.Now,
	}
}

func archived(list []domain.Deliverable) []domain.Deliverable {
	out := make([]domain.Deliverable, 0, len(list))
	for _, d := range list {
		if d.Archive != nil && d.Archive.Key != "" {
			out = append(out, d)
		}
	}
	return out
}

func (s *similarityService) Analyze(ctx context.Context, teacherID, promotionProjectID uuid.UUID) (*domain.SimilarityAnalysis, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	list, err := s.deliverables.ListByPromotionProject(ctx, promotionProjectID)
	if err != nil {
		return nil, err
	}
	if len(archived(list)) < domain.MinDeliverablesForAnalysis {
		return nil, ErrNotEnoughDeliverables
	}

	a := domain.NewSimilarityAnalysis(promotionProjectID, teacherID)
	if err := s.similarity.CreateAnalysis(ctx, a); err != nil {
		return nil, err
	}

	event, err := events.NewTaskRequestEvent(task.TaskTypeSimilarityAnalysis, task.SimilarityPayload{
		AnalysisID:         a.ID,
		PromotionProjectID: promotionProjectID,
	})
	if err == nil {
		event.RequestedBy = teacherID
		err = s.emitter.EmitEvent(ctx, event)
	}
	if err != nil {
		log.Error("failed to request similarity analysis",
			slog.String("analysis_id", a.ID.String()),
			slog.String("error", err.Error()))
		s.finish(ctx, a, nil, err)
		return nil, NewServiceError("similarity", "analyze", "failed to start analysis", err)
	}

	log.Info("similarity analysis requested",
		slog.String("analysis_id", a.ID.String()),
		slog.String("promotion_project_id", promotionProjectID.String()))
	return a, nil
}

func (s *similarityService) GetAnalysis(ctx context.Context, id uuid.UUID) (*domain.SimilarityAnalysis, error) {
	return s.similarity.GetAnalysis(ctx, id)
}

func (s *similarityService) ProjectResults(ctx context.Context, promotionProjectID uuid.UUID) ([]domain.SimilarityResultView, error) {
	a, err := s.similarity.LatestAnalysis(ctx, promotionProjectID, domain.AnalysisCompleted)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return []domain.SimilarityResultView{}, nil
		}
		return nil, err
	}
	return s.similarity.ListResults(ctx, a.ID)
}

func (s *similarityService) DeliverableResults(ctx context.Context, deliverableID uuid.UUID) ([]domain.SimilarityResultView, error) {
	return s.similarity.ListResultsForDeliverable(ctx, deliverableID)
}

// pair is the deliverables behind a job key.
type pair struct {
	d1, d2 uuid.UUID
}

// resultDetails is stored with every scored pair.
type resultDetails struct {
	Summary    analyzer.Summary     `json:"summary"`
	Files      []analyzer.FileScore `json:"files,omitempty"`
	ReportPath *string              `json:"report_path,omitempty"`
	Attempts   int                  `json:"attempts"`
	DurationMS int64                `json:"duration_ms"`
}

func (s *similarityService) RunAnalysis(ctx context.Context, analysisID uuid.UUID) error {
	a, err := s.similarity.GetAnalysis(ctx, analysisID)
	if err != nil {
		return err
	}
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.String("analysis_id", a.ID.String()),
		slog.String("promotion_project_id", a.PromotionProjectID.String()))

	if a.Status == domain.AnalysisCompleted || a.Status == domain.AnalysisFailed {
		log.Info("analysis already finished", slog.String("status", string(a.Status)))
		return nil
	}

	started := s.now().UTC()
	a.Status = domain.AnalysisProcessing
	a.StartedAt = &started
	a.UpdatedAt = started
	if err := s.similarity.UpdateAnalysis(ctx, a); err != nil {
		return err
	}

	list, err := s.deliverables.ListByPromotionProject(ctx, a.PromotionProjectID)
	if err != nil {
		return s.finish(ctx, a, nil, err)
	}
	list = archived(list)
	if len(list) < domain.MinDeliverablesForAnalysis {
		return s.finish(ctx, a, nil, ErrNotEnoughDeliverables)
	}

	dir, err := os.MkdirTemp("", "similarity-")
	if err != nil {
		return s.finish(ctx, a, nil, fmt.Errorf("failed to create work dir: %w", err))
	}
	defer func() { _ = os.RemoveAll(dir) }()

	paths := make(map[uuid.UUID]string, len(list))
	for _, d := range list {
		p, cleanup, err := storage.Materialize(ctx, s.files, d.Archive.Key, dir)
		if err != nil {
			log.Warn("archive unavailable",
				slog.String("deliverable_id", d.ID.String()),
				slog.String("error", err.Error()))
			continue
		}
		defer cleanup()
		paths[d.ID] = p
	}

	summary := domain.AnalysisSummary{}
	var (
		jobs  []analyzer.Job
		pairs = make(map[string]pair)
		sum   float64
	)
	for i := 0; i < len(list); i++ {
		for j := i + 1; j < len(list); j++ {
			d1, d2 := domain.OrderPair(list[i].ID, list[j].ID)
			summary.TotalComparisons++
			p1, ok1 := paths[d1]
			p2, ok2 := paths[d2]
			if !ok1 || !ok2 {
				summary.Failed++
				s.saveFailure(ctx, log, a.ID, d1, d2, "archive unavailable")
				continue
			}
			key := d1.String() + ":" + d2.String()
			pairs[key] = pair{d1: d1, d2: d2}
			jobs = append(jobs, analyzer.Job{Key: key, Archive1: p1, Archive2: p2})
		}
	}

	report, err := s.runner.RunWithProgress(ctx, jobs, func(done, total int) {
		log.Debug("comparison progress", slog.Int("done", done), slog.Int("total", total))
	})
	if err != nil {
		// Interrupted runs stay in processing and are picked up again.
		log.Warn("analysis interrupted", slog.String("error", err.Error()))
		return err
	}

	for _, r := range report.Results {
		p := pairs[r.Job.Key]
		score := analyzer.ClampScore(r.Result.GlobalSimilarity)
		details, _ := json.Marshal(resultDetails{
			Summary:    r.Result.Summary,
			Files:      r.Result.Files,
			ReportPath: r.Result.ReportPath,
			Attempts:   r.Attempts,
			DurationMS: r.Duration.Milliseconds(),
		})
		res := &domain.SimilarityResult{
			ID:             uuid.New(),
			AnalysisID:     a.ID,
			Deliverable1ID: p.d1,
			Deliverable2ID: p.d2,
			Score:          &score,
			IsSuspicious:   score >= s.threshold,
			Details:        details,
			CreatedAt:      s.now().UTC(),
		}
		if err := s.similarity.UpsertResult(ctx, res); err != nil {
			return s.finish(ctx, a, nil, err)
		}
		summary.Completed++
		sum += score
		summary.MaxSimilarity = max(summary.MaxSimilarity, score)
		if res.IsSuspicious {
			summary.HighSimilarityCount++
		}
	}
	for _, f := range report.Failures {
		p := pairs[f.Job.Key]
		summary.Failed++
		s.saveFailure(ctx, log, a.ID, p.d1, p.d2, f.Err.Error())
	}
	if summary.Completed > 0 {
		summary.AverageSimilarity = round4(sum / float64(summary.Completed))
	}

	if summary.Completed == 0 {
		return s.finish(ctx, a, &summary, errors.New("no comparison succeeded"))
	}
	log.Info("analysis completed",
		slog.Int("comparisons", summary.TotalComparisons),
		slog.Int("failed", summary.Failed),
		slog.Int("suspicious", summary.HighSimilarityCount))
	return s.finish(ctx, a, &summary, nil)
}

func (s *similarityService) saveFailure(ctx context.Context, log *slog.Logger, analysisID, d1, d2 uuid.UUID, msg string) {
	res := &domain.SimilarityResult{
		ID:             uuid.New(),
		AnalysisID:     analysisID,
		Deliverable1ID: d1,
		Deliverable2ID: d2,
		Error:          &msg,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.similarity.UpsertResult(ctx, res); err != nil {
		log.Error("failed to record comparison failure", slog.String("error", err.Error()))
	}
}

// finish records the final state of a. It returns cause so that failing
// paths can end with it.
func (s *similarityService) finish(ctx context.Context, a *domain.SimilarityAnalysis, summary *domain.AnalysisSummary, cause error) error {
	now := s.now().UTC()
	a.Summary = summary
	a.CompletedAt = &now
	a.UpdatedAt = now
	a.Status = domain.AnalysisCompleted
	if cause != nil {
		msg := cause.Error()
		a.Status = domain.AnalysisFailed
		a.Error = &msg
	}
	if err := s.similarity.UpdateAnalysis(ctx, a); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to record analysis state",
			slog.String("analysis_id", a.ID.String()),
			slog.String("status", string(a.Status)),
			slog.String("error", err.Error()))
		if cause == nil {
			return err
		}
	}
	return cause
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
