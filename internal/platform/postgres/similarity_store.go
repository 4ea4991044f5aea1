package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mygeslike/api/internal/domain"
	"github.com/mygeslike/api/internal/platform/logger"
	"github.com/mygeslike/api/internal/store"
)

// PostgresSimilarityStore implements store.SimilarityStore.
type PostgresSimilarityStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSimilarityStore creates a similarity store over db.
func NewPostgresSimilarityStore(db store.DBTX, logger *slog.Logger) *PostgresSimilarityStore {
	mustDB(db)
	return &PostgresSimilarityStore{db: db, logger: componentLogger(logger, "similarity_store")}
}

var _ store.SimilarityStore = (*PostgresSimilarityStore)(nil)

const analysisColumns = `id, promotion_project_id, requested_by_teacher_id, status, summary, error,
	started_at, completed_at, created_at, updated_at`

func scanAnalysis(row rowScanner) (*domain.SimilarityAnalysis, error) {
	var (
		a       domain.SimilarityAnalysis
		summary []byte
	)
	if err := row.Scan(&a.ID, &a.PromotionProjectID, &a.RequestedByTeacherID, &a.Status, &summary, &a.Error,
		&a.StartedAt, &a.CompletedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if len(summary) > 0 {
		a.Summary = &domain.AnalysisSummary{}
		if err := json.Unmarshal(summary, a.Summary); err != nil {
			return nil, fmt.Errorf("failed to decode analysis summary: %w", err)
		}
	}
	return &a, nil
}

func summaryArg(s *domain.AnalysisSummary) (any, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode analysis summary: %w", err)
	}
	return string(b), nil
}

func (s *PostgresSimilarityStore) CreateAnalysis(ctx context.Context, a *domain.SimilarityAnalysis) error {
	summary, err := summaryArg(a.Summary)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO similarity_analyses (`+analysisColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.PromotionProjectID, a.RequestedByTeacherID, a.Status, summary, a.Error,
		a.StartedAt, a.CompletedAt, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return store.ErrPromotionProjectNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to create analysis",
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

func (s *PostgresSimilarityStore) GetAnalysis(ctx context.Context, id uuid.UUID) (*domain.SimilarityAnalysis, error) {
	a, err := scanAnalysis(s.db.QueryRowContext(ctx,
		"SELECT "+analysisColumns+" FROM similarity_analyses WHERE id = $1", id))
	if err != nil {
		return nil, notFound(err, store.ErrAnalysisNotFound)
	}
	return a, nil
}

func (s *PostgresSimilarityStore) UpdateAnalysis(ctx context.Context, a *domain.SimilarityAnalysis) error {
	summary, err := summaryArg(a.Summary)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE similarity_analyses
		SET status = $1, summary = $2, error = $3, started_at = $4, completed_at = $5, updated_at = $6
		WHERE id = $7`,
		a.Status, summary, a.Error, a.StartedAt, a.CompletedAt, a.UpdatedAt, a.ID)
	if err != nil {
		return MapError(err)
	}
	return expectRows(res, store.ErrAnalysisNotFound)
}

func (s *PostgresSimilarityStore) LatestAnalysis(
	ctx context.Context,
	promotionProjectID uuid.UUID,
	status domain.AnalysisStatus,
) (*domain.SimilarityAnalysis, error) {
	a, err := scanAnalysis(s.db.QueryRowContext(ctx, "SELECT "+analysisColumns+`
		FROM similarity_analyses
		WHERE promotion_project_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT 1`, promotionProjectID, status))
	if err != nil {
		return nil, notFound(err, store.ErrAnalysisNotFound)
	}
	return a, nil
}

func (s *PostgresSimilarityStore) UpsertResult(ctx context.Context, r *domain.SimilarityResult) error {
	d1, d2 := domain.OrderPair(r.Deliverable1ID, r.Deliverable2ID)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO similarity_results (id, analysis_id, deliverable1_id, deliverable2_id, score,
			is_suspicious, details, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (analysis_id, deliverable1_id, deliverable2_id) DO UPDATE
		SET score = EXCLUDED.score, is_suspicious = EXCLUDED.is_suspicious,
		    details = EXCLUDED.details, error = EXCLUDED.error`,
		r.ID, r.AnalysisID, d1, d2, r.Score, r.IsSuspicious, jsonArg(r.Details), r.Error, r.CreatedAt)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to save similarity result",
			slog.String("error", err.Error()),
			slog.String("analysis_id", r.AnalysisID.String()))
		return MapError(err)
	}
	return nil
}

const resultViewSelect = `
	SELECT sr.id, sr.analysis_id, sr.deliverable1_id, sr.deliverable2_id, sr.score, sr.is_suspicious,
	       sr.details, sr.error, sr.created_at, d1.name, d2.name, g1.name, g2.name
	FROM similarity_results sr
	JOIN deliverables d1 ON d1.id = sr.deliverable1_id
	JOIN deliverables d2 ON d2.id = sr.deliverable2_id
	JOIN project_groups g1 ON g1.id = d1.project_group_id
	JOIN project_groups g2 ON g2.id = d2.project_group_id
`

func (s *PostgresSimilarityStore) listResults(ctx context.Context, query string, arg any) ([]domain.SimilarityResultView, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	out := []domain.SimilarityResultView{}
	for rows.Next() {
		var (
			v       domain.SimilarityResultView
			details []byte
		)
		if err := rows.Scan(&v.ID, &v.AnalysisID, &v.Deliverable1ID, &v.Deliverable2ID, &v.Score,
			&v.IsSuspicious, &details, &v.Error, &v.CreatedAt,
			&v.Deliverable1Name, &v.Deliverable2Name, &v.Group1Name, &v.Group2Name); err != nil {
			return nil, MapError(err)
		}
		if len(details) > 0 {
			v.Details = details
		}
		out = append(out, v)
	}
	return out, MapError(rows.Err())
}

func (s *PostgresSimilarityStore) ListResults(ctx context.Context, analysisID uuid.UUID) ([]domain.SimilarityResultView, error) {
	return s.listResults(ctx, resultViewSelect+`
		WHERE sr.analysis_id = $1
		ORDER BY sr.score DESC NULLS LAST, d1.name, d2.name`, analysisID)
}

func (s *PostgresSimilarityStore) ListResultsForDeliverable(ctx context.Context, deliverableID uuid.UUID) ([]domain.SimilarityResultView, error) {
	return s.listResults(ctx, resultViewSelect+`
		WHERE (sr.deliverable1_id = $1 OR sr.deliverable2_id = $1)
		  AND sr.analysis_id = (
		      SELECT sa.id FROM similarity_analyses sa
		      JOIN project_groups g ON g.promotion_project_id = sa.promotion_project_id
		      JOIN deliverables d ON d.project_group_id = g.id
		      WHERE d.id = $1 AND sa.status = 'completed'
		      ORDER BY sa.created_at DESC
		      LIMIT 1)
		ORDER BY sr.score DESC NULLS LAST`, deliverableID)
}

func (s *PostgresSimilarityStore) WithTx(tx *sql.Tx) store.SimilarityStore {
	return &PostgresSimilarityStore{db: tx, logger: s.logger}
}
