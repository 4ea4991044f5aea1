package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/mygeslike/api/internal/domain"
)

// SimilarityStore persists similarity analyses and their pair results.
type SimilarityStore interface {
	CreateAnalysis(ctx context.Context, a *domain.SimilarityAnalysis) error
	GetAnalysis(ctx context.Context, id uuid.UUID) (*domain.SimilarityAnalysis, error)

	// UpdateAnalysis writes status, summary, error and timestamps.
	UpdateAnalysis(ctx context.Context, a *domain.SimilarityAnalysis) error

	// LatestAnalysis returns the newest analysis of a promotion project
	// with the given status, or ErrAnalysisNotFound.
	LatestAnalysis(ctx context.Context, promotionProjectID uuid.UUID, status domain.AnalysisStatus) (*domain.SimilarityAnalysis, error)

	// UpsertResult writes the result of one pair within an analysis.
	UpsertResult(ctx context.Context, r *domain.SimilarityResult) error

	// ListResults returns an analysis's pair results with names, highest
	// score first and failed pairs last.
	ListResults(ctx context.Context, analysisID uuid.UUID) ([]domain.SimilarityResultView, error)

	// ListResultsForDeliverable returns the pairs involving a deliverable
	// across the latest completed analysis of its promotion project.
	ListResultsForDeliverable(ctx context.Context, deliverableID uuid.UUID) ([]domain.SimilarityResultView, error)

	WithTx(tx *sql.Tx) SimilarityStore
}
