package domain

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AnalysisStatus is the lifecycle state of a similarity analysis.
type AnalysisStatus string

const (
	AnalysisPending    AnalysisStatus = "pending"
	AnalysisProcessing AnalysisStatus = "processing"
	AnalysisCompleted  AnalysisStatus = "completed"
	AnalysisFailed     AnalysisStatus = "failed"
)

// SuspiciousScore is the score above which a pair is counted as highly
// similar in summaries.
const SuspiciousScore = 0.7

// MinDeliverablesForAnalysis is the smallest set worth comparing.
const MinDeliverablesForAnalysis = 2

// AnalysisSummary aggregates the pair results of one analysis.
type AnalysisSummary struct {
	TotalComparisons    int     `json:"total_comparisons"`
	Completed           int     `json:"completed"`
	Failed              int     `json:"failed"`
	HighSimilarityCount int     `json:"high_similarity_count"`
	AverageSimilarity   float64 `json:"average_similarity"`
	MaxSimilarity       float64 `json:"max_similarity"`
}

// SimilarityAnalysis is one run comparing every pair of archived
// deliverables of a promotion project.
type SimilarityAnalysis struct {
	ID                   uuid.UUID        `json:"id"`
	PromotionProjectID   uuid.UUID        `json:"promotion_project_id"`
	RequestedByTeacherID uuid.UUID        `json:"requested_by_teacher_id"`
	Status               AnalysisStatus   `json:"status"`
	Summary              *AnalysisSummary `json:"summary,omitempty"`
	Error                *string          `json:"error,omitempty"`
	StartedAt            *time.Time       `json:"started_at,omitempty"`
	CompletedAt          *time.Time       `json:"completed_at,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// NewSimilarityAnalysis creates a pending analysis.
func NewSimilarityAnalysis(promotionProjectID, teacherID uuid.UUID) *SimilarityAnalysis {
	now := time.Now().UTC()
	return &SimilarityAnalysis{
		ID:                   uuid.New(),
		PromotionProjectID:   promotionProjectID,
		RequestedByTeacherID: teacherID,
		Status:               AnalysisPending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// SimilarityResult is the comparison of two deliverables within an
// analysis. Deliverable1ID always sorts before Deliverable2ID. Score is nil
// when the comparison failed, in which case Error is set.
type SimilarityResult struct {
	ID             uuid.UUID       `json:"id"`
	AnalysisID     uuid.UUID       `json:"analysis_id"`
	Deliverable1ID uuid.UUID       `json:"deliverable1_id"`
	Deliverable2ID uuid.UUID       `json:"deliverable2_id"`
	Score          *float64        `json:"score,omitempty"`
	IsSuspicious   bool            `json:"is_suspicious"`
	Details        json.RawMessage `json:"details,omitempty"`
	Error          *string         `json:"error,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// SimilarityResultView adds names for display.
type SimilarityResultView struct {
	SimilarityResult
	Deliverable1Name string `json:"deliverable1_name"`
	Deliverable2Name string `json:"deliverable2_name"`
	Group1Name       string `json:"group1_name"`
	Group2Name       string `json:"group2_name"`
}

// OrderPair returns a and b sorted by their byte representation.
func OrderPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(a[:], b[:]) > 0 {
		return b, a
	}
	return a, b
}
