package api

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/mygeslike/api/internal/api/shared"
	"github.com/mygeslike/api/internal/domain"
	"github.com/mygeslike/api/internal/platform/logger"
	"github.com/mygeslike/api/internal/service"
)

// AnalyzeRequest is the body of POST /api/similarity/analyze.
type AnalyzeRequest struct {
	PromotionProjectID uuid.UUID `json:"promotion_project_id" validate:"required"`
}

// AnalysisResponse wraps a queued or finished analysis.
type AnalysisResponse struct {
	Analysis *domain.SimilarityAnalysis `json:"analysis"`
}

// SimilarityHandler starts similarity analyses and serves their results.
type SimilarityHandler struct {
	similarity service.SimilarityService
	logger     *slog.Logger
}

// NewSimilarityHandler creates a SimilarityHandler.
func NewSimilarityHandler(similarity service.SimilarityService, logger *slog.Logger) *SimilarityHandler {
	return &SimilarityHandler{
		similarity: similarity,
		logger:     logger.With(slog.String("component", "similarity_handler")),
	}
}

// Analyze handles POST /api/similarity/analyze. The comparison runs in the
// background; the response is 202 with the pending analysis.
func (h *SimilarityHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOf(w, r)
	if !ok {
		return
	}
	var req AnalyzeRequest
	if !decode(w, r, &req) {
		return
	}
	a, err := h.similarity.Analyze(r.Context(), p.ScopeID, req.PromotionProjectID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to start similarity analysis")
		return
	}
	logger.FromContextOrDefault(r.Context(), h.logger).Info("similarity analysis queued",
		slog.String("analysis_id", a.ID.String()),
		slog.String("promotion_project_id", req.PromotionProjectID.String()))
	shared.RespondWithJSON(w, r, http.StatusAccepted, AnalysisResponse{Analysis: a})
}

// GetAnalysis handles GET /api/similarity/analyses/{id}.
func (h *SimilarityHandler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	a, err := h.similarity.GetAnalysis(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, AnalysisResponse{Analysis: a})
}

// ProjectResults handles GET /api/similarity/project/{id}.
func (h *SimilarityHandler) ProjectResults(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	results, err := h.similarity.ProjectResults(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load similarity results")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, results)
}

// DeliverableResults handles GET /api/similarity/deliverable/{id}.
func (h *SimilarityHandler) DeliverableResults(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	results, err := h.similarity.DeliverableResults(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load similarity results")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, results)
}
