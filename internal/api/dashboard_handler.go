package api

import (
	"log/slog"
	"net/http"

	"github.com/mygeslike/api/internal/api/shared"
	"github.com/mygeslike/api/internal/service"
)

// DashboardHandler serves the teacher's per promotion project dashboard.
type DashboardHandler struct {
	dashboard service.DashboardService
	logger    *slog.Logger
}

// NewDashboardHandler creates a DashboardHandler.
func NewDashboardHandler(dashboard service.DashboardService, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		dashboard: dashboard,
		logger:    logger.With(slog.String("component", "dashboard_handler")),
	}
}

// Overview handles GET /api/teacher/promotion-projects/{id}/overview.
func (h *DashboardHandler) Overview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	o, err := h.dashboard.Overview(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load overview")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, o)
}

// Submissions handles GET /api/teacher/promotion-projects/{id}/submissions.
func (h *DashboardHandler) Submissions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	subs, err := h.dashboard.Submissions(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load submissions")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, subs)
}

// Compliance handles GET /api/teacher/promotion-projects/{id}/compliance.
func (h *DashboardHandler) Compliance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	c, err := h.dashboard.Compliance(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load compliance")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, c)
}

// Similarity handles GET /api/teacher/promotion-projects/{id}/similarity.
func (h *DashboardHandler) Similarity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	results, err := h.dashboard.Similarity(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load similarity results")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, results)
}
