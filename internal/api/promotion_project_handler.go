package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mygeslike/api/internal/api/shared"
	"github.com/mygeslike/api/internal/domain"
	"github.com/mygeslike/api/internal/service"
)

// PromotionProjectRequest is the body of POST /api/promotion-projects.
type PromotionProjectRequest struct {
	ProjectID           uuid.UUID `json:"project_id" validate:"required"`
	PromotionID         uuid.UUID `json:"promotion_id" validate:"required"`
	MinPerGroup         int       `json:"min_per_group" validate:"required,min=1"`
	MaxPerGroup         int       `json:"max_per_group" validate:"required,gtefield=MinPerGroup"`
	AllowLateSubmission bool      `json:"allow_late_submission"`
	IsReportRequired    bool      `json:"is_report_required"`
	GroupRule           string    `json:"group_rule" validate:"omitempty,oneof=MANUAL RANDOM FREE"`
	Malus               *float64  `json:"malus,omitempty" validate:"omitempty,gte=0"`
	MalusTimeType       *string   `json:"malus_time_type,omitempty" validate:"omitempty,oneof=HOUR DAY WEEK"`
	StartDate           *Date     `json:"start_date" validate:"required"`
	EndDate             *Date     `json:"end_date" validate:"required"`
}

// UpdatePromotionProjectRequest is the body of PUT /api/promotion-projects/{id}.
type UpdatePromotionProjectRequest struct {
	MinPerGroup         *int     `json:"min_per_group,omitempty" validate:"omitempty,min=1"`
	MaxPerGroup         *int     `json:"max_per_group,omitempty" validate:"omitempty,min=1"`
	AllowLateSubmission *bool    `json:"allow_late_submission,omitempty"`
	IsReportRequired    *bool    `json:"is_report_required,omitempty"`
	GroupRule           *string  `json:"group_rule,omitempty" validate:"omitempty,oneof=MANUAL RANDOM FREE"`
	Malus               *float64 `json:"malus,omitempty" validate:"omitempty,gte=0"`
	MalusTimeType       *string  `json:"malus_time_type,omitempty" validate:"omitempty,oneof=HOUR DAY WEEK"`
	StartDate           *Date    `json:"start_date,omitempty"`
	EndDate             *Date    `json:"end_date,omitempty"`
}

// PromotionProjectHandler serves promotion projects to teachers and
// students.
type PromotionProjectHandler struct {
	promotionProjects service.PromotionProjectService
	logger            *slog.Logger
}

// NewPromotionProjectHandler creates a PromotionProjectHandler.
func NewPromotionProjectHandler(pps service.PromotionProjectService, logger *slog.Logger) *PromotionProjectHandler {
	return &PromotionProjectHandler{
		promotionProjects: pps,
		logger:            logger.With(slog.String("component", "promotion_project_handler")),
	}
}

// Create handles POST /api/promotion-projects.
func (h *PromotionProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req PromotionProjectRequest
	if !decode(w, r, &req) {
		return
	}

	in := service.PromotionProjectInput{
		ProjectID:           req.ProjectID,
		PromotionID:         req.PromotionID,
		MinPerGroup:         req.MinPerGroup,
		MaxPerGroup:         req.MaxPerGroup,
		AllowLateSubmission: req.AllowLateSubmission,
		IsReportRequired:    req.IsReportRequired,
		GroupRule:           domain.GroupRule(req.GroupRule),
		Malus:               req.Malus,
		StartDate:           req.StartDate.Time,
		EndDate:             req.EndDate.Time,
	}
	if req.MalusTimeType != nil {
		m := domain.MalusTimeType(*req.MalusTimeType)
		in.MalusTimeType = &m
	}

	pp, err := h.promotionProjects.Create(r.Context(), in)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create promotion project")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, pp)
}

// Update handles PUT /api/promotion-projects/{id}.
func (h *PromotionProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req UpdatePromotionProjectRequest
	if !decode(w, r, &req) {
		return
	}

	in := service.UpdatePromotionProjectInput{
		MinPerGroup:         req.MinPerGroup,
		MaxPerGroup:         req.MaxPerGroup,
		AllowLateSubmission: req.AllowLateSubmission,
		IsReportRequired:    req.IsReportRequired,
		Malus:               req.Malus,
		StartDate:           timePtr(req.StartDate),
		EndDate:             timePtr(req.EndDate),
	}
	if req.GroupRule != nil {
		g := domain.GroupRule(*req.GroupRule)
		in.GroupRule = &g
	}
	if req.MalusTimeType != nil {
		m := domain.MalusTimeType(*req.MalusTimeType)
		in.MalusTimeType = &m
	}

	pp, err := h.promotionProjects.Update(r.Context(), id, in)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update promotion project")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, pp)
}

// Delete handles DELETE /api/promotion-projects/{id}.
func (h *PromotionProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.promotionProjects.Delete(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "Failed to delete promotion project")
		return
	}
	shared.RespondNoContent(w)
}

// ListForStudent handles GET /api/promotion-projects/current-student.
func (h *PromotionProjectHandler) ListForStudent(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOf(w, r)
	if !ok {
		return
	}
	list, err := h.promotionProjects.ListForStudent(r.Context(), p.ScopeID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list promotion projects")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, list)
}

// DetailForTeacher handles GET /api/promotion-projects/teacher/project/{name}.
func (h *PromotionProjectHandler) DetailForTeacher(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOf(w, r)
	if !ok {
		return
	}
	detail, err := h.promotionProjects.DetailForTeacher(r.Context(), p.ScopeID, chi.URLParam(r, "name"))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, detail)
}

// DetailForStudent handles GET /api/promotion-projects/student/project/{name}.
func (h *PromotionProjectHandler) DetailForStudent(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOf(w, r)
	if !ok {
		return
	}
	detail, err := h.promotionProjects.DetailForStudent(r.Context(), p.ScopeID, chi.URLParam(r, "name"))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, detail)
}
