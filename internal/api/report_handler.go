package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mygeslike/api/internal/api/shared"
	"github.com/mygeslike/api/internal/service"
)

// CreateSectionRequest is the body of POST /api/report-sections.
type CreateSectionRequest struct {
	Title              string    `json:"title" validate:"required,max=255"`
	Description        *string   `json:"description,omitempty"`
	PromotionProjectID uuid.UUID `json:"promotion_project_id" validate:"required"`
}

// UpdateSectionRequest is the body of PATCH /api/report-sections/{id}.
type UpdateSectionRequest struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description,omitempty"`
	Order       *int    `json:"order,omitempty"`
}

// UpsertReportRequest is the body of POST /api/reports.
type UpsertReportRequest struct {
	Content         string    `json:"content"`
	ProjectGroupID  uuid.UUID `json:"project_group_id" validate:"required"`
	ReportSectionID uuid.UUID `json:"report_section_id" validate:"required"`
}

// ContentResponse is the joined report of a group.
type ContentResponse struct {
	Content string `json:"content"`
}

// ReportHandler serves report sections and the reports written against
// them.
type ReportHandler struct {
	reports service.ReportService
	logger  *slog.Logger
}

// NewReportHandler creates a ReportHandler.
func NewReportHandler(reports service.ReportService, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		reports: reports,
		logger:  logger.With(slog.String("component", "report_handler")),
	}
}

// CreateSection handles POST /api/report-sections.
func (h *ReportHandler) CreateSection(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOf(w, r)
	if !ok {
		return
	}
	var req CreateSectionRequest
	if !decode(w, r, &req) {
		return
	}
	section, err := h.reports.CreateSection(r.Context(), p.ScopeID, service.CreateSectionInput{
		Title:              req.Title,
		Description:        req.Description,
		PromotionProjectID: req.PromotionProjectID,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create report section")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, section)
}

// UpdateSection handles PATCH /api/report-sections/{id}.
func (h *ReportHandler) UpdateSection(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOf(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req UpdateSectionRequest
	if !decode(w, r, &req) {
		return
	}
	section, err := h.reports.UpdateSection(r.Context(), p.ScopeID, id, service.UpdateSectionInput{
		Title:       req.Title,
		Description: req.Description,
		Order:       req.Order,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update report section")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, section)
}

// DeleteSection handles DELETE /api/report-sections/{id}.
func (h *ReportHandler) DeleteSection(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOf(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.reports.DeleteSection(r.Context(), p.ScopeID, id); err != nil {
		HandleAPIError(w, r, err, "Failed to delete report section")
		return
	}
	shared.RespondNoContent(w)
}

// ListSections handles GET /api/report-sections/promotion-project/{id}.
func (h *ReportHandler) ListSections(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	sections, err := h.reports.ListSections(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list report sections")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, sections)
}

// Upsert handles POST /api/reports.
func (h *ReportHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOf(w, r)
	if !ok {
		return
	}
	var req UpsertReportRequest
	if !decode(w, r, &req) {
		return
	}
	report, err := h.reports.Upsert(r.Context(), p.ScopeID, service.UpsertReportInput{
		Content:         req.Content,
		ProjectGroupID:  req.ProjectGroupID,
		ReportSectionID: req.ReportSectionID,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to save report")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, report)
}

// ListByGroup handles GET /api/reports/project-group/{id}.
func (h *ReportHandler) ListByGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	reports, err := h.reports.ListByGroup(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list reports")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, reports)
}

// ListByPromotion handles GET /api/reports/promotion/{id}.
func (h *ReportHandler) ListByPromotion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	reports, err := h.reports.ListByPromotion(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list reports")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, reports)
}

// Content handles
// GET /api/reports/promotion/{id}/project/{projectName}/project-group/{groupName}/content.
func (h *ReportHandler) Content(w http.ResponseWriter, r *http.Request) {
	pid, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	q := service.ContentQuery{
		PromotionID: pid,
		ProjectName: chi.URLParam(r, "projectName"),
		GroupName:   chi.URLParam(r, "groupName"),
	}
	if section := r.URL.Query().Get("section"); section != "" {
		q.SectionTitle = &section
	}
	content, err := h.reports.Content(r.Context(), q)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load report content")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, ContentResponse{Content: content})
}
