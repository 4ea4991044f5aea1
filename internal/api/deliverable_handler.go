package api

import (
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strconv"

	"github.com/google/uuid"

	"github.com/mygeslike/api/internal/api/shared"
	"github.com/mygeslike/api/internal/domain"
	"github.com/mygeslike/api/internal/platform/logger"
	"github.com/mygeslike/api/internal/service"
)

// CreateDeliverableRequest is the body of POST /api/deliverables.
type CreateDeliverableRequest struct {
	Name           string    `json:"name" validate:"required,max=255"`
	Description    *string   `json:"description,omitempty"`
	Deadline       *Date     `json:"deadline,omitempty"`
	ProjectGroupID uuid.UUID `json:"project_group_id" validate:"required"`
}

// UpdateDeliverableRequest is the body of PATCH /api/deliverables/{id}.
type UpdateDeliverableRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description,omitempty"`
	Deadline    *Date   `json:"deadline,omitempty"`
}

// GitRepoRequest is the body of POST /api/deliverables/{id}/git.
type GitRepoRequest struct {
	GitURL string `json:"git_url" validate:"required,max=2048"`
	Branch string `json:"branch,omitempty" validate:"omitempty,max=255"`
}

// SubmitRequest is the body of POST /api/deliverables/{id}/submit. The body
// is optional.
type SubmitRequest struct {
	Comment    *string `json:"comment,omitempty" validate:"omitempty,max=2000"`
	SubmitLate bool    `json:"submit_late"`
}

// ArchiveResponse is returned by an archive upload.
type ArchiveResponse struct {
	Deliverable *domain.Deliverable      `json:"deliverable"`
	Validation  *domain.ValidationReport `json:"validation,omitempty"`
}

// DeliverableHandler serves deliverables, their archives and their rule
// validation.
type DeliverableHandler struct {
	deliverables service.DeliverableService
	logger       *slog.Logger
}

// NewDeliverableHandler creates a DeliverableHandler.
func NewDeliverableHandler(deliverables service.DeliverableService, logger *slog.Logger) *DeliverableHandler {
	return &DeliverableHandler{
		deliverables: deliverables,
		logger:       logger.With(slog.String("component", "deliverable_handler")),
	}
}

// Create handles POST /api/deliverables.
func (h *DeliverableHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOf(w, r)
	if !ok {
		return
	}
	var req CreateDeliverableRequest
	if !decode(w, r, &req) {
		return
	}
	d, err := h.deliverables.Create(r.Context(), p, service.CreateDeliverableInput{
		Name:           req.Name,
		Description:    req.Description,
		Deadline:       timePtr(req.Deadline),
		ProjectGroupID: req.ProjectGroupID,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create deliverable")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, d)
}

// ListByGroup handles GET /api/deliverables/project-group/{id}.
func (h *DeliverableHandler) ListByGroup(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOf(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	list, err := h.deliverables.ListByGroup(r.Context(), p, id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list deliverables")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, list)
}

// Get handles GET /api/deliverables/{id}.
func (h *DeliverableHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	d, err := h.deliverables.Get(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, d)
}

// Update handles PATCH /api/deliverables/{id}.
func (h *DeliverableHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOf(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req UpdateDeliverableRequest
	if !decode(w, r, &req) {
		return
	}
	d, err := h.deliverables.Update(r.Context(), p, id, service.UpdateDeliverableInput{
		Name:        req.Name,
		Description: req.Description,
		Deadline:    timePtr(req.Deadline),
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update deliverable")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, d)
}

// Delete handles DELETE /api/deliverables/{id}.
func (h *DeliverableHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOf(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.deliverables.Delete(r.Context(), p, id); err != nil {
		HandleAPIError(w, r, err, "Failed to delete deliverable")
		return
	}
	shared.RespondNoContent(w)
}

// UploadArchive handles POST /api/deliverables/{id}/archive. The archive
// is validated against the rules right away; failing rules do not reject
// the upload.
func (h *DeliverableHandler) UploadArchive(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOf(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := parseMultipart(w, r, service.MaxArchiveBytes); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	file, closeFile, err := formUpload(r, "file")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	defer closeFile()
	if file == nil {
		HandleAPIError(w, r, domain.NewValidationError("file", "is required", nil), "")
		return
	}

	d, report, err := h.deliverables.UploadArchive(r.Context(), p, id, file)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to upload archive")
		return
	}
	logger.FromContextOrDefault(r.Context(), h.logger).Debug("archive uploaded",
		slog.String("deliverable_id", d.ID.String()),
		slog.Bool("validated", report != nil))
	shared.RespondWithJSON(w, r, http.StatusOK, ArchiveResponse{Deliverable: d, Validation: report})
}

// AttachGit handles POST /api/deliverables/{id}/git.
func (h *DeliverableHandler) AttachGit(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOf(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req GitRepoRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Branch == "" {
		req.Branch = domain.DefaultGitBranch
	}
	d, err := h.deliverables.AttachGit(r.Context(), p, id, domain.GitRepo{URL: req.GitURL, Branch: req.Branch})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to attach repository")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, d)
}

// Submit handles POST /api/deliverables/{id}/submit.
func (h *DeliverableHandler) Submit(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOf(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req SubmitRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	sub, err := h.deliverables.Submit(r.Context(), p, id, service.SubmitInput{
		Comment:    req.Comment,
		SubmitLate: req.SubmitLate,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to submit deliverable")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, sub)
}

// Download handles GET /api/deliverables/{id}/download.
func (h *DeliverableHandler) Download(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOf(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	dl, err := h.deliverables.Download(r.Context(), p, id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, dl)
}

// File handles GET /api/deliverables/{id}/file. It streams the archive
// with an attachment disposition.
func (h *DeliverableHandler) File(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOf(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	f, err := h.deliverables.OpenArchive(r.Context(), p, id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to open archive")
		return
	}
	defer f.Body.Close()

	contentType := mime.TypeByExtension(path.Ext(f.FileName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.FileName}))
	if f.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(f.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f.Body); err != nil {
		logger.FromContextOrDefault(r.Context(), h.logger).Warn("archive stream interrupted",
			slog.String("deliverable_id", id.String()),
			slog.String("error", err.Error()))
	}
}

// Validate handles POST /api/deliverables/{id}/validate.
func (h *DeliverableHandler) Validate(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOf(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	report, err := h.deliverables.Validate(r.Context(), p, id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to validate deliverable")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, report)
}

// ValidationResults handles GET /api/deliverables/{id}/validation-results.
func (h *DeliverableHandler) ValidationResults(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	report, err := h.deliverables.ValidationResults(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, report)
}

// Compliance handles GET /api/deliverables/{id}/compliance.
func (h *DeliverableHandler) Compliance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	c, err := h.deliverables.Compliance(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, c)
}
