package api

import (
	"log/slog"
	"net/http"

	"github.com/mygeslike/api/internal/api/shared"
	"github.com/mygeslike/api/internal/domain"
	"github.com/mygeslike/api/internal/service"
)

// ProjectHandler serves the teacher's own projects. Create and update take
// multipart forms so a project brief can travel with the fields.
type ProjectHandler struct {
	projects service.ProjectService
	logger   *slog.Logger
}

// NewProjectHandler creates a ProjectHandler.
func NewProjectHandler(projects service.ProjectService, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{
		projects: projects,
		logger:   logger.With(slog.String("component", "project_handler")),
	}
}

// ListMine handles GET /api/projects/me.
func (h *ProjectHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOf(w, r)
	if !ok {
		return
	}
	list, err := h.projects.ListMine(r.Context(), p.ScopeID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list projects")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, list)
}

// Create handles POST /api/projects.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOf(w, r)
	if !ok {
		return
	}
	if err := parseMultipart(w, r, service.MaxProjectFileBytes); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	name, _ := formString(r, "name")
	in := service.CreateProjectInput{
		Name:       name,
		Visibility: domain.VisibilityDraft,
	}
	if v, ok := formString(r, "visibility"); ok && v != "" {
		in.Visibility = domain.Visibility(v)
	}
	if d, ok := formString(r, "description"); ok {
		in.Description = &d
	}

	file, closeFile, err := formUpload(r, "file")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	defer closeFile()

	project, err := h.projects.Create(r.Context(), p.ScopeID, in, file)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create project")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, project)
}

// Update handles PUT /api/projects/{id}. Absent fields are left as they are.
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOf(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := parseMultipart(w, r, service.MaxProjectFileBytes); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var in service.UpdateProjectInput
	if v, ok := formString(r, "name"); ok {
		in.Name = &v
	}
	if v, ok := formString(r, "description"); ok {
		in.Description = &v
	}
	if v, ok := formString(r, "visibility"); ok {
		vis := domain.Visibility(v)
		in.Visibility = &vis
	}

	file, closeFile, err := formUpload(r, "file")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	defer closeFile()

	project, err := h.projects.Update(r.Context(), p.ScopeID, id, in, file)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update project")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, project)
}

// Delete handles DELETE /api/projects/{id}.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOf(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.projects.Delete(r.Context(), p.ScopeID, id); err != nil {
		HandleAPIError(w, r, err, "Failed to delete project")
		return
	}
	shared.RespondNoContent(w)
}
