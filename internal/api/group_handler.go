package api

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/mygeslike/api/internal/api/shared"
	"github.com/mygeslike/api/internal/domain"
	"github.com/mygeslike/api/internal/service"
)

// CreateGroupRequest is the body of POST /api/project-groups.
type CreateGroupRequest struct {
	Name               string    `json:"name" validate:"required,max=255"`
	PromotionProjectID uuid.UUID `json:"promotion_project_id" validate:"required"`
}

// CreateAllGroupsRequest is the body of POST /api/project-groups/all.
type CreateAllGroupsRequest struct {
	PromotionProjectID uuid.UUID `json:"promotion_project_id" validate:"required"`
}

// UpdateGroupRequest is the body of PUT /api/project-groups/{id}. A present
// student_ids replaces the membership, an empty list clears it.
type UpdateGroupRequest struct {
	Name       *string      `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	StudentIDs *[]uuid.UUID `json:"student_ids,omitempty"`
}

// GroupStudentRequest is the body of POST /api/project-group-students.
type GroupStudentRequest struct {
	StudentID          uuid.UUID `json:"student_id" validate:"required"`
	ProjectGroupID     uuid.UUID `json:"project_group_id" validate:"required"`
	PromotionProjectID uuid.UUID `json:"promotion_project_id"`
}

// RemoveGroupStudentRequest is the body of DELETE /api/project-group-students.
type RemoveGroupStudentRequest struct {
	StudentID      uuid.UUID `json:"student_id" validate:"required"`
	ProjectGroupID uuid.UUID `json:"project_group_id" validate:"required"`
}

// GroupHandler serves project groups and their membership.
type GroupHandler struct {
	groups service.GroupService
	logger *slog.Logger
}

// NewGroupHandler creates a GroupHandler.
func NewGroupHandler(groups service.GroupService, logger *slog.Logger) *GroupHandler {
	return &GroupHandler{
		groups: groups,
		logger: logger.With(slog.String("component", "group_handler")),
	}
}

// Create handles POST /api/project-groups.
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if !decode(w, r, &req) {
		return
	}
	g, err := h.groups.Create(r.Context(), req.Name, req.PromotionProjectID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create project group")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, g)
}

// CreateAll handles POST /api/project-groups/all.
func (h *GroupHandler) CreateAll(w http.ResponseWriter, r *http.Request) {
	var req CreateAllGroupsRequest
	if !decode(w, r, &req) {
		return
	}
	groups, err := h.groups.CreateAll(r.Context(), req.PromotionProjectID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create project groups")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, groups)
}

// Update handles PUT /api/project-groups/{id}.
func (h *GroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req UpdateGroupRequest
	if !decode(w, r, &req) {
		return
	}
	g, err := h.groups.Update(r.Context(), id, service.UpdateGroupInput{Name: req.Name, StudentIDs: req.StudentIDs})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update project group")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, g)
}

// Delete handles DELETE /api/project-groups/{id}.
func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.groups.Delete(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "Failed to delete project group")
		return
	}
	shared.RespondNoContent(w)
}

// ListByPromotionProject handles GET /api/project-groups/promotion-project/{id}.
func (h *GroupHandler) ListByPromotionProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	groups, err := h.groups.ListWithMembers(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list project groups")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, groups)
}

// MyGroup handles GET /api/project-groups/promotion-project/{id}/me.
func (h *GroupHandler) MyGroup(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOf(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	g, err := h.groups.MyGroup(r.Context(), id, p.ScopeID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, g)
}

// AddStudent handles POST /api/project-group-students.
func (h *GroupHandler) AddStudent(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOf(w, r)
	if !ok {
		return
	}
	var req GroupStudentRequest
	if !decode(w, r, &req) {
		return
	}
	m := domain.ProjectGroupStudent{
		ProjectGroupID:     req.ProjectGroupID,
		StudentID:          req.StudentID,
		PromotionProjectID: req.PromotionProjectID,
	}
	if err := h.groups.AddStudent(r.Context(), p, m); err != nil {
		HandleAPIError(w, r, err, "Failed to add student to group")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, m)
}

// RemoveStudent handles DELETE /api/project-group-students.
func (h *GroupHandler) RemoveStudent(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOf(w, r)
	if !ok {
		return
	}
	var req RemoveGroupStudentRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.groups.RemoveStudent(r.Context(), p, req.ProjectGroupID, req.StudentID); err != nil {
		HandleAPIError(w, r, err, "Failed to remove student from group")
		return
	}
	shared.RespondNoContent(w)
}
