package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/mygeslike/api/internal/api/shared"
	"github.com/mygeslike/api/internal/domain"
	"github.com/mygeslike/api/internal/service"
)

// CreateRuleRequest is the body of POST /api/deliverable-rules.
type CreateRuleRequest struct {
	RuleType string          `json:"rule_type" validate:"required,oneof=MAX_SIZE_FILE FILE_PRESENCE FILE_CONTENT_MATCH FOLDER_STRUCTURE"`
	Payload  json.RawMessage `json:"payload" validate:"required"`
}

// UpdateRuleRequest is the body of PATCH /api/deliverable-rules/{id}.
type UpdateRuleRequest struct {
	Payload json.RawMessage `json:"payload" validate:"required"`
}

// AssignRuleRequest is the body of POST /api/deliverable-rules/assign.
type AssignRuleRequest struct {
	RuleID             uuid.UUID `json:"deliverable_rule_id" validate:"required"`
	PromotionProjectID uuid.UUID `json:"promotion_project_id" validate:"required"`
}

// RuleHandler serves deliverable rules and their assignment to promotion
// projects.
type RuleHandler struct {
	rules  service.RuleService
	logger *slog.Logger
}

// NewRuleHandler creates a RuleHandler.
func NewRuleHandler(rules service.RuleService, logger *slog.Logger) *RuleHandler {
	return &RuleHandler{
		rules:  rules,
		logger: logger.With(slog.String("component", "rule_handler")),
	}
}

// Create handles POST /api/deliverable-rules.
func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOf(w, r)
	if !ok {
		return
	}
	var req CreateRuleRequest
	if !decode(w, r, &req) {
		return
	}
	rule, err := h.rules.Create(r.Context(), p.ScopeID, domain.RuleType(req.RuleType), req.Payload)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create rule")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, rule)
}

// List handles GET /api/deliverable-rules.
func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	rules, err := h.rules.List(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list rules")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, rules)
}

// Get handles GET /api/deliverable-rules/{id}.
func (h *RuleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	rule, err := h.rules.Get(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, rule)
}

// Update handles PATCH /api/deliverable-rules/{id}. Only the payload can
// change.
func (h *RuleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req UpdateRuleRequest
	if !decode(w, r, &req) {
		return
	}
	rule, err := h.rules.UpdatePayload(r.Context(), id, req.Payload)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update rule")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, rule)
}

// Delete handles DELETE /api/deliverable-rules/{id}.
func (h *RuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.rules.Delete(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "Failed to delete rule")
		return
	}
	shared.RespondNoContent(w)
}

// ListByPromotionProject handles GET /api/deliverable-rules/promotion-project/{id}.
func (h *RuleHandler) ListByPromotionProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	rules, err := h.rules.ListByPromotionProject(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list rules")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, rules)
}

// Assign handles POST /api/deliverable-rules/assign.
func (h *RuleHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req AssignRuleRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.rules.Assign(r.Context(), req.RuleID, req.PromotionProjectID); err != nil {
		HandleAPIError(w, r, err, "Failed to assign rule")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, req)
}

// Unassign handles DELETE /api/deliverable-rules/{id}/promotion-project/{ppId}.
func (h *RuleHandler) Unassign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	ppID, ok := pathUUID(w, r, "ppId")
	if !ok {
		return
	}
	if err := h.rules.Unassign(r.Context(), id, ppID); err != nil {
		HandleAPIError(w, r, err, "Failed to unassign rule")
		return
	}
	shared.RespondNoContent(w)
}
