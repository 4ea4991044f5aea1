package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mygeslike/api/internal/api/shared"
	"github.com/mygeslike/api/internal/domain"
	"github.com/mygeslike/api/internal/service"
)

// CreatePromotionRequest is the body of POST /api/promotions.
type CreatePromotionRequest struct {
	Name      string `json:"name" validate:"required,max=255"`
	StartDate *Date  `json:"start_date" validate:"required"`
	EndDate   *Date  `json:"end_date" validate:"required"`
}

// UpdatePromotionRequest is the body of PUT /api/promotions/{id}.
type UpdatePromotionRequest struct {
	Name      *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	StartDate *Date   `json:"start_date,omitempty"`
	EndDate   *Date   `json:"end_date,omitempty"`
}

// NewStudentRequest is one row of POST /api/promotions/students.
type NewStudentRequest struct {
	Email       string    `json:"email" validate:"required,email"`
	FirstName   string    `json:"first_name" validate:"required,max=100"`
	LastName    string    `json:"last_name" validate:"required,max=100"`
	PromotionID uuid.UUID `json:"promotion_id" validate:"required"`
}

// PromotionHandler serves the teacher's promotion endpoints.
type PromotionHandler struct {
	promotions service.PromotionService
	logger     *slog.Logger
}

// NewPromotionHandler creates a PromotionHandler.
func NewPromotionHandler(promotions service.PromotionService, logger *slog.Logger) *PromotionHandler {
	return &PromotionHandler{
		promotions: promotions,
		logger:     logger.With(slog.String("component", "promotion_handler")),
	}
}

// List handles GET /api/promotions. With ?name= it returns that promotion
// with its students and promotion projects.
func (h *PromotionHandler) List(w http.ResponseWriter, r *http.Request) {
	if name := strings.TrimSpace(r.URL.Query().Get("name")); name != "" {
		detail, err := h.promotions.GetDetailByName(r.Context(), name)
		if err != nil {
			HandleAPIError(w, r, err, "")
			return
		}
		shared.RespondWithJSON(w, r, http.StatusOK, detail)
		return
	}

	list, err := h.promotions.List(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list promotions")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, list)
}

// Create handles POST /api/promotions.
func (h *PromotionHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOf(w, r)
	if !ok {
		return
	}
	var req CreatePromotionRequest
	if !decode(w, r, &req) {
		return
	}

	promotion, err := h.promotions.Create(r.Context(), p.ScopeID, service.CreatePromotionInput{
		Name:      req.Name,
		StartDate: req.StartDate.Time,
		EndDate:   req.EndDate.Time,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create promotion")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, promotion)
}

// Update handles PUT /api/promotions/{id}.
func (h *PromotionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req UpdatePromotionRequest
	if !decode(w, r, &req) {
		return
	}

	promotion, err := h.promotions.Update(r.Context(), id, service.UpdatePromotionInput{
		Name:      req.Name,
		StartDate: timePtr(req.StartDate),
		EndDate:   timePtr(req.EndDate),
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update promotion")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, promotion)
}

// Delete handles DELETE /api/promotions/{id}.
func (h *PromotionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.promotions.Delete(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "Failed to delete promotion")
		return
	}
	shared.RespondNoContent(w)
}

// AddStudents handles POST /api/promotions/students.
func (h *PromotionHandler) AddStudents(w http.ResponseWriter, r *http.Request) {
	var rows []NewStudentRequest
	if err := shared.DecodeJSON(r, &rows); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if len(rows) == 0 {
		HandleAPIError(w, r, domain.NewValidationError("students", "cannot be empty", nil), "")
		return
	}

	in := make([]service.NewStudentInput, 0, len(rows))
	for i, row := range rows {
		if err := shared.ValidateRequest(&row); err != nil {
			HandleAPIError(w, r, domain.NewValidationError(fmt.Sprintf("students[%d]:", i), err.Error(), nil), "")
			return
		}
		in = append(in, service.NewStudentInput{
			Email:       row.Email,
			FirstName:   row.FirstName,
			LastName:    row.LastName,
			PromotionID: row.PromotionID,
		})
	}

	users, err := h.promotions.AddStudents(r.Context(), in)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to add students")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, users)
}
