package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Promotion is a cohort of students managed by a teacher.
type Promotion struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	StartDate          time.Time `json:"start_date"`
	EndDate            time.Time `json:"end_date"`
	CreatedByTeacherID uuid.UUID `json:"created_by_teacher_id"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// PromotionDetail is a promotion with its students and the projects
// attached to it.
type PromotionDetail struct {
	Promotion
	Students          []User             `json:"students"`
	PromotionProjects []PromotionProject `json:"promotion_projects"`
}

// NewPromotion validates and builds a promotion owned by teacherID.
func NewPromotion(name string, start, end time.Time, teacherID uuid.UUID, now time.Time) (*Promotion, error) {
	p := &Promotion{
		ID:                 uuid.New(),
		Name:               strings.TrimSpace(name),
		StartDate:          start.UTC(),
		EndDate:            end.UTC(),
		CreatedByTeacherID: teacherID,
		CreatedAt:          now.UTC(),
		UpdatedAt:          now.UTC(),
	}
	if err := p.Validate(now, true); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the name, owner and period.
func (p *Promotion) Validate(now time.Time, checkPast bool) error {
	if p.Name == "" {
		return NewValidationError("name", "cannot be empty", nil)
	}
	if p.CreatedByTeacherID == uuid.Nil {
		return NewValidationError("created_by_teacher_id", "cannot be empty", ErrInvalidID)
	}
	return ValidatePeriod(p.StartDate, p.EndDate, now, checkPast)
}
