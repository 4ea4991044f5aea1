package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProjectGroup is a team of students working on one promotion project.
type ProjectGroup struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	PromotionProjectID uuid.UUID `json:"promotion_project_id"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ProjectGroupWithMembers is a group with the users behind its student
// profiles.
type ProjectGroupWithMembers struct {
	ProjectGroup
	Students []User `json:"students"`
}

// HasStudent reports whether the student profile belongs to the group.
func (g *ProjectGroupWithMembers) HasStudent(studentID uuid.UUID) bool {
	for _, s := range g.Students {
		if s.ProfileID == studentID {
			return true
		}
	}
	return false
}

// ProjectGroupStudent is a membership row. A student holds at most one
// membership per promotion project.
type ProjectGroupStudent struct {
	ProjectGroupID     uuid.UUID `json:"project_group_id"`
	StudentID          uuid.UUID `json:"student_id"`
	PromotionProjectID uuid.UUID `json:"promotion_project_id"`
}

// NewProjectGroup validates and builds a group.
func NewProjectGroup(name string, promotionProjectID uuid.UUID) (*ProjectGroup, error) {
	now := time.Now().UTC()
	g := &ProjectGroup{
		ID:                 uuid.New(),
		Name:               strings.TrimSpace(name),
		PromotionProjectID: promotionProjectID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if g.Name == "" {
		return nil, NewValidationError("name", "cannot be empty", nil)
	}
	if g.PromotionProjectID == uuid.Nil {
		return nil, NewValidationError("promotion_project_id", "cannot be empty", ErrInvalidID)
	}
	return g, nil
}
