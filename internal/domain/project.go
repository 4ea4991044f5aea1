package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Visibility controls whether students can see a project.
type Visibility string

const (
	VisibilityDraft   Visibility = "DRAFT"
	VisibilityVisible Visibility = "VISIBLE"
)

// Valid reports whether v is a known visibility.
func (v Visibility) Valid() bool {
	return v == VisibilityDraft || v == VisibilityVisible
}

// Project is a teacher-authored assignment that can be attached to any
// number of promotions.
type Project struct {
	ID                 uuid.UUID   `json:"id"`
	Name               string      `json:"name"`
	Description        *string     `json:"description,omitempty"`
	Visibility         Visibility  `json:"visibility"`
	File               *StoredFile `json:"file,omitempty"`
	CreatedByTeacherID uuid.UUID   `json:"created_by_teacher_id"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// StoredFile points at an object in file storage.
type StoredFile struct {
	Key      string `json:"key"`
	FileName string `json:"file_name"`
	Size     int64  `json:"size"`
	URL      string `json:"url,omitempty"`
}

// NewProject validates and builds a project owned by teacherID.
func NewProject(name string, description *string, visibility Visibility, teacherID uuid.UUID) (*Project, error) {
	if visibility == "" {
		visibility = VisibilityDraft
	}
	now := time.Now().UTC()
	p := &Project{
		ID:                 uuid.New(),
		Name:               strings.TrimSpace(name),
		Description:        description,
		Visibility:         visibility,
		CreatedByTeacherID: teacherID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks if the Project has valid data.
func (p *Project) Validate() error {
	if p.Name == "" {
		return NewValidationError("name", "cannot be empty", nil)
	}
	if !p.Visibility.Valid() {
		return NewValidationError("visibility", "must be DRAFT or VISIBLE", nil)
	}
	if p.CreatedByTeacherID == uuid.Nil {
		return NewValidationError("created_by_teacher_id", "cannot be empty", ErrInvalidID)
	}
	return nil
}
