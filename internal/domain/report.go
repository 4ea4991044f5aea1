package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ReportSection is a titled part of the written report a promotion project
// asks for. Orders are 1-based and contiguous per promotion project.
type ReportSection struct {
	ID                 uuid.UUID `json:"id"`
	Title              string    `json:"title"`
	Description        *string   `json:"description,omitempty"`
	Order              int       `json:"order"`
	PromotionProjectID uuid.UUID `json:"promotion_project_id"`
	CreatedByTeacherID uuid.UUID `json:"created_by_teacher_id"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Validate checks if the ReportSection has valid data.
func (s *ReportSection) Validate() error {
	if strings.TrimSpace(s.Title) == "" {
		return NewValidationError("title", "cannot be empty", nil)
	}
	if s.PromotionProjectID == uuid.Nil {
		return NewValidationError("promotion_project_id", "cannot be empty", ErrInvalidID)
	}
	if s.Order < 1 {
		return NewValidationError("order", "must be at least 1", nil)
	}
	return nil
}

// Report is a group's content for one report section.
type Report struct {
	ID                 uuid.UUID `json:"id"`
	Content            string    `json:"content"`
	ProjectGroupID     uuid.UUID `json:"project_group_id"`
	ReportSectionID    uuid.UUID `json:"report_section_id"`
	CreatedByStudentID uuid.UUID `json:"created_by_student_id"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ReportWithSection carries the section a report was written for.
type ReportWithSection struct {
	Report
	SectionTitle string `json:"section_title"`
	SectionOrder int    `json:"section_order"`
	GroupName    string `json:"group_name,omitempty"`
}

// JoinReportContent concatenates section contents with a blank line.
func JoinReportContent(reports []ReportWithSection) string {
	parts := make([]string, 0, len(reports))
	for _, r := range reports {
		parts = append(parts, r.Content)
	}
	return strings.Join(parts, "\n\n")
}
