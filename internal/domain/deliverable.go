package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultGitBranch is used when a git link is attached without a branch.
const DefaultGitBranch = "main"

var (
	gitURLPattern    = regexp.MustCompile(`^(https?://)?([\da-z.-]+)\.([a-z.]{2,6})([/\w .-]*)*/?\.git$`)
	githubURLPattern = regexp.MustCompile(`^https://github\.com/[\w.-]+/[\w.-]+$`)
)

// ValidGitURL accepts clone URLs ending in .git and bare GitHub repository
// URLs.
func ValidGitURL(raw string) bool {
	return gitURLPattern.MatchString(raw) || githubURLPattern.MatchString(raw)
}

// GitRepo links a deliverable to a repository.
type GitRepo struct {
	URL    string `json:"url"`
	Branch string `json:"branch"`
}

// Deliverable is a group's submission for a promotion project.
type Deliverable struct {
	ID                  uuid.UUID   `json:"id"`
	Name                string      `json:"name"`
	Description         *string     `json:"description,omitempty"`
	Deadline            *time.Time  `json:"deadline,omitempty"`
	SubmittedAt         *time.Time  `json:"submitted_at,omitempty"`
	SubmissionComment   *string     `json:"submission_comment,omitempty"`
	ProjectGroupID      uuid.UUID   `json:"project_group_id"`
	UploadedByStudentID uuid.UUID   `json:"uploaded_by_student_id"`
	Archive             *StoredFile `json:"archive,omitempty"`
	GitRepo             *GitRepo    `json:"git_repo,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// NewDeliverable validates and builds a deliverable uploaded by studentID.
func NewDeliverable(name string, description *string, deadline *time.Time, groupID, studentID uuid.UUID) (*Deliverable, error) {
	now := time.Now().UTC()
	d := &Deliverable{
		ID:                  uuid.New(),
		Name:                strings.TrimSpace(name),
		Description:         description,
		Deadline:            deadline,
		ProjectGroupID:      groupID,
		UploadedByStudentID: studentID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate checks if the Deliverable has valid data.
func (d *Deliverable) Validate() error {
	if d.Name == "" {
		return NewValidationError("name", "cannot be empty", nil)
	}
	if d.ProjectGroupID == uuid.Nil {
		return NewValidationError("project_group_id", "cannot be empty", ErrInvalidID)
	}
	if d.UploadedByStudentID == uuid.Nil {
		return NewValidationError("uploaded_by_student_id", "cannot be empty", ErrInvalidID)
	}
	if d.GitRepo != nil && !ValidGitURL(d.GitRepo.URL) {
		return NewValidationError("git_url", "must be a .git URL or a GitHub repository URL", nil)
	}
	return nil
}

// IsSubmitted reports whether the deliverable has been submitted.
func (d *Deliverable) IsSubmitted() bool { return d.SubmittedAt != nil }

// IsLateAt reports whether t is past the deadline.
func (d *Deliverable) IsLateAt(t time.Time) bool {
	return d.Deadline != nil && t.After(*d.Deadline)
}

// Submit marks the deliverable submitted at now. Submitting twice is a
// conflict, and so is submitting late without asking to.
func (d *Deliverable) Submit(now time.Time, comment *string, submitLate bool) error {
	if d.IsSubmitted() {
		return NewValidationError("", "deliverable has already been submitted", ErrConflict)
	}
	if d.IsLateAt(now) && !submitLate {
		return NewValidationError("submit_late", "deadline has passed, set submit_late to submit anyway", nil)
	}
	now = now.UTC()
	d.SubmittedAt = &now
	d.SubmissionComment = comment
	d.UpdatedAt = now
	return nil
}
