package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/mygeslike/api/internal/domain"
)

// ProjectGroupStore persists groups and their memberships.
type ProjectGroupStore interface {
	Create(ctx context.Context, g *domain.ProjectGroup) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ProjectGroup, error)
	Update(ctx context.Context, g *domain.ProjectGroup) error
	Delete(ctx context.Context, id uuid.UUID) error

	// ListWithMembers returns a promotion project's groups, by name, with
	// their students.
	ListWithMembers(ctx context.Context, promotionProjectID uuid.UUID) ([]domain.ProjectGroupWithMembers, error)

	GetWithMembers(ctx context.Context, id uuid.UUID) (*domain.ProjectGroupWithMembers, error)

	CountByPromotionProject(ctx context.Context, promotionProjectID uuid.UUID) (int, error)

	// FindForStudent returns the group a student belongs to in a promotion
	// project, or ErrProjectGroupNotFound.
	FindForStudent(ctx context.Context, promotionProjectID, studentID uuid.UUID) (*domain.ProjectGroup, error)

	// IsMember reports whether the student belongs to the group.
	IsMember(ctx context.Context, groupID, studentID uuid.UUID) (bool, error)

	// AddStudent inserts a membership. Returns ErrStudentHasGroup when the
	// student already has a group in the promotion project.
	AddStudent(ctx context.Context, m domain.ProjectGroupStudent) error

	RemoveStudent(ctx context.Context, groupID, studentID uuid.UUID) error

	// ReplaceStudents sets the group's membership to exactly studentIDs.
	ReplaceStudents(ctx context.Context, groupID, promotionProjectID uuid.UUID, studentIDs []uuid.UUID) error

	WithTx(tx *sql.Tx) ProjectGroupStore
}
