package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/mygeslike/api/internal/domain"
)

// PromotionStore persists promotions and their student rosters.
type PromotionStore interface {
	Create(ctx context.Context, p *domain.Promotion) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Promotion, error)
	GetByName(ctx context.Context, name string) (*domain.Promotion, error)
	List(ctx context.Context) ([]domain.Promotion, error)
	Update(ctx context.Context, p *domain.Promotion) error
	Delete(ctx context.Context, id uuid.UUID) error

	// AddStudent enrolls a student profile. Enrolling twice is a no-op.
	AddStudent(ctx context.Context, promotionID, studentID uuid.UUID) error

	// ListStudents returns the users enrolled in a promotion, by last name.
	ListStudents(ctx context.Context, promotionID uuid.UUID) ([]domain.User, error)

	// ListStudentIDs returns the student profile IDs enrolled in a promotion.
	ListStudentIDs(ctx context.Context, promotionID uuid.UUID) ([]uuid.UUID, error)

	WithTx(tx *sql.Tx) PromotionStore
}

// ProjectStore persists teacher projects.
type ProjectStore interface {
	Create(ctx context.Context, p *domain.Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error)

	// ListByTeacher returns a teacher's projects, newest first.
	ListByTeacher(ctx context.Context, teacherID uuid.UUID) ([]domain.Project, error)

	Update(ctx context.Context, p *domain.Project) error
	Delete(ctx context.Context, id uuid.UUID) error
	WithTx(tx *sql.Tx) ProjectStore
}

// PromotionProjectStore persists the attachment of projects to promotions.
type PromotionProjectStore interface {
	Create(ctx context.Context, pp *domain.PromotionProject) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PromotionProject, error)
	Update(ctx context.Context, pp *domain.PromotionProject) error
	Delete(ctx context.Context, id uuid.UUID) error

	ListByPromotion(ctx context.Context, promotionID uuid.UUID) ([]domain.PromotionProject, error)

	// ListForStudent returns the promotion projects of every promotion the
	// student is enrolled in, newest first.
	ListForStudent(ctx context.Context, studentID uuid.UUID) ([]domain.PromotionProject, error)

	// FindByProjectName returns the first promotion project, newest first,
	// whose project has the given name and which passes the owner filter:
	// a teacher ID restricts to that teacher's projects, a student ID to
	// the student's promotions. Exactly one filter is set.
	FindByProjectName(ctx context.Context, name string, teacherID, studentID *uuid.UUID) (*domain.PromotionProject, error)

	WithTx(tx *sql.Tx) PromotionProjectStore
}
