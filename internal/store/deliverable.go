package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/mygeslike/api/internal/domain"
)

// DeliverableStore persists deliverables and their rule results.
type DeliverableStore interface {
	Create(ctx context.Context, d *domain.Deliverable) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Deliverable, error)
	Update(ctx context.Context, d *domain.Deliverable) error
	Delete(ctx context.Context, id uuid.UUID) error

	// ListByGroup returns a group's deliverables, newest first.
	ListByGroup(ctx context.Context, groupID uuid.UUID) ([]domain.Deliverable, error)

	// ListByPromotionProject returns every deliverable of every group of a
	// promotion project, ordered by group then creation time.
	ListByPromotionProject(ctx context.Context, promotionProjectID uuid.UUID) ([]domain.Deliverable, error)

	// SaveRuleResults upserts one row per rule for the deliverable.
	SaveRuleResults(ctx context.Context, deliverableID, groupID uuid.UUID, results []domain.RuleResult, validatedAt time.Time) error

	// GetRuleResults returns the latest stored result of each rule, in rule
	// creation order, and the time of the latest validation (nil when the
	// deliverable was never validated).
	GetRuleResults(ctx context.Context, deliverableID uuid.UUID) ([]domain.RuleResult, *time.Time, error)

	// ListRuleResultsByPromotionProject returns stored results keyed by
	// group ID for every deliverable of a promotion project.
	ListRuleResultsByPromotionProject(ctx context.Context, promotionProjectID uuid.UUID) (map[uuid.UUID][]domain.RuleResult, error)

	WithTx(tx *sql.Tx) DeliverableStore
}

// RuleStore persists deliverable rules and their assignment to promotion
// projects.
type RuleStore interface {
	Create(ctx context.Context, r *domain.DeliverableRule) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.DeliverableRule, error)
	List(ctx context.Context) ([]domain.DeliverableRule, error)
	Update(ctx context.Context, r *domain.DeliverableRule) error
	Delete(ctx context.Context, id uuid.UUID) error

	// ListByPromotionProject returns assigned rules in assignment order.
	ListByPromotionProject(ctx context.Context, promotionProjectID uuid.UUID) ([]domain.DeliverableRule, error)

	// Assign links a rule to a promotion project. Returns
	// ErrRuleAlreadyAssigned for an existing link.
	Assign(ctx context.Context, ruleID, promotionProjectID uuid.UUID) error

	Unassign(ctx context.Context, ruleID, promotionProjectID uuid.UUID) error

	WithTx(tx *sql.Tx) RuleStore
}
