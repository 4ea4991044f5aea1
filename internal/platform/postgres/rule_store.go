package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mygeslike/api/internal/domain"
	"github.com/mygeslike/api/internal/platform/logger"
	"github.com/mygeslike/api/internal/store"
)

// PostgresRuleStore implements store.RuleStore.
type PostgresRuleStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresRuleStore creates a rule store over db.
func NewPostgresRuleStore(db store.DBTX, logger *slog.Logger) *PostgresRuleStore {
	mustDB(db)
	return &PostgresRuleStore{db: db, logger: componentLogger(logger, "rule_store")}
}

var _ store.RuleStore = (*PostgresRuleStore)(nil)

const ruleColumns = `r.id, r.rule_type, r.payload, r.created_by_teacher_id, r.created_at, r.updated_at`

func scanRule(row rowScanner) (*domain.DeliverableRule, error) {
	var (
		r       domain.DeliverableRule
		payload []byte
	)
	if err := row.Scan(&r.ID, &r.RuleType, &payload, &r.CreatedByTeacherID, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Payload = payload
	return &r, nil
}

func (s *PostgresRuleStore) list(ctx context.Context, query string, args ...any) ([]domain.DeliverableRule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	out := []domain.DeliverableRule{}
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, MapError(err)
		}
		out = append(out, *r)
	}
	return out, MapError(rows.Err())
}

func (s *PostgresRuleStore) Create(ctx context.Context, r *domain.DeliverableRule) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deliverable_rules (id, rule_type, payload, created_by_teacher_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.RuleType, jsonArg(r.Payload), r.CreatedByTeacherID, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return domain.NewValidationError("created_by_teacher_id", "teacher does not exist", domain.ErrInvalidID)
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to create rule",
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

func (s *PostgresRuleStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.DeliverableRule, error) {
	r, err := scanRule(s.db.QueryRowContext(ctx,
		"SELECT "+ruleColumns+" FROM deliverable_rules r WHERE r.id = $1", id))
	if err != nil {
		return nil, notFound(err, store.ErrRuleNotFound)
	}
	return r, nil
}

func (s *PostgresRuleStore) List(ctx context.Context) ([]domain.DeliverableRule, error) {
	return s.list(ctx, "SELECT "+ruleColumns+" FROM deliverable_rules r ORDER BY r.created_at DESC")
}

func (s *PostgresRuleStore) Update(ctx context.Context, r *domain.DeliverableRule) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE deliverable_rules SET rule_type = $1, payload = $2, updated_at = $3 WHERE id = $4",
		r.RuleType, jsonArg(r.Payload), r.UpdatedAt, r.ID)
	if err != nil {
		return MapError(err)
	}
	return expectRows(res, store.ErrRuleNotFound)
}

func (s *PostgresRuleStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM deliverable_rules WHERE id = $1", id)
	if err != nil {
		return MapError(err)
	}
	return expectRows(res, store.ErrRuleNotFound)
}

func (s *PostgresRuleStore) ListByPromotionProject(ctx context.Context, promotionProjectID uuid.UUID) ([]domain.DeliverableRule, error) {
	return s.list(ctx, "SELECT "+ruleColumns+`
		FROM deliverable_rules r
		JOIN promotion_project_rules ppr ON ppr.deliverable_rule_id = r.id
		WHERE ppr.promotion_project_id = $1
		ORDER BY ppr.created_at, r.id`, promotionProjectID)
}

func (s *PostgresRuleStore) Assign(ctx context.Context, ruleID, promotionProjectID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO promotion_project_rules (promotion_project_id, deliverable_rule_id)
		VALUES ($1, $2)`, promotionProjectID, ruleID)
	if err != nil {
		if IsUniqueViolation(err) {
			return store.ErrRuleAlreadyAssigned
		}
		if IsForeignKeyViolation(err) {
			return domain.NewValidationError("rule_id", "rule or promotion project does not exist", domain.ErrInvalidID)
		}
		return MapError(err)
	}
	return nil
}

func (s *PostgresRuleStore) Unassign(ctx context.Context, ruleID, promotionProjectID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM promotion_project_rules WHERE promotion_project_id = $1 AND deliverable_rule_id = $2",
		promotionProjectID, ruleID)
	if err != nil {
		return MapError(err)
	}
	return expectRows(res, store.ErrRuleNotFound)
}

func (s *PostgresRuleStore) WithTx(tx *sql.Tx) store.RuleStore {
	return &PostgresRuleStore{db: tx, logger: s.logger}
}
