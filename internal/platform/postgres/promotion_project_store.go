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

// PostgresPromotionProjectStore implements store.PromotionProjectStore.
type PostgresPromotionProjectStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresPromotionProjectStore creates a promotion project store over db.
func NewPostgresPromotionProjectStore(db store.DBTX, logger *slog.Logger) *PostgresPromotionProjectStore {
	mustDB(db)
	return &PostgresPromotionProjectStore{db: db, logger: componentLogger(logger, "promotion_project_store")}
}

var _ store.PromotionProjectStore = (*PostgresPromotionProjectStore)(nil)

const promotionProjectColumns = `pp.id, pp.project_id, pp.promotion_id, pp.min_per_group, pp.max_per_group,
	pp.allow_late_submission, pp.is_report_required, pp.group_rule, pp.malus, pp.malus_time_type,
	pp.start_date, pp.end_date, pp.created_at, pp.updated_at`

func scanPromotionProject(row rowScanner) (*domain.PromotionProject, error) {
	var pp domain.PromotionProject
	if err := row.Scan(&pp.ID, &pp.ProjectID, &pp.PromotionID, &pp.MinPerGroup, &pp.MaxPerGroup,
		&pp.AllowLateSubmission, &pp.IsReportRequired, &pp.GroupRule, &pp.Malus, &pp.MalusTimeType,
		&pp.StartDate, &pp.EndDate, &pp.CreatedAt, &pp.UpdatedAt); err != nil {
		return nil, err
	}
	return &pp, nil
}

func (s *PostgresPromotionProjectStore) list(ctx context.Context, query string, args ...any) ([]domain.PromotionProject, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	out := []domain.PromotionProject{}
	for rows.Next() {
		pp, err := scanPromotionProject(rows)
		if err != nil {
			return nil, MapError(err)
		}
		out = append(out, *pp)
	}
	return out, MapError(rows.Err())
}

func (s *PostgresPromotionProjectStore) Create(ctx context.Context, pp *domain.PromotionProject) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO promotion_projects (id, project_id, promotion_id, min_per_group, max_per_group,
			allow_late_submission, is_report_required, group_rule, malus, malus_time_type,
			start_date, end_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		pp.ID, pp.ProjectID, pp.PromotionID, pp.MinPerGroup, pp.MaxPerGroup,
		pp.AllowLateSubmission, pp.IsReportRequired, pp.GroupRule, pp.Malus, pp.MalusTimeType,
		pp.StartDate, pp.EndDate, pp.CreatedAt, pp.UpdatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return store.NewStoreError("promotion_project", "create",
				"project is already attached to this promotion", store.ErrDuplicate)
		}
		if IsForeignKeyViolation(err) {
			return domain.NewValidationError("project_id", "project or promotion does not exist", domain.ErrInvalidID)
		}
		log.Error("failed to create promotion project", slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

func (s *PostgresPromotionProjectStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.PromotionProject, error) {
	pp, err := scanPromotionProject(s.db.QueryRowContext(ctx,
		"SELECT "+promotionProjectColumns+" FROM promotion_projects pp WHERE pp.id = $1", id))
	if err != nil {
		return nil, notFound(err, store.ErrPromotionProjectNotFound)
	}
	return pp, nil
}

func (s *PostgresPromotionProjectStore) Update(ctx context.Context, pp *domain.PromotionProject) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE promotion_projects
		SET min_per_group = $1, max_per_group = $2, allow_late_submission = $3,
		    is_report_required = $4, group_rule = $5, malus = $6, malus_time_type = $7,
		    start_date = $8, end_date = $9, updated_at = $10
		WHERE id = $11`,
		pp.MinPerGroup, pp.MaxPerGroup, pp.AllowLateSubmission, pp.IsReportRequired, pp.GroupRule,
		pp.Malus, pp.MalusTimeType, pp.StartDate, pp.EndDate, pp.UpdatedAt, pp.ID)
	if err != nil {
		return MapError(err)
	}
	return expectRows(res, store.ErrPromotionProjectNotFound)
}

func (s *PostgresPromotionProjectStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM promotion_projects WHERE id = $1", id)
	if err != nil {
		return MapError(err)
	}
	return expectRows(res, store.ErrPromotionProjectNotFound)
}

func (s *PostgresPromotionProjectStore) ListByPromotion(ctx context.Context, promotionID uuid.UUID) ([]domain.PromotionProject, error) {
	return s.list(ctx, "SELECT "+promotionProjectColumns+
		" FROM promotion_projects pp WHERE pp.promotion_id = $1 ORDER BY pp.start_date, pp.created_at", promotionID)
}

func (s *PostgresPromotionProjectStore) ListForStudent(ctx context.Context, studentID uuid.UUID) ([]domain.PromotionProject, error) {
	return s.list(ctx, "SELECT "+promotionProjectColumns+`
		FROM promotion_projects pp
		JOIN promotion_students ps ON ps.promotion_id = pp.promotion_id
		WHERE ps.student_id = $1
		ORDER BY pp.created_at DESC`, studentID)
}

func (s *PostgresPromotionProjectStore) FindByProjectName(
	ctx context.Context,
	name string,
	teacherID, studentID *uuid.UUID,
) (*domain.PromotionProject, error) {
	var teacherArg, studentArg any
	if teacherID != nil {
		teacherArg = *teacherID
	}
	if studentID != nil {
		studentArg = *studentID
	}

	pp, err := scanPromotionProject(s.db.QueryRowContext(ctx, "SELECT "+promotionProjectColumns+`
		FROM promotion_projects pp
		JOIN projects p ON p.id = pp.project_id
		WHERE p.name = $1
		  AND ($2::uuid IS NULL OR p.created_by_teacher_id = $2)
		  AND ($3::uuid IS NULL OR EXISTS (
		      SELECT 1 FROM promotion_students ps
		      WHERE ps.promotion_id = pp.promotion_id AND ps.student_id = $3))
		ORDER BY pp.created_at DESC
		LIMIT 1`, name, teacherArg, studentArg))
	if err != nil {
		return nil, notFound(err, store.ErrPromotionProjectNotFound)
	}
	return pp, nil
}

func (s *PostgresPromotionProjectStore) WithTx(tx *sql.Tx) store.PromotionProjectStore {
	return &PostgresPromotionProjectStore{db: tx, logger: s.logger}
}
