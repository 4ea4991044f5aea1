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

// PostgresReportSectionStore implements store.ReportSectionStore. The
// section order is kept in the position column.
type PostgresReportSectionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresReportSectionStore creates a report section store over db.
func NewPostgresReportSectionStore(db store.DBTX, logger *slog.Logger) *PostgresReportSectionStore {
	mustDB(db)
	return &PostgresReportSectionStore{db: db, logger: componentLogger(logger, "report_section_store")}
}

var _ store.ReportSectionStore = (*PostgresReportSectionStore)(nil)

const sectionColumns = `id, title, description, position, promotion_project_id, created_by_teacher_id,
	created_at, updated_at`

func scanSection(row rowScanner) (*domain.ReportSection, error) {
	var rs domain.ReportSection
	if err := row.Scan(&rs.ID, &rs.Title, &rs.Description, &rs.Order, &rs.PromotionProjectID,
		&rs.CreatedByTeacherID, &rs.CreatedAt, &rs.UpdatedAt); err != nil {
		return nil, err
	}
	return &rs, nil
}

func (s *PostgresReportSectionStore) Create(ctx context.Context, rs *domain.ReportSection) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO report_sections (`+sectionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rs.ID, rs.Title, rs.Description, rs.Order, rs.PromotionProjectID, rs.CreatedByTeacherID,
		rs.CreatedAt, rs.UpdatedAt)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return store.ErrPromotionProjectNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to create report section",
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

func (s *PostgresReportSectionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ReportSection, error) {
	rs, err := scanSection(s.db.QueryRowContext(ctx,
		"SELECT "+sectionColumns+" FROM report_sections WHERE id = $1", id))
	if err != nil {
		return nil, notFound(err, store.ErrReportSectionNotFound)
	}
	return rs, nil
}

func (s *PostgresReportSectionStore) Update(ctx context.Context, rs *domain.ReportSection) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE report_sections SET title = $1, description = $2, position = $3, updated_at = $4
		WHERE id = $5`,
		rs.Title, rs.Description, rs.Order, rs.UpdatedAt, rs.ID)
	if err != nil {
		return MapError(err)
	}
	return expectRows(res, store.ErrReportSectionNotFound)
}

func (s *PostgresReportSectionStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM report_sections WHERE id = $1", id)
	if err != nil {
		return MapError(err)
	}
	return expectRows(res, store.ErrReportSectionNotFound)
}

func (s *PostgresReportSectionStore) ListByPromotionProject(ctx context.Context, promotionProjectID uuid.UUID) ([]domain.ReportSection, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+sectionColumns+" FROM report_sections WHERE promotion_project_id = $1 ORDER BY position, created_at",
		promotionProjectID)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	out := []domain.ReportSection{}
	for rows.Next() {
		rs, err := scanSection(rows)
		if err != nil {
			return nil, MapError(err)
		}
		out = append(out, *rs)
	}
	return out, MapError(rows.Err())
}

func (s *PostgresReportSectionStore) CountByOwner(ctx context.Context, promotionProjectID, teacherID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM report_sections WHERE promotion_project_id = $1 AND created_by_teacher_id = $2",
		promotionProjectID, teacherID).Scan(&n)
	return n, MapError(err)
}

func (s *PostgresReportSectionStore) ShiftOrders(ctx context.Context, promotionProjectID, teacherID uuid.UUID, from, to, delta int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE report_sections SET position = position + $1, updated_at = NOW()
		WHERE promotion_project_id = $2 AND created_by_teacher_id = $3 AND position BETWEEN $4 AND $5`,
		delta, promotionProjectID, teacherID, from, to)
	return MapError(err)
}

func (s *PostgresReportSectionStore) WithTx(tx *sql.Tx) store.ReportSectionStore {
	return &PostgresReportSectionStore{db: tx, logger: s.logger}
}

// PostgresReportStore implements store.ReportStore.
type PostgresReportStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresReportStore creates a report store over db.
func NewPostgresReportStore(db store.DBTX, logger *slog.Logger) *PostgresReportStore {
	mustDB(db)
	return &PostgresReportStore{db: db, logger: componentLogger(logger, "report_store")}
}

var _ store.ReportStore = (*PostgresReportStore)(nil)

const reportWithSectionSelect = `
	SELECT r.id, r.content, r.project_group_id, r.report_section_id, r.created_by_student_id,
	       r.created_at, r.updated_at, rs.title, rs.position, g.name
	FROM reports r
	JOIN report_sections rs ON rs.id = r.report_section_id
	JOIN project_groups g ON g.id = r.project_group_id
`

func (s *PostgresReportStore) Upsert(ctx context.Context, r *domain.Report) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO reports (id, content, project_group_id, report_section_id, created_by_student_id,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (project_group_id, report_section_id) DO UPDATE
		SET content = EXCLUDED.content, updated_at = EXCLUDED.updated_at
		RETURNING id, created_by_student_id, created_at`,
		r.ID, r.Content, r.ProjectGroupID, r.ReportSectionID, r.CreatedByStudentID,
		r.CreatedAt, r.UpdatedAt).Scan(&r.ID, &r.CreatedByStudentID, &r.CreatedAt)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return domain.NewValidationError("report_section_id", "section or group does not exist", domain.ErrInvalidID)
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to upsert report",
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

func (s *PostgresReportStore) list(ctx context.Context, query string, args ...any) ([]domain.ReportWithSection, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	out := []domain.ReportWithSection{}
	for rows.Next() {
		var r domain.ReportWithSection
		if err := rows.Scan(&r.ID, &r.Content, &r.ProjectGroupID, &r.ReportSectionID, &r.CreatedByStudentID,
			&r.CreatedAt, &r.UpdatedAt, &r.SectionTitle, &r.SectionOrder, &r.GroupName); err != nil {
			return nil, MapError(err)
		}
		out = append(out, r)
	}
	return out, MapError(rows.Err())
}

func (s *PostgresReportStore) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]domain.ReportWithSection, error) {
	return s.list(ctx, reportWithSectionSelect+`
		WHERE r.project_group_id = $1
		ORDER BY rs.position`, groupID)
}

func (s *PostgresReportStore) ListByPromotion(ctx context.Context, promotionID uuid.UUID) ([]domain.ReportWithSection, error) {
	return s.list(ctx, reportWithSectionSelect+`
		JOIN promotion_projects pp ON pp.id = g.promotion_project_id
		WHERE pp.promotion_id = $1
		ORDER BY g.name, rs.position`, promotionID)
}

func (s *PostgresReportStore) FindContent(
	ctx context.Context,
	promotionID uuid.UUID,
	projectName, groupName string,
	sectionTitle *string,
) ([]domain.ReportWithSection, error) {
	var titleArg any
	if sectionTitle != nil {
		titleArg = *sectionTitle
	}
	return s.list(ctx, reportWithSectionSelect+`
		JOIN promotion_projects pp ON pp.id = g.promotion_project_id
		JOIN projects p ON p.id = pp.project_id
		WHERE pp.promotion_id = $1 AND p.name = $2 AND g.name = $3
		  AND ($4::text IS NULL OR rs.title = $4)
		ORDER BY rs.position`, promotionID, projectName, groupName, titleArg)
}

func (s *PostgresReportStore) WithTx(tx *sql.Tx) store.ReportStore {
	return &PostgresReportStore{db: tx, logger: s.logger}
}
