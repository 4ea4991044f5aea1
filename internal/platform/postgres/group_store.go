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

// PostgresProjectGroupStore implements store.ProjectGroupStore.
type PostgresProjectGroupStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresProjectGroupStore creates a group store over db.
func NewPostgresProjectGroupStore(db store.DBTX, logger *slog.Logger) *PostgresProjectGroupStore {
	mustDB(db)
	return &PostgresProjectGroupStore{db: db, logger: componentLogger(logger, "project_group_store")}
}

var _ store.ProjectGroupStore = (*PostgresProjectGroupStore)(nil)

const groupColumns = `g.id, g.name, g.promotion_project_id, g.created_at, g.updated_at`

func scanGroup(row rowScanner) (*domain.ProjectGroup, error) {
	var g domain.ProjectGroup
	if err := row.Scan(&g.ID, &g.Name, &g.PromotionProjectID, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *PostgresProjectGroupStore) Create(ctx context.Context, g *domain.ProjectGroup) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO project_groups (id, name, promotion_project_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		g.ID, g.Name, g.PromotionProjectID, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return store.ErrPromotionProjectNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to create group",
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

func (s *PostgresProjectGroupStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ProjectGroup, error) {
	g, err := scanGroup(s.db.QueryRowContext(ctx,
		"SELECT "+groupColumns+" FROM project_groups g WHERE g.id = $1", id))
	if err != nil {
		return nil, notFound(err, store.ErrProjectGroupNotFound)
	}
	return g, nil
}

func (s *PostgresProjectGroupStore) Update(ctx context.Context, g *domain.ProjectGroup) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE project_groups SET name = $1, updated_at = $2 WHERE id = $3",
		g.Name, g.UpdatedAt, g.ID)
	if err != nil {
		return MapError(err)
	}
	return expectRows(res, store.ErrProjectGroupNotFound)
}

func (s *PostgresProjectGroupStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM project_groups WHERE id = $1", id)
	if err != nil {
		return MapError(err)
	}
	return expectRows(res, store.ErrProjectGroupNotFound)
}

// members loads the users of the given groups, keyed by group ID.
func (s *PostgresProjectGroupStore) members(ctx context.Context, where string, arg any) (map[uuid.UUID][]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pgs.project_group_id,
		       u.id, u.email, u.first_name, u.last_name, u.role, u.hashed_password,
		       st.id, u.created_at, u.updated_at
		FROM project_group_students pgs
		JOIN students st ON st.id = pgs.student_id
		JOIN users u ON u.id = st.user_id
		WHERE `+where+`
		ORDER BY u.last_name, u.first_name`, arg)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]domain.User)
	for rows.Next() {
		var (
			groupID   uuid.UUID
			u         domain.User
			profileID uuid.UUID
		)
		if err := rows.Scan(&groupID, &u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Role,
			&u.HashedPassword, &profileID, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, MapError(err)
		}
		u.ProfileID = profileID
		out[groupID] = append(out[groupID], u)
	}
	return out, MapError(rows.Err())
}

func (s *PostgresProjectGroupStore) ListWithMembers(ctx context.Context, promotionProjectID uuid.UUID) ([]domain.ProjectGroupWithMembers, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+groupColumns+" FROM project_groups g WHERE g.promotion_project_id = $1 ORDER BY g.name, g.created_at",
		promotionProjectID)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	groups := []domain.ProjectGroupWithMembers{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, MapError(err)
		}
		groups = append(groups, domain.ProjectGroupWithMembers{ProjectGroup: *g, Students: []domain.User{}})
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	members, err := s.members(ctx, "pgs.promotion_project_id = $1", promotionProjectID)
	if err != nil {
		return nil, err
	}
	for i := range groups {
		if m, ok := members[groups[i].ID]; ok {
			groups[i].Students = m
		}
	}
	return groups, nil
}

func (s *PostgresProjectGroupStore) GetWithMembers(ctx context.Context, id uuid.UUID) (*domain.ProjectGroupWithMembers, error) {
	g, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	members, err := s.members(ctx, "pgs.project_group_id = $1", id)
	if err != nil {
		return nil, err
	}
	out := &domain.ProjectGroupWithMembers{ProjectGroup: *g, Students: members[id]}
	if out.Students == nil {
		out.Students = []domain.User{}
	}
	return out, nil
}

func (s *PostgresProjectGroupStore) CountByPromotionProject(ctx context.Context, promotionProjectID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM project_groups WHERE promotion_project_id = $1", promotionProjectID).Scan(&n)
	return n, MapError(err)
}

func (s *PostgresProjectGroupStore) FindForStudent(ctx context.Context, promotionProjectID, studentID uuid.UUID) (*domain.ProjectGroup, error) {
	g, err := scanGroup(s.db.QueryRowContext(ctx, "SELECT "+groupColumns+`
		FROM project_groups g
		JOIN project_group_students pgs ON pgs.project_group_id = g.id
		WHERE pgs.promotion_project_id = $1 AND pgs.student_id = $2`,
		promotionProjectID, studentID))
	if err != nil {
		return nil, notFound(err, store.ErrProjectGroupNotFound)
	}
	return g, nil
}

func (s *PostgresProjectGroupStore) IsMember(ctx context.Context, groupID, studentID uuid.UUID) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM project_group_students WHERE project_group_id = $1 AND student_id = $2
		)`, groupID, studentID).Scan(&ok)
	return ok, MapError(err)
}

func (s *PostgresProjectGroupStore) AddStudent(ctx context.Context, m domain.ProjectGroupStudent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO project_group_students (project_group_id, student_id, promotion_project_id)
		VALUES ($1, $2, $3)`,
		m.ProjectGroupID, m.StudentID, m.PromotionProjectID)
	if err != nil {
		// Either the primary key or the one-group-per-project constraint.
		if IsUniqueViolation(err) {
			return store.ErrStudentHasGroup
		}
		if IsForeignKeyViolation(err) {
			return domain.NewValidationError("student_id", "student or group does not exist", domain.ErrInvalidID)
		}
		return MapError(err)
	}
	return nil
}

func (s *PostgresProjectGroupStore) RemoveStudent(ctx context.Context, groupID, studentID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM project_group_students WHERE project_group_id = $1 AND student_id = $2",
		groupID, studentID)
	if err != nil {
		return MapError(err)
	}
	return expectRows(res, store.ErrNotFound)
}

func (s *PostgresProjectGroupStore) ReplaceStudents(
	ctx context.Context,
	groupID, promotionProjectID uuid.UUID,
	studentIDs []uuid.UUID,
) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM project_group_students WHERE project_group_id = $1", groupID); err != nil {
		return MapError(err)
	}
	for _, id := range studentIDs {
		if err := s.AddStudent(ctx, domain.ProjectGroupStudent{
			ProjectGroupID:     groupID,
			StudentID:          id,
			PromotionProjectID: promotionProjectID,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresProjectGroupStore) WithTx(tx *sql.Tx) store.ProjectGroupStore {
	return &PostgresProjectGroupStore{db: tx, logger: s.logger}
}
