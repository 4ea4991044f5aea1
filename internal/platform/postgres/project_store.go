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

// PostgresProjectStore implements store.ProjectStore.
type PostgresProjectStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresProjectStore creates a project store over db.
func NewPostgresProjectStore(db store.DBTX, logger *slog.Logger) *PostgresProjectStore {
	mustDB(db)
	return &PostgresProjectStore{db: db, logger: componentLogger(logger, "project_store")}
}

var _ store.ProjectStore = (*PostgresProjectStore)(nil)

const projectColumns = `id, name, description, visibility, file_key, file_name, file_size,
	created_by_teacher_id, created_at, updated_at`

func scanProject(row rowScanner) (*domain.Project, error) {
	var (
		p        domain.Project
		fileKey  sql.NullString
		fileName sql.NullString
		fileSize sql.NullInt64
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Visibility, &fileKey, &fileName, &fileSize,
		&p.CreatedByTeacherID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if fileKey.Valid {
		p.File = &domain.StoredFile{Key: fileKey.String, FileName: fileName.String, Size: fileSize.Int64}
	}
	return &p, nil
}

// fileArgs splits an optional stored file into nullable column values.
func fileArgs(f *domain.StoredFile) (key, name, size any) {
	if f == nil {
		return nil, nil, nil
	}
	return f.Key, f.FileName, f.Size
}

func (s *PostgresProjectStore) Create(ctx context.Context, p *domain.Project) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	key, name, size := fileArgs(p.File)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (`+projectColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.Name, p.Description, p.Visibility, key, name, size,
		p.CreatedByTeacherID, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return domain.NewValidationError("created_by_teacher_id", "teacher does not exist", domain.ErrInvalidID)
		}
		log.Error("failed to create project", slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

func (s *PostgresProjectStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	p, err := scanProject(s.db.QueryRowContext(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE id = $1", id))
	if err != nil {
		return nil, notFound(err, store.ErrProjectNotFound)
	}
	return p, nil
}

func (s *PostgresProjectStore) ListByTeacher(ctx context.Context, teacherID uuid.UUID) ([]domain.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE created_by_teacher_id = $1 ORDER BY created_at DESC",
		teacherID)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	projects := []domain.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, MapError(err)
		}
		projects = append(projects, *p)
	}
	return projects, MapError(rows.Err())
}

func (s *PostgresProjectStore) Update(ctx context.Context, p *domain.Project) error {
	key, name, size := fileArgs(p.File)
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects
		SET name = $1, description = $2, visibility = $3, file_key = $4, file_name = $5,
		    file_size = $6, updated_at = $7
		WHERE id = $8`,
		p.Name, p.Description, p.Visibility, key, name, size, p.UpdatedAt, p.ID)
	if err != nil {
		return MapError(err)
	}
	return expectRows(res, store.ErrProjectNotFound)
}

func (s *PostgresProjectStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM projects WHERE id = $1", id)
	if err != nil {
		return MapError(err)
	}
	return expectRows(res, store.ErrProjectNotFound)
}

func (s *PostgresProjectStore) WithTx(tx *sql.Tx) store.ProjectStore {
	return &PostgresProjectStore{db: tx, logger: s.logger}
}
