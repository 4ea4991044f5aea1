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

// PostgresPromotionStore implements store.PromotionStore.
type PostgresPromotionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresPromotionStore creates a promotion store over db.
func NewPostgresPromotionStore(db store.DBTX, logger *slog.Logger) *PostgresPromotionStore {
	mustDB(db)
	return &PostgresPromotionStore{db: db, logger: componentLogger(logger, "promotion_store")}
}

var _ store.PromotionStore = (*PostgresPromotionStore)(nil)

const promotionColumns = `id, name, start_date, end_date, created_by_teacher_id, created_at, updated_at`

func scanPromotion(row rowScanner) (*domain.Promotion, error) {
	var p domain.Promotion
	if err := row.Scan(&p.ID, &p.Name, &p.StartDate, &p.EndDate, &p.CreatedByTeacherID,
		&p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresPromotionStore) Create(ctx context.Context, p *domain.Promotion) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO promotions (`+promotionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.Name, p.StartDate, p.EndDate, p.CreatedByTeacherID, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return store.ErrPromotionNameTaken
		}
		if IsForeignKeyViolation(err) {
			return domain.NewValidationError("created_by_teacher_id", "teacher does not exist", domain.ErrInvalidID)
		}
		log.Error("failed to create promotion", slog.String("error", err.Error()))
		return MapError(err)
	}

	log.Debug("promotion created", slog.String("promotion_id", p.ID.String()))
	return nil
}

func (s *PostgresPromotionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Promotion, error) {
	p, err := scanPromotion(s.db.QueryRowContext(ctx,
		"SELECT "+promotionColumns+" FROM promotions WHERE id = $1", id))
	if err != nil {
		return nil, notFound(err, store.ErrPromotionNotFound)
	}
	return p, nil
}

func (s *PostgresPromotionStore) GetByName(ctx context.Context, name string) (*domain.Promotion, error) {
	p, err := scanPromotion(s.db.QueryRowContext(ctx,
		"SELECT "+promotionColumns+" FROM promotions WHERE name = $1", name))
	if err != nil {
		return nil, notFound(err, store.ErrPromotionNotFound)
	}
	return p, nil
}

func (s *PostgresPromotionStore) List(ctx context.Context) ([]domain.Promotion, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+promotionColumns+" FROM promotions ORDER BY start_date DESC, name")
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	promotions := []domain.Promotion{}
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, MapError(err)
		}
		promotions = append(promotions, *p)
	}
	return promotions, MapError(rows.Err())
}

func (s *PostgresPromotionStore) Update(ctx context.Context, p *domain.Promotion) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE promotions SET name = $1, start_date = $2, end_date = $3, updated_at = $4
		WHERE id = $5`,
		p.Name, p.StartDate, p.EndDate, p.UpdatedAt, p.ID)
	if err != nil {
		if IsUniqueViolation(err) {
			return store.ErrPromotionNameTaken
		}
		return MapError(err)
	}
	return expectRows(res, store.ErrPromotionNotFound)
}

func (s *PostgresPromotionStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM promotions WHERE id = $1", id)
	if err != nil {
		return MapError(err)
	}
	return expectRows(res, store.ErrPromotionNotFound)
}

func (s *PostgresPromotionStore) AddStudent(ctx context.Context, promotionID, studentID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO promotion_students (promotion_id, student_id)
		VALUES ($1, $2)
		ON CONFLICT (promotion_id, student_id) DO NOTHING`,
		promotionID, studentID)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return store.ErrPromotionNotFound
		}
		return MapError(err)
	}
	return nil
}

func (s *PostgresPromotionStore) ListStudents(ctx context.Context, promotionID uuid.UUID) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.email, u.first_name, u.last_name, u.role, u.hashed_password,
		       st.id, u.created_at, u.updated_at
		FROM promotion_students ps
		JOIN students st ON st.id = ps.student_id
		JOIN users u ON u.id = st.user_id
		WHERE ps.promotion_id = $1
		ORDER BY u.last_name, u.first_name`, promotionID)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, MapError(err)
		}
		users = append(users, *u)
	}
	return users, MapError(rows.Err())
}

func (s *PostgresPromotionStore) ListStudentIDs(ctx context.Context, promotionID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT student_id FROM promotion_students WHERE promotion_id = $1 ORDER BY created_at, student_id",
		promotionID)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, MapError(err)
		}
		ids = append(ids, id)
	}
	return ids, MapError(rows.Err())
}

func (s *PostgresPromotionStore) WithTx(tx *sql.Tx) store.PromotionStore {
	return &PostgresPromotionStore{db: tx, logger: s.logger}
}
