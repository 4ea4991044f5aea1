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

// PostgresUserStore implements store.UserStore. Profiles live in the
// students and teachers tables and are resolved with a join.
type PostgresUserStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresUserStore creates a user store over db.
func NewPostgresUserStore(db store.DBTX, logger *slog.Logger) *PostgresUserStore {
	mustDB(db)
	return &PostgresUserStore{db: db, logger: componentLogger(logger, "user_store")}
}

var _ store.UserStore = (*PostgresUserStore)(nil)

const userSelect = `
	SELECT u.id, u.email, u.first_name, u.last_name, u.role, u.hashed_password,
	       COALESCE(s.id, t.id), u.created_at, u.updated_at
	FROM users u
	LEFT JOIN students s ON s.user_id = u.id
	LEFT JOIN teachers t ON t.user_id = u.id
`

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	var profileID uuid.NullUUID
	if err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Role, &u.HashedPassword,
		&profileID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.ProfileID = profileID.UUID
	return &u, nil
}

// Create inserts the user and its profile. Callers wrap it in a
// transaction so both rows land together.
func (s *PostgresUserStore) Create(ctx context.Context, user *domain.User) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if user.HashedPassword == "" {
		return domain.NewValidationError("password", "must be hashed before storage", nil)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, first_name, last_name, role, hashed_password, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		user.ID, user.Email, user.FirstName, user.LastName, user.Role, user.HashedPassword,
		user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Debug("email already exists", slog.String("user_id", user.ID.String()))
			return store.ErrEmailExists
		}
		log.Error("failed to create user", slog.String("error", err.Error()))
		return MapError(err)
	}

	profileTable := "students"
	if user.Role == domain.RoleTeacher {
		profileTable = "teachers"
	}
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO "+profileTable+" (id, user_id, created_at) VALUES ($1, $2, $3)",
		user.ProfileID, user.ID, user.CreatedAt); err != nil {
		log.Error("failed to create profile",
			slog.String("error", err.Error()),
			slog.String("user_id", user.ID.String()))
		return MapError(err)
	}

	log.Info("user created",
		slog.String("user_id", user.ID.String()),
		slog.String("role", string(user.Role)))
	return nil
}

func (s *PostgresUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, userSelect+" WHERE u.id = $1", id))
	if err != nil {
		return nil, notFound(err, store.ErrUserNotFound)
	}
	return u, nil
}

func (s *PostgresUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, userSelect+" WHERE u.email = $1", domain.NormalizeEmail(email)))
	if err != nil {
		return nil, notFound(err, store.ErrUserNotFound)
	}
	return u, nil
}

func (s *PostgresUserStore) GetByProfileID(ctx context.Context, profileID uuid.UUID) (*domain.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, userSelect+" WHERE s.id = $1 OR t.id = $1", profileID))
	if err != nil {
		return nil, notFound(err, store.ErrUserNotFound)
	}
	return u, nil
}

func (s *PostgresUserStore) List(ctx context.Context, role *domain.Role) ([]domain.User, error) {
	query := userSelect + " WHERE ($1::text IS NULL OR u.role = $1) ORDER BY u.email"
	var roleArg any
	if role != nil {
		roleArg = string(*role)
	}
	rows, err := s.db.QueryContext(ctx, query, roleArg)
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

func (s *PostgresUserStore) Update(ctx context.Context, user *domain.User) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET email = $1, first_name = $2, last_name = $3,
		    hashed_password = COALESCE(NULLIF($4, ''), hashed_password), updated_at = $5
		WHERE id = $6`,
		user.Email, user.FirstName, user.LastName, user.HashedPassword, user.UpdatedAt, user.ID)
	if err != nil {
		if IsUniqueViolation(err) {
			return store.ErrEmailExists
		}
		log.Error("failed to update user", slog.String("error", err.Error()))
		return MapError(err)
	}
	return expectRows(res, store.ErrUserNotFound)
}

func (s *PostgresUserStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return MapError(err)
	}
	return expectRows(res, store.ErrUserNotFound)
}

// WithTx returns a store bound to tx.
func (s *PostgresUserStore) WithTx(tx *sql.Tx) store.UserStore {
	return &PostgresUserStore{db: tx, logger: s.logger}
}
