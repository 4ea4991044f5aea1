package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/mygeslike/api/internal/domain"
)

// UserStore defines the interface for user data persistence. A user and
// its student or teacher profile are written together.
type UserStore interface {
	// Create saves a new user and its profile row. Returns ErrEmailExists
	// if the email is already taken.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID. Returns ErrUserNotFound if missing.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByEmail retrieves a user by email, case-insensitively.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// GetByProfileID retrieves the user owning a student or teacher profile.
	GetByProfileID(ctx context.Context, profileID uuid.UUID) (*domain.User, error)

	// List returns users ordered by email, optionally filtered by role.
	List(ctx context.Context, role *domain.Role) ([]domain.User, error)

	// Update modifies names, email and, when HashedPassword is set, the
	// password hash.
	Update(ctx context.Context, user *domain.User) error

	// Delete removes a user and, by cascade, its profile.
	Delete(ctx context.Context, id uuid.UUID) error

	WithTx(tx *sql.Tx) UserStore
}
