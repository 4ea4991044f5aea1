package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mygeslike/api/internal/domain"
	"github.com/mygeslike/api/internal/platform/logger"
	"github.com/mygeslike/api/internal/service/auth"
	"github.com/mygeslike/api/internal/store"
)

// UpdateUserInput carries the fields a user may change on their account.
// Nil fields are left untouched.
type UpdateUserInput struct {
	Email     *string
	FirstName *string
	LastName  *string
	Password  *string
}

// UserService provides account operations.
type UserService interface {
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// ListUsers returns every user, optionally restricted to a role.
	ListUsers(ctx context.Context, role *domain.Role) ([]domain.User, error)

	// UpdateUser changes the caller's own account.
	UpdateUser(ctx context.Context, actorID, id uuid.UUID, in UpdateUserInput) (*domain.User, error)

	// DeleteUser removes the caller's own account.
	DeleteUser(ctx context.Context, actorID, id uuid.UUID) error

	// CreateTeacher creates a teacher account from operator tooling.
	CreateTeacher(ctx context.Context, email, firstName, lastName, password string) (*domain.User, error)

	// ResetPassword sets a new password for the account with that email.
	ResetPassword(ctx context.Context, email, password string) error
}

// UserServiceImpl implements the UserService interface
type UserServiceImpl struct {
	users  store.UserStore
	tx     store.TxManager
	hasher auth.PasswordHasher
	logger *slog.Logger
}

// NewUserService creates a new UserService
func NewUserService(users store.UserStore, tx store.TxManager, hasher auth.PasswordHasher, logger *slog.Logger) UserService {
	return &UserServiceImpl{
		users:  users,
		tx:     tx,
		hasher: hasher,
		logger: logger.With("component", "user_service"),
	}
}

func (s *UserServiceImpl) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *UserServiceImpl) ListUsers(ctx context.Context, role *domain.Role) ([]domain.User, error) {
	if role != nil && !role.Valid() {
		return nil, domain.NewValidationError("role", "must be STUDENT or TEACHER", nil)
	}
	return s.users.List(ctx, role)
}

func (s *UserServiceImpl) UpdateUser(ctx context.Context, actorID, id uuid.UUID, in UpdateUserInput) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	if actorID != id {
		return nil, ErrNotOwned
	}

	var updated *domain.User
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		users := s.users.WithTx(tx)
		user, err := users.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if in.Email != nil {
			user.Email = domain.NormalizeEmail(*in.Email)
		}
		if in.FirstName != nil {
			user.FirstName = strings.TrimSpace(*in.FirstName)
		}
		if in.LastName != nil {
			user.LastName = strings.TrimSpace(*in.LastName)
		}
		if in.Password != nil {
			if err := s.setPassword(user, *in.Password); err != nil {
				return err
			}
		}
		if err := user.Validate(); err != nil {
			return err
		}

		user.UpdatedAt = time.Now().UTC()
		if err := users.Update(ctx, user); err != nil {
			return err
		}
		updated = user
		return nil
	})
	if err != nil {
		if !isExpected(err) {
			log.Error("failed to update user",
				slog.String("error", err.Error()),
				slog.String("user_id", id.String()))
			return nil, NewServiceError("user", "update", "failed to update user", err)
		}
		return nil, err
	}

	log.Info("user updated", slog.String("user_id", id.String()))
	return updated, nil
}

func (s *UserServiceImpl) DeleteUser(ctx context.Context, actorID, id uuid.UUID) error {
	if actorID != id {
		return ErrNotOwned
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	logger.FromContextOrDefault(ctx, s.logger).Info("user deleted", slog.String("user_id", id.String()))
	return nil
}

func (s *UserServiceImpl) CreateTeacher(ctx context.Context, email, firstName, lastName, password string) (*domain.User, error) {
	user, err := domain.NewUser(email, password, firstName, lastName, domain.RoleTeacher)
	if err != nil {
		return nil, err
	}
	if err := s.setPassword(user, password); err != nil {
		return nil, err
	}
	err = s.tx.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return s.users.WithTx(tx).Create(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	logger.FromContextOrDefault(ctx, s.logger).Info("teacher created", slog.String("user_id", user.ID.String()))
	return user, nil
}

func (s *UserServiceImpl) ResetPassword(ctx context.Context, email, password string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := s.setPassword(user, password); err != nil {
		return err
	}
	user.UpdatedAt = time.Now().UTC()
	return s.users.Update(ctx, user)
}

// setPassword checks the policy and replaces the plaintext with its hash.
func (s *UserServiceImpl) setPassword(user *domain.User, password string) error {
	switch {
	case len(password) < domain.MinPasswordLength:
		return domain.NewValidationError("password", "must be at least 8 characters long", nil)
	case len(password) > domain.MaxPasswordLength:
		return domain.NewValidationError("password", "must be at most 72 characters long", nil)
	}
	if err := auth.CheckPasswordSimilarity(password, user.Email, user.FirstName, user.LastName); err != nil {
		return domain.NewValidationError("password", err.Error(), err)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return NewServiceError("user", "hash_password", "failed to hash password", err)
	}
	user.Password = ""
	user.HashedPassword = hash
	return nil
}

// isExpected reports whether err is a sentinel the API maps to a client
// error, as opposed to an infrastructure failure.
func isExpected(err error) bool {
	return errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrForbidden) ||
		errors.Is(err, domain.ErrConflict) ||
		errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, store.ErrDuplicate) ||
		errors.Is(err, store.ErrInvalidEntity)
}
