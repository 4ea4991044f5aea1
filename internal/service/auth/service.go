package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mygeslike/api/internal/domain"
	"github.com/mygeslike/api/internal/store"
)

// TokenPair is returned on register, login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RegisterInput is a self-registration request.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      domain.Role
}

// Service registers and authenticates users.
type Service interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, *TokenPair, error)
	// Login returns ErrInvalidCredentials for unknown emails and wrong
	// passwords alike.
	Login(ctx context.Context, email, password string) (*domain.User, *TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	// Me returns the user a token was issued for.
	Me(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

type service struct {
	users  store.UserStore
	tx     store.TxManager
	jwt    JWTService
	hasher PasswordHasher
	logger *slog.Logger
}

// NewService creates the authentication service.
func NewService(users store.UserStore, tx store.TxManager, jwt JWTService, hasher PasswordHasher, logger *slog.Logger) Service {
	return &service{
		users:  users,
		tx:     tx,
		jwt:    jwt,
		hasher: hasher,
		logger: logger.With("component", "auth_service"),
	}
}

func (s *service) Register(ctx context.Context, in RegisterInput) (*domain.User, *TokenPair, error) {
	user, err := domain.NewUser(in.Email, in.Password, in.FirstName, in.LastName, in.Role)
	if err != nil {
		return nil, nil, err
	}
	if err := CheckPasswordSimilarity(in.Password, user.Email, user.FirstName, user.LastName); err != nil {
		return nil, nil, domain.NewValidationError("password", err.Error(), ErrPasswordTooSimilar)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		s.logger.Error("failed to hash password", "error", err)
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = ""
	user.HashedPassword = hash

	err = s.tx.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return s.users.WithTx(tx).Create(ctx, user)
	})
	if err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			s.logger.Debug("registration with existing email", "email", user.Email)
		} else {
			s.logger.Error("failed to register user", "error", err, "email", user.Email)
		}
		return nil, nil, err
	}

	pair, err := s.issue(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("user registered",
		"user_id", user.ID,
		"role", user.Role)
	return user, pair, nil
}

func (s *service) Login(ctx context.Context, email, password string) (*domain.User, *TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("failed to load user: %w", err)
	}
	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		s.logger.Debug("login with wrong password", "user_id", user.ID)
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.issue(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.jwt.ValidateRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	// Roles and profiles are re-read so a deleted account cannot refresh.
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return s.issue(ctx, user)
}

func (s *service) Me(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *service) issue(ctx context.Context, user *domain.User) (*TokenPair, error) {
	p := PrincipalOf(user)
	access, err := s.jwt.GenerateToken(ctx, p)
	if err != nil {
		return nil, err
	}
	refresh, err := s.jwt.GenerateRefreshToken(ctx, p)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
