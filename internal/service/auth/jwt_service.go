package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mygeslike/api/internal/domain"
)

// Principal is the identity a token is issued for.
type Principal struct {
	UserID uuid.UUID
	Role   domain.Role
	// ScopeID is the student or teacher profile ID.
	ScopeID uuid.UUID
}

// PrincipalOf returns the principal of a user.
func PrincipalOf(u *domain.User) Principal {
	return Principal{UserID: u.ID, Role: u.Role, ScopeID: u.ProfileID}
}

// JWTService defines operations for managing JWT authentication tokens.
type JWTService interface {
	// GenerateToken creates a signed access token for p.
	GenerateToken(ctx context.Context, p Principal) (string, error)

	// ValidateToken validates an access token and extracts its claims.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)

	// GenerateRefreshToken creates a longer-lived token used only to obtain
	// a new token pair.
	GenerateRefreshToken(ctx context.Context, p Principal) (string, error)

	// ValidateRefreshToken validates a refresh token and extracts its claims.
	ValidateRefreshToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims is the validated content of a token.
type Claims struct {
	UserID    uuid.UUID
	Role      domain.Role
	ScopeID   uuid.UUID
	TokenType string
	IssuedAt  time.Time
	ExpiresAt time.Time
	ID        string
}

// Principal returns the identity the claims were issued for.
func (c *Claims) Principal() Principal {
	return Principal{UserID: c.UserID, Role: c.Role, ScopeID: c.ScopeID}
}
