package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mygeslike/api/internal/config"
	"github.com/mygeslike/api/internal/domain"
)

const testSecret = "test-secret-that-is-long-enough-for-testing"

func testAuthConfig(secret string) config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:                   secret,
		TokenLifetimeMinutes:        60,
		RefreshTokenLifetimeMinutes: 1440,
		BCryptCost:                  4,
	}
}

func newTestJWT(t *testing.T, secret string, now func() time.Time) *hmacJWTService {
	t.Helper()
	svc, err := newHMACJWTService(testAuthConfig(secret), now)
	require.NoError(t, err)
	return svc
}

func testPrincipal() Principal {
	return Principal{UserID: uuid.New(), Role: domain.RoleTeacher, ScopeID: uuid.New()}
}

func TestNewJWTService_RejectsShortSecret(t *testing.T) {
	_, err := NewJWTService(testAuthConfig("short"))
	assert.Error(t, err)
}

func TestGenerateAndValidateToken(t *testing.T) {
	fixed := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestJWT(t, testSecret, func() time.Time { return fixed })
	p := testPrincipal()

	token, err := svc.GenerateToken(context.Background(), p)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, p, claims.Principal())
	assert.Equal(t, "access", claims.TokenType)
	assert.Equal(t, fixed.Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, fixed.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
	assert.NotEmpty(t, claims.ID)
}

func TestValidateToken_Errors(t *testing.T) {
	fixed := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	p := testPrincipal()

	tests := []struct {
		name    string
		token   func(t *testing.T) string
		now     time.Time
		wantErr error
	}{
		{
			name: "expired",
			token: func(t *testing.T) string {
				tok, err := newTestJWT(t, testSecret, func() time.Time { return fixed }).GenerateToken(context.Background(), p)
				require.NoError(t, err)
				return tok
			},
			now:     fixed.Add(2 * time.Hour),
			wantErr: ErrExpiredToken,
		},
		{
			name: "wrong secret",
			token: func(t *testing.T) string {
				tok, err := newTestJWT(t, "another-secret-that-is-long-enough-xx", func() time.Time { return fixed }).GenerateToken(context.Background(), p)
				require.NoError(t, err)
				return tok
			},
			now:     fixed,
			wantErr: ErrInvalidToken,
		},
		{
			name: "refresh token used as access token",
			token: func(t *testing.T) string {
				tok, err := newTestJWT(t, testSecret, func() time.Time { return fixed }).GenerateRefreshToken(context.Background(), p)
				require.NoError(t, err)
				return tok
			},
			now:     fixed,
			wantErr: ErrWrongTokenType,
		},
		{
			name:    "malformed",
			token:   func(t *testing.T) string { return "not.a.token" },
			now:     fixed,
			wantErr: ErrInvalidToken,
		},
		{
			name: "missing role",
			token: func(t *testing.T) string {
				claims := jwtCustomClaims{
					ScopeID:   p.ScopeID,
					TokenType: tokenTypeAccess,
					RegisteredClaims: jwt.RegisteredClaims{
						Subject:   p.UserID.String(),
						ExpiresAt: jwt.NewNumericDate(fixed.Add(time.Hour)),
					},
				}
				tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
				require.NoError(t, err)
				return tok
			},
			now:     fixed,
			wantErr: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := tt.token(t)
			svc := newTestJWT(t, testSecret, func() time.Time { return tt.now })
			_, err := svc.ValidateToken(context.Background(), token)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateRefreshToken(t *testing.T) {
	fixed := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestJWT(t, testSecret, func() time.Time { return fixed })
	p := testPrincipal()

	refresh, err := svc.GenerateRefreshToken(context.Background(), p)
	require.NoError(t, err)
	claims, err := svc.ValidateRefreshToken(context.Background(), refresh)
	require.NoError(t, err)
	assert.Equal(t, "refresh", claims.TokenType)
	assert.Equal(t, fixed.Add(24*time.Hour).Unix(), claims.ExpiresAt.Unix())

	access, err := svc.GenerateToken(context.Background(), p)
	require.NoError(t, err)
	_, err = svc.ValidateRefreshToken(context.Background(), access)
	assert.ErrorIs(t, err, ErrWrongTokenType)

	later := newTestJWT(t, testSecret, func() time.Time { return fixed.Add(48 * time.Hour) })
	_, err = later.ValidateRefreshToken(context.Background(), refresh)
	assert.ErrorIs(t, err, ErrExpiredRefreshToken)

	_, err = svc.ValidateRefreshToken(context.Background(), "garbage")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}
