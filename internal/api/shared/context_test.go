package shared

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mygeslike/api/internal/domain"
	"github.com/mygeslike/api/internal/service/auth"
)

func TestSetAndGetTraceID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))

	traced := SetTraceID(ctx)
	traceID := GetTraceID(traced)
	assert.Len(t, traceID, 32)
	_, err := hex.DecodeString(traceID)
	assert.NoError(t, err)

	assert.Empty(t, GetTraceID(ctx), "parent context must stay untouched")
}

func TestGetTraceIDWithInvalidContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), TraceIDKey, 123)
	assert.Empty(t, GetTraceID(ctx))
}

func TestGenerateTraceIDUnique(t *testing.T) {
	const iterations = 1000
	seen := make(map[string]bool, iterations)
	for i := 0; i < iterations; i++ {
		id := generateTraceID()
		require.Len(t, id, 32)
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestFallbackTraceID(t *testing.T) {
	id := generateFallbackTraceID()
	assert.Len(t, id, 32)
	_, err := hex.DecodeString(id)
	assert.NoError(t, err)
}

func TestPrincipalRoundTrip(t *testing.T) {
	_, ok := PrincipalFrom(context.Background())
	assert.False(t, ok)

	p := auth.Principal{UserID: uuid.New(), Role: domain.RoleStudent, ScopeID: uuid.New()}
	got, ok := PrincipalFrom(WithPrincipal(context.Background(), p))
	require.True(t, ok)
	assert.Equal(t, p, got)
}
