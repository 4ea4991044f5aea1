package shared

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mygeslike/api/internal/domain"
)

type sampleRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Age      int    `json:"age"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "valid json", body: `{"email":"a@b.co","password":"secret123","age":3}`},
		{name: "trailing comma", body: `{"email":"a@b.co",}`, wantErr: "body is not valid JSON"},
		{name: "empty body", body: ``, wantErr: "body is required"},
		{name: "wrong type", body: `{"age":"three"}`, wantErr: "age must be a int"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var got sampleRequest
			err := DecodeJSON(req, &got)
			if tc.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, 3, got.Age)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.EqualError(t, err, tc.wantErr)
		})
	}
}

func TestValidateRequestTranslates(t *testing.T) {
	err := ValidateRequest(&sampleRequest{Email: "nope", Password: "short"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "email must be a valid email address")
	assert.Contains(t, err.Error(), "password must be at least 8 characters in length")

	assert.NoError(t, ValidateRequest(&sampleRequest{Email: "a@b.co", Password: "long enough"}))
}

type selfValidating struct{ ok bool }

func (s selfValidating) Validate() error {
	if !s.ok {
		return domain.Invalid("not ok")
	}
	return nil
}

func TestValidateRequestUsesOwnValidate(t *testing.T) {
	assert.NoError(t, ValidateRequest(selfValidating{ok: true}))
	assert.EqualError(t, ValidateRequest(selfValidating{}), "not ok")
}

func TestDecodeAndValidate(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.co"}`))
	var got sampleRequest
	err := DecodeAndValidate(req, &got)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password is a required field")
}
