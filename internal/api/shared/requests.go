package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/mygeslike/api/internal/domain"
)

// MaxJSONBodyBytes bounds JSON request bodies.
const MaxJSONBodyBytes = 1 << 20

// DecodeJSON decodes the request body into v. Malformed bodies come back as
// a domain validation error so handlers can pass them straight on.
func DecodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxJSONBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.NewValidationError("body", "is required", domain.ErrInvalidFormat)
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return domain.NewValidationError(typeErr.Field, fmt.Sprintf("must be a %s", typeErr.Type), domain.ErrInvalidFormat)
		}
		return domain.NewValidationError("body", "is not valid JSON", domain.ErrInvalidFormat)
	}
	return nil
}

// DecodeAndValidate decodes the body into v and validates the result.
func DecodeAndValidate(r *http.Request, v interface{}) error {
	if err := DecodeJSON(r, v); err != nil {
		return err
	}
	return ValidateRequest(v)
}
