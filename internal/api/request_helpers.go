package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mygeslike/api/internal/api/shared"
	"github.com/mygeslike/api/internal/domain"
	"github.com/mygeslike/api/internal/service"
	"github.com/mygeslike/api/internal/service/auth"
)

// multipartMemory is the part of a multipart body kept in memory; the rest
// spills to temp files.
const multipartMemory = 8 << 20

// principalOf returns the authenticated caller. Routes behind Authenticate
// always have one; a missing principal writes a 401.
func principalOf(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := shared.PrincipalFrom(r.Context())
	if !ok || p.UserID == uuid.Nil {
		HandleAPIError(w, r, domain.ErrUnauthorized, "")
		return auth.Principal{}, false
	}
	return p, true
}

// getPathUUID extracts and parses a UUID path parameter.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	raw := chi.URLParam(r, paramName)
	if raw == "" {
		return uuid.Nil, domain.NewValidationError(paramName, "is required", nil)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(paramName, "has invalid format", domain.ErrInvalidID)
	}
	return id, nil
}

// pathUUID is getPathUUID writing the error response itself.
func pathUUID(w http.ResponseWriter, r *http.Request, paramName string) (uuid.UUID, bool) {
	id, err := getPathUUID(r, paramName)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return uuid.Nil, false
	}
	return id, true
}

// decode reads and validates a JSON body, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := shared.DecodeAndValidate(r, v); err != nil {
		HandleAPIError(w, r, err, "")
		return false
	}
	return true
}

// parseMultipart parses a multipart form no larger than limit plus some
// room for the other fields.
func parseMultipart(w http.ResponseWriter, r *http.Request, limit int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.NewValidationError("file", "is too large", nil)
		}
		return domain.NewValidationError("body", "must be a multipart form", domain.ErrInvalidFormat)
	}
	return nil
}

// formUpload returns the named file of a parsed multipart form, or nil
// when the field is absent. The caller closes the returned closer.
func formUpload(r *http.Request, field string) (*service.Upload, func(), error) {
	f, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, domain.NewValidationError(field, "could not be read", domain.ErrInvalidFormat)
	}
	up := &service.Upload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        f,
	}
	return up, func() { _ = f.Close() }, nil
}

// formString returns a trimmed form value and whether it was sent at all.
func formString(r *http.Request, key string) (string, bool) {
	vals, ok := r.MultipartForm.Value[key]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return strings.TrimSpace(vals[0]), true
}
