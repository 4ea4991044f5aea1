package service

import (
	"fmt"

	"github.com/mygeslike/api/internal/domain"
	"github.com/mygeslike/api/internal/store"
)

// Common service errors. They wrap domain and store sentinels so the API
// layer can map them with errors.Is:
//   - ErrNotOwned and ErrNotGroupMember map to 403 Forbidden.
//   - ErrNoArchive maps to 404 Not Found.
var (
	// ErrNotOwned indicates a resource is owned by a different user than the
	// one making the request.
	ErrNotOwned = fmt.Errorf("%w: resource is owned by another user", domain.ErrForbidden)

	// ErrNotGroupMember indicates the caller does not belong to the project
	// group the resource hangs off.
	ErrNotGroupMember = fmt.Errorf("%w: not a member of this project group", domain.ErrForbidden)

	// ErrGroupsNotFree indicates a student tried to change group membership
	// in a promotion project whose groups are not self-organized.
	ErrGroupsNotFree = fmt.Errorf("%w: groups of this promotion project are not self-organized", domain.ErrForbidden)

	// ErrNoArchive indicates a deliverable has no uploaded archive.
	ErrNoArchive = fmt.Errorf("%w: deliverable has no archive", store.ErrNotFound)
)

// ServiceError wraps unexpected failures with the operation that hit them.
type ServiceError struct {
	Service   string
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s service %s failed: %s: %v", e.Service, e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s service %s failed: %s", e.Service, e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError.
func NewServiceError(service, operation, message string, err error) *ServiceError {
	return &ServiceError{
		Service:   service,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
