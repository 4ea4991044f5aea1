package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation or a
	// database constraint. Check the wrapped error for details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrUpdateFailed is returned when an update operation fails.
	ErrUpdateFailed = errors.New("update failed")

	// ErrDeleteFailed is returned when a delete operation fails.
	ErrDeleteFailed = errors.New("delete failed")

	// ErrTransactionFailed is returned when a database transaction fails
	// to commit.
	ErrTransactionFailed = errors.New("transaction failed")

	ErrUserNotFound             = fmt.Errorf("%w: user", ErrNotFound)
	ErrPromotionNotFound        = fmt.Errorf("%w: promotion", ErrNotFound)
	ErrProjectNotFound          = fmt.Errorf("%w: project", ErrNotFound)
	ErrPromotionProjectNotFound = fmt.Errorf("%w: promotion project", ErrNotFound)
	ErrProjectGroupNotFound     = fmt.Errorf("%w: project group", ErrNotFound)
	ErrDeliverableNotFound      = fmt.Errorf("%w: deliverable", ErrNotFound)
	ErrRuleNotFound             = fmt.Errorf("%w: deliverable rule", ErrNotFound)
	ErrReportSectionNotFound    = fmt.Errorf("%w: report section", ErrNotFound)
	ErrReportNotFound           = fmt.Errorf("%w: report", ErrNotFound)
	ErrAnalysisNotFound         = fmt.Errorf("%w: similarity analysis", ErrNotFound)

	ErrEmailExists         = fmt.Errorf("%w: email", ErrDuplicate)
	ErrPromotionNameTaken  = fmt.Errorf("%w: promotion name", ErrDuplicate)
	ErrStudentHasGroup     = fmt.Errorf("%w: student already has a group", ErrDuplicate)
	ErrRuleAlreadyAssigned = fmt.Errorf("%w: rule already assigned", ErrDuplicate)
)

// IsNotFoundError reports whether err is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError reports whether err is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "user", "deliverable")
	Operation string // The operation that failed (e.g., "create", "update")
	Message   string
	Err       error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation on %s failed: %s: %v", e.Operation, e.Entity, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{Entity: entity, Operation: operation, Message: message, Err: err}
}
