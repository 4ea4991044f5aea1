package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mygeslike/api/internal/domain"
	"github.com/mygeslike/api/internal/store"
)

// SQLSTATE codes the stores react to.
const (
	uniqueViolationCode     = "23505"
	foreignKeyViolationCode = "23503"
	checkViolationCode      = "23514"
	notNullViolationCode    = "23502"
)

// checkConstraints turns CHECK constraints the domain also enforces into
// field errors, for rows written without going through domain validation.
var checkConstraints = map[string]*domain.ValidationError{
	"promotions_period_check": domain.NewValidationError(
		"end_date", "must be after start_date", domain.ErrInvalidFormat),
	"promotion_projects_group_size_check": domain.NewValidationError(
		"max_per_group", "must be greater than or equal to min_per_group", domain.ErrInvalidFormat),
	"similarity_results_pair_order": domain.NewValidationError(
		"deliverable1_id", "must sort before deliverable2_id", domain.ErrInvalidID),
}

// MapError translates driver errors into store sentinels. Errors with no
// mapping are returned unchanged.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case uniqueViolationCode:
		return fmt.Errorf("%w: %s", store.ErrDuplicate, pgErr.ConstraintName)
	case foreignKeyViolationCode:
		return fmt.Errorf("%w: foreign key violation (%s)", store.ErrInvalidEntity, pgErr.ConstraintName)
	case checkViolationCode:
		if verr, ok := checkConstraints[pgErr.ConstraintName]; ok {
			return verr
		}
		return fmt.Errorf("%w: check constraint violation (%s)", store.ErrInvalidEntity, pgErr.ConstraintName)
	case notNullViolationCode:
		return fmt.Errorf("%w: not null violation (%s)", store.ErrInvalidEntity, pgErr.ColumnName)
	}
	return err
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// IsForeignKeyViolation reports whether err is a foreign key violation.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolationCode
}
