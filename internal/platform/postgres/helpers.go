package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mygeslike/api/internal/store"
)

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// componentLogger scopes a logger to a store, falling back to the default.
func componentLogger(l *slog.Logger, component string) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return l.With(slog.String("component", component))
}

func mustDB(db store.DBTX) {
	if db == nil {
		panic("db cannot be nil")
	}
}

// notFound converts sql.ErrNoRows into the entity-specific error and maps
// everything else.
func notFound(err error, entityErr error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return entityErr
	}
	return MapError(err)
}

// expectRows turns a zero-row UPDATE or DELETE into entityErr.
func expectRows(res sql.Result, entityErr error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return entityErr
	}
	return nil
}

// jsonArg passes raw JSON to a jsonb column, mapping empty input to NULL.
func jsonArg(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
