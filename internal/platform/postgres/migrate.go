package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/mygeslike/api/internal/platform/logger"
)

// goose keeps its base FS, dialect and logger in package state.
var gooseMu sync.Mutex

// Migrate runs a goose command ("up", "down", "status", "version",
// "redo", ...) against the embedded migrations.
func Migrate(ctx context.Context, db *sql.DB, log *slog.Logger, command string, args ...string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(Migrations)
	goose.SetLogger(logger.GooseLogger{Logger: log.With("component", "migrations")})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.RunContext(ctx, command, db, MigrationsDir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// CreateMigration writes a new empty SQL migration named name into dir on
// disk. New files must live in the source tree to be embedded.
func CreateMigration(log *slog.Logger, dir, name string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(nil)
	goose.SetLogger(logger.GooseLogger{Logger: log.With("component", "migrations")})
	if err := goose.Create(nil, dir, name, "sql"); err != nil {
		return fmt.Errorf("failed to create migration %s: %w", name, err)
	}
	return nil
}
