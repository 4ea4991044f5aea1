package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/mygeslike/api/internal/platform/logger"
)

// TxFn is a function that executes within a database transaction. The
// transaction is committed if it returns nil and rolled back otherwise.
type TxFn func(ctx context.Context, tx *sql.Tx) error

// Beginner starts transactions. *sql.DB satisfies it.
type Beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// TxManager runs functions inside a transaction. Services depend on it
// rather than on *sql.DB so they can be tested without a database.
type TxManager interface {
	RunInTransaction(ctx context.Context, fn TxFn) error
}

// SQLTxManager is the TxManager backed by a database handle.
type SQLTxManager struct {
	DB Beginner
}

// RunInTransaction implements TxManager.
func (m SQLTxManager) RunInTransaction(ctx context.Context, fn TxFn) error {
	return RunInTransaction(ctx, m.DB, fn)
}

// TxFunc adapts a plain function to TxManager.
type TxFunc func(ctx context.Context, fn TxFn) error

// RunInTransaction implements TxManager.
func (f TxFunc) RunInTransaction(ctx context.Context, fn TxFn) error {
	return f(ctx, fn)
}

// RunInTransaction executes fn within a database transaction. A panic in fn
// rolls the transaction back and is re-raised.
func RunInTransaction(ctx context.Context, db Beginner, fn TxFn) (err error) {
	log := logger.FromContext(ctx)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", slog.String("error", err.Error()))
		return fmt.Errorf("%w: begin: %v", ErrTransactionFailed, err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error("failed to roll back transaction after panic",
					slog.String("error", rbErr.Error()),
					slog.Any("panic", p))
			} else {
				log.Error("rolled back transaction after panic", slog.Any("panic", p))
			}
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error("failed to roll back transaction",
				slog.String("rollback_error", rbErr.Error()),
				slog.String("original_error", err.Error()))
			return fmt.Errorf("error rolling back transaction: %v (original error: %w)", rbErr, err)
		}
		log.Debug("rolled back transaction due to error", slog.String("error", err.Error()))
		return err
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit transaction", slog.String("error", err.Error()))
		return fmt.Errorf("%w: commit: %v", ErrTransactionFailed, err)
	}
	return nil
}
