package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/dataset-forge/internal/platform/logger"
)

// TxFn runs the statements of one write against tx.
type TxFn func(ctx context.Context, tx DBTX) error

// RunInTransaction runs fn atomically. When db can begin transactions a new
// one is opened, committed if fn returns nil and rolled back otherwise,
// including when fn panics. Any other DBTX, usually a *sql.Tx owned by the
// caller, is passed to fn as is and the owner decides the outcome.
//
// op names the write in logs and errors, e.g. "chunks.create_many".
func RunInTransaction(ctx context.Context, db DBTX, op string, fn TxFn) error {
	pool, ok := db.(TxBeginner)
	if !ok {
		return fn(ctx, db)
	}

	log := logger.FromContext(ctx).With(slog.String("tx_op", op))

	tx, err := pool.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", slog.String("error", err.Error()))
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	defer func() {
		p := recover()
		if p == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error("failed to roll back transaction after panic",
				slog.String("error", rbErr.Error()),
				slog.Any("panic", p))
		} else {
			log.Error("rolled back transaction after panic", slog.Any("panic", p))
		}
		// ALLOW-PANIC: Propagating caught panic from transaction
		panic(p)
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error("failed to roll back transaction",
				slog.String("rollback_error", rbErr.Error()),
				slog.String("original_error", err.Error()))
			return fmt.Errorf("%s: error rolling back transaction: %v (original error: %w)", op, rbErr, err)
		}
		log.Debug("rolled back transaction", slog.String("error", err.Error()))
		return err
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit transaction", slog.String("error", err.Error()))
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}
	log.Debug("transaction committed")
	return nil
}
