package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/avatar-vault/internal/apperror"
)

// inTx runs fn inside one transaction. The transaction commits only if fn
// returns nil; an error or a panic rolls it back. Errors that are not
// already domain errors come back as apperror.ErrUnavailable.
func (r *Repository) inTx(ctx context.Context, op string, fn func(ctx context.Context, tx *sql.Tx) error) (err error) {
	if r.opts.OpTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.OpTimeout)
		defer cancel()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return r.storageError(op, fmt.Errorf("begin: %w", err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				r.opts.Logger.Warn("rollback failed", "op", op, "error", rbErr)
			}
			err = r.storageError(op, err)
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = r.storageError(op, fmt.Errorf("commit: %w", cErr))
		}
	}()

	return fn(ctx, tx)
}

// storageError passes domain errors through untouched and turns everything
// else into an Unavailable error that keeps the driver error as its cause.
func (r *Repository) storageError(op string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	r.opts.Logger.Error("storage operation failed", "op", op, "engine", r.d.Name(), "error", err)
	return apperror.Unavailable(op, err)
}
