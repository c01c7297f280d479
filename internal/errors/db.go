package errors

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// MapDBError maps database errors to AppError instances.
// It handles the error patterns the device state store can hit:
// - sql.ErrNoRows → NotFound
// - Missing schema (undefined table) → Internal with a migration hint
// - Connection failures → Internal
// - Context timeouts/cancellations → Timeout/Canceled
//
// If the error is not a recognized database error, it returns the original error.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, ErrCodeTimeout, "storage request timed out")
	}
	if errors.Is(err, context.Canceled) {
		return Wrap(err, ErrCodeCanceled, "storage request was canceled")
	}
	if errors.Is(err, sql.ErrNoRows) {
		return Wrap(err, ErrCodeNotFound, "state not found")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgError(pgErr)
	}

	return err
}

func mapPgError(pgErr *pgconn.PgError) error {
	switch {
	case pgErr.Code == pgerrcode.UndefinedTable:
		return Wrap(pgErr, ErrCodeInternal, "device state schema missing; run migrations")
	case pgErr.Code == pgerrcode.QueryCanceled:
		return Wrap(pgErr, ErrCodeTimeout, "storage query canceled")
	case pgerrcode.IsConnectionException(pgErr.Code):
		return Wrap(pgErr, ErrCodeInternal, "storage connection failed")
	case pgerrcode.IsDataException(pgErr.Code):
		return Wrap(pgErr, ErrCodeValidation, "invalid state value")
	default:
		return Wrap(pgErr, ErrCodeInternal, "storage error")
	}
}
