// Package store is the Postgres-backed repository for every LocalFix table.
// Methods translate driver errors into apperr kinds; the job insert path is
// the exception and returns normalized store errors for the retry ladder.
package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sudo-init-do/localfix/internal/apperr"
	"github.com/sudo-init-do/localfix/internal/db"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Ping is used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// wrap maps a driver error for a read or write of `what`.
func wrap(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("%s not found", what)
	}
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("%s already exists", what)
	}
	if db.IsInvalidText(err) {
		return apperr.Validation("invalid id for %s", what)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.Transport(err, "request cancelled while reading %s", what)
	}
	return apperr.Transport(db.Normalize(err), "store error on %s", what)
}

// ensureAffected turns a zero-row conditional update into a conflict.
func ensureAffected(tag pgconn.CommandTag, format string, args ...any) error {
	if tag.RowsAffected() == 0 {
		return apperr.Conflict(format, args...)
	}
	return nil
}
