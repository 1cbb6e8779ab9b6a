// Package postgres implements the stores on pgx. Fixed statements are plain
// SQL; filters that vary per call are built with goqu.
package postgres

import (
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/sudo-init-do/servicehub/internal/alerts"
	"github.com/sudo-init-do/servicehub/internal/jobs"
	"github.com/sudo-init-do/servicehub/internal/lifecycle"
	"github.com/sudo-init-do/servicehub/internal/user"
	"github.com/sudo-init-do/servicehub/internal/workers"
)

const uniqueViolation = "23505"

var dialect = goqu.Dialect("postgres")

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var (
	_ lifecycle.Store = (*Store)(nil)
	_ workers.Store   = (*Store)(nil)
	_ jobs.Store      = (*Store)(nil)
	_ user.Store      = (*Store)(nil)
	_ alerts.Store    = (*Store)(nil)
)

// mapNoRows turns pgx.ErrNoRows into lifecycle.ErrNotFound.
func mapNoRows(err error, kind, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errors.Wrapf(lifecycle.ErrNotFound, "%s %s", kind, id)
	}
	return errors.Wrapf(err, "load %s %s", kind, id)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
