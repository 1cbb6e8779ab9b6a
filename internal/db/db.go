package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Connect opens a pgx pool and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "unable to connect to database")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "unable to ping database")
	}
	log.Info().Msg("connected to Postgres successfully")
	return pool, nil
}

// EnsureSchema creates or upgrades every table the stores use. Each step is
// idempotent so it runs on every boot.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	steps := []struct {
		name string
		fn   func(context.Context, *pgxpool.Pool) error
	}{
		{"users", ensureUsersTable},
		{"users.is_blocked", ensureIsBlockedColumn},
		{"worker_profiles", ensureWorkerProfilesTable},
		{"service_requests", ensureServiceRequestsTable},
		{"reviews", ensureReviewsTable},
		{"job_posts", ensureJobsTables},
		{"notifications", ensureNotificationsTable},
	}
	for _, step := range steps {
		if err := step.fn(ctx, pool); err != nil {
			return errors.Wrapf(err, "ensure %s", step.name)
		}
		log.Debug().Str("step", step.name).Msg("schema ensured")
	}
	return nil
}

func ensureUsersTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL DEFAULT '',
			email      TEXT NOT NULL DEFAULT '',
			role       TEXT NOT NULL CHECK (role IN ('CUSTOMER','WORKER','BUSINESS','ADMIN')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	return err
}

// ensureIsBlockedColumn adds users.is_blocked if missing
func ensureIsBlockedColumn(ctx context.Context, pool *pgxpool.Pool) error {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_schema = 'public' AND table_name = 'users' AND column_name = 'is_blocked'
		)`).Scan(&exists)
	if err != nil {
		return errors.Wrap(err, "schema check failed")
	}
	if exists {
		return nil
	}
	if _, err := pool.Exec(ctx, `ALTER TABLE users ADD COLUMN IF NOT EXISTS is_blocked BOOLEAN NOT NULL DEFAULT FALSE`); err != nil {
		return errors.Wrap(err, "add is_blocked column")
	}
	log.Info().Msg("users.is_blocked column ensured")
	return nil
}

func ensureWorkerProfilesTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS worker_profiles (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL UNIQUE REFERENCES users(id),
			display_name  TEXT NOT NULL,
			category      TEXT NOT NULL,
			skills        TEXT[] NOT NULL DEFAULT '{}',
			description   TEXT NOT NULL DEFAULT '',
			charge_type   TEXT NOT NULL,
			price         DOUBLE PRECISION NOT NULL,
			service_area  TEXT NOT NULL DEFAULT '',
			availability  TEXT NOT NULL DEFAULT 'available',
			languages     TEXT[] NOT NULL DEFAULT '{}',
			listing_type  TEXT NOT NULL DEFAULT 'on-demand',
			verified      BOOLEAN NOT NULL DEFAULT FALSE,
			pro_worker    BOOLEAN NOT NULL DEFAULT FALSE,
			rating        DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_reviews INTEGER NOT NULL DEFAULT 0,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	return err
}

func ensureServiceRequestsTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS service_requests (
			id           TEXT PRIMARY KEY,
			customer_id  TEXT NOT NULL REFERENCES users(id),
			worker_id    TEXT NOT NULL REFERENCES users(id),
			listing_type TEXT NOT NULL,
			price        DOUBLE PRECISION NOT NULL CHECK (price > 0),
			duration     TEXT NOT NULL DEFAULT '',
			scheduled_at TIMESTAMPTZ,
			address      JSONB,
			message      TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL CHECK (status IN ('pending','accepted','in_progress','completed','cancelled')),
			is_paid      BOOLEAN NOT NULL DEFAULT FALSE,
			payment_ref  TEXT NOT NULL DEFAULT '',
			created_at   TIMESTAMPTZ NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS idx_service_requests_customer ON service_requests (customer_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_service_requests_worker ON service_requests (worker_id, created_at DESC)`)
	return err
}

// ensureReviewsTable carries the one-review-per-request constraint.
func ensureReviewsTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS reviews (
			id                TEXT PRIMARY KEY,
			request_id        TEXT NOT NULL UNIQUE REFERENCES service_requests(id),
			customer_id       TEXT NOT NULL,
			worker_id         TEXT NOT NULL,
			worker_profile_id TEXT NOT NULL REFERENCES worker_profiles(id),
			rating            INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
			comment           TEXT NOT NULL DEFAULT '',
			created_at        TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_reviews_profile ON reviews (worker_profile_id, created_at DESC)`)
	return err
}

func ensureJobsTables(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS job_posts (
			id           TEXT PRIMARY KEY,
			employer_id  TEXT NOT NULL REFERENCES users(id),
			title        TEXT NOT NULL,
			description  TEXT NOT NULL,
			category     TEXT NOT NULL,
			salary       DOUBLE PRECISION NOT NULL,
			salary_type  TEXT NOT NULL DEFAULT 'monthly',
			location     TEXT NOT NULL,
			requirements TEXT[] NOT NULL DEFAULT '{}',
			status       TEXT NOT NULL DEFAULT 'open',
			created_at   TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS job_applicants (
			job_id     TEXT NOT NULL REFERENCES job_posts(id),
			user_id    TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (job_id, user_id)
		)`)
	return err
}

// ensureNotificationsTable creates the in-app notification inbox
func ensureNotificationsTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS notifications (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			type       TEXT NOT NULL,
			title      TEXT NOT NULL,
			body       TEXT NOT NULL,
			reference  TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			read_at    TIMESTAMPTZ
		)`)
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications (user_id, created_at DESC)`)
	return err
}
