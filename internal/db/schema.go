package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the tables the service needs if they are not
// there yet. Idempotent, safe to run on every boot.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id                   TEXT PRIMARY KEY,
			email                TEXT NOT NULL,
			password_hash        TEXT NOT NULL,
			first_name           TEXT NOT NULL DEFAULT '',
			last_name            TEXT NOT NULL DEFAULT '',
			role                 TEXT NOT NULL DEFAULT 'user',
			is_active            BOOLEAN NOT NULL DEFAULT TRUE,
			refresh_token        TEXT,
			refresh_token_expiry TIMESTAMPTZ,
			phone_number         TEXT,
			profile_picture      TEXT,
			department           TEXT,
			student_id           TEXT,
			created_at           TIMESTAMPTZ NOT NULL,
			updated_at           TIMESTAMPTZ,
			last_login           TIMESTAMPTZ
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (LOWER(email))`,
		`CREATE TABLE IF NOT EXISTS jobs (
			id           TEXT PRIMARY KEY,
			type         TEXT NOT NULL,
			payload      JSONB NOT NULL,
			status       TEXT NOT NULL,
			attempts     INT NOT NULL DEFAULT 0,
			max_attempts INT NOT NULL DEFAULT 5,
			run_at       TIMESTAMPTZ NOT NULL,
			locked_at    TIMESTAMPTZ,
			locked_by    TEXT,
			last_error   TEXT,
			created_at   TIMESTAMPTZ NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS jobs_claim_idx ON jobs (status, run_at)`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}
