package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate applies the portal schema. Statements are idempotent and run in
// order inside a single transaction.
func (cp *ConnectionPool) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			display_name  TEXT NOT NULL,
			role          TEXT NOT NULL CHECK (role IN ('admin', 'member', 'child')),
			password_hash TEXT NOT NULL,
			disabled      INTEGER NOT NULL DEFAULT 0,
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id            TEXT PRIMARY KEY,
			title         TEXT NOT NULL,
			description   TEXT NOT NULL DEFAULT '',
			location      TEXT NOT NULL DEFAULT '',
			category      TEXT NOT NULL,
			color         TEXT NOT NULL DEFAULT '',
			image_url     TEXT NOT NULL DEFAULT '',
			start_at      TEXT NOT NULL,
			end_at        TEXT,
			all_day       INTEGER NOT NULL DEFAULT 0,
			recurrence    TEXT,
			created_by_id TEXT NOT NULL REFERENCES users(id),
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS event_hidden_from (
			event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
			user_id  TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			PRIMARY KEY (event_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS rsvps (
			event_id   TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			status     TEXT NOT NULL CHECK (status IN ('attending', 'maybe', 'not_attending')),
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (event_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			token      TEXT NOT NULL UNIQUE,
			expires_at TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			revoked_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_start_at ON events(start_at)`,
		`CREATE INDEX IF NOT EXISTS idx_events_category ON events(category)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at)`,
	}

	return cp.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, statement := range statements {
			if _, err := tx.ExecContext(ctx, statement); err != nil {
				return fmt.Errorf("migration statement failed: %w", err)
			}
		}
		return nil
	})
}
