package store

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS rtc_sessions (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		channel TEXT NOT NULL,
		state TEXT NOT NULL,
		resource_id TEXT NOT NULL DEFAULT '',
		job_id TEXT NOT NULL DEFAULT '',
		stop_reason TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rtc_sessions_channel ON rtc_sessions (channel, kind, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS rtc_session_transitions (
		id BIGSERIAL PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES rtc_sessions(id) ON DELETE CASCADE,
		from_state TEXT NOT NULL,
		to_state TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rtc_session_transitions_session ON rtc_session_transitions (session_id, id)`,
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// RunMigration creates the journal tables if they do not exist.
func RunMigration(ctx context.Context, db execer) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
