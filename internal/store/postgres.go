package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const databaseInitTimeout = 15 * time.Second

// PostgresJournal writes transitions to PostgreSQL.
type PostgresJournal struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects, pings and migrates.
func OpenPostgres(ctx context.Context, url string) (*PostgresJournal, error) {
	ctx, cancel := context.WithTimeout(ctx, databaseInitTimeout)
	defer cancel()

	p, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := RunMigration(ctx, p); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to run migration: %w", err)
	}
	return &PostgresJournal{pool: p}, nil
}

// WriteTransition upserts the session row and appends the transition.
func (r *PostgresJournal) WriteTransition(ctx context.Context, t Transition) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO rtc_sessions (id, kind, channel, state, resource_id, job_id, stop_reason, error, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
			 ON CONFLICT (id) DO UPDATE SET
			   state = EXCLUDED.state,
			   resource_id = EXCLUDED.resource_id,
			   job_id = EXCLUDED.job_id,
			   stop_reason = EXCLUDED.stop_reason,
			   error = EXCLUDED.error,
			   updated_at = EXCLUDED.updated_at`,
			t.SessionID, t.Kind, t.Channel, t.To, t.ResourceID, t.JobID, t.Reason, t.Error, t.At); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO rtc_session_transitions (session_id, from_state, to_state, reason, error, at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			t.SessionID, t.From, t.To, t.Reason, t.Error, t.At)
		return err
	})
}

// History returns the latest transitions on a channel, newest first.
func (r *PostgresJournal) History(ctx context.Context, channel string, limit int) ([]Transition, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.kind, s.channel, t.from_state, t.to_state, s.resource_id, s.job_id, t.reason, t.error, t.at
		 FROM rtc_session_transitions t
		 JOIN rtc_sessions s ON s.id = t.session_id
		 WHERE s.channel = $1
		 ORDER BY t.id DESC
		 LIMIT $2`,
		channel, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Transition
	for rows.Next() {
		var t Transition
		if err := rows.Scan(&t.SessionID, &t.Kind, &t.Channel, &t.From, &t.To, &t.ResourceID, &t.JobID, &t.Reason, &t.Error, &t.At); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// Close releases the pool.
func (r *PostgresJournal) Close() {
	r.pool.Close()
}
