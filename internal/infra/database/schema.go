package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements create the four tables plus the session singleton seed.
// Idempotent: every statement is IF NOT EXISTS / ON CONFLICT DO NOTHING.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS watch_requests (
		id BIGSERIAL PRIMARY KEY,
		email TEXT NOT NULL,
		term_code TEXT NOT NULL DEFAULT 'W',
		section_code TEXT NOT NULL,
		block_key TEXT NOT NULL,
		course_label TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS seat_state (
		id BIGSERIAL PRIMARY KEY,
		watch_request_id BIGINT NOT NULL UNIQUE REFERENCES watch_requests(id),
		last_os INTEGER,
		last_status TEXT,
		last_checked_at TIMESTAMPTZ,
		last_opened_alert_at TIMESTAMPTZ,
		last_error TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS check_logs (
		id BIGSERIAL PRIMARY KEY,
		watch_request_id BIGINT REFERENCES watch_requests(id),
		checked_at TIMESTAMPTZ NOT NULL,
		os_value INTEGER,
		status TEXT NOT NULL,
		message TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS alerts_sent (
		id BIGSERIAL PRIMARY KEY,
		watch_request_id BIGINT REFERENCES watch_requests(id),
		alert_type TEXT NOT NULL,
		sent_at TIMESTAMPTZ NOT NULL,
		payload JSONB
	)`,
	`CREATE TABLE IF NOT EXISTS session_status (
		id SMALLINT PRIMARY KEY CHECK (id = 1),
		state TEXT NOT NULL,
		last_checked_at TIMESTAMPTZ,
		last_valid_at TIMESTAMPTZ,
		last_error TEXT,
		relogin_notified_at TIMESTAMPTZ
	)`,
	`INSERT INTO session_status (id, state) VALUES (1, 'unknown')
		ON CONFLICT (id) DO NOTHING`,
}

// InitSchema creates the storage schema if it does not exist and seeds the
// one-row session_status record with state 'unknown'.
func InitSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("error initializing schema: %w", err)
		}
	}
	return nil
}
