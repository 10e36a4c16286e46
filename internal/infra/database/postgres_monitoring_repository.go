package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"seat_monitor_bot/internal/domain/monitoring"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Custom errors
var (
	ErrSeatStateNotFound = fmt.Errorf("seat state not found")
	ErrSessionRowMissing = fmt.Errorf("session_status row missing")
)

type PostgresMonitoringRepository struct {
	db *sql.DB
}

func NewPostgresMonitoringRepository(db *sql.DB) *PostgresMonitoringRepository {
	return &PostgresMonitoringRepository{db: db}
}

func (r *PostgresMonitoringRepository) GetSeatState(ctx context.Context, watchID int64) (*monitoring.SeatState, error) {
	query := `SELECT watch_request_id, last_os, last_status, last_checked_at, last_opened_alert_at, last_error
               FROM seat_state WHERE watch_request_id = $1`
	state := &monitoring.SeatState{}
	err := r.db.QueryRowContext(ctx, query, watchID).Scan(
		&state.WatchRequestID, &state.LastOS, &state.LastStatus,
		&state.LastCheckedAt, &state.LastOpenedAlertAt, &state.LastError)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSeatStateNotFound
		}
		return nil, fmt.Errorf("error getting seat state: %w", err)
	}
	return state, nil
}

// UpsertSeatState writes the latest observation for a watch. The
// last_opened_alert_at column is deliberately absent from the update list;
// only SetOpenedAlertAt touches it.
func (r *PostgresMonitoringRepository) UpsertSeatState(ctx context.Context, watchID int64, lastOS sql.NullInt64, status monitoring.CheckStatus, lastError sql.NullString) error {
	query := `INSERT INTO seat_state (watch_request_id, last_os, last_status, last_checked_at, last_error)
               VALUES ($1, $2, $3, NOW(), $4)
               ON CONFLICT (watch_request_id) DO UPDATE SET
                   last_os = EXCLUDED.last_os,
                   last_status = EXCLUDED.last_status,
                   last_checked_at = EXCLUDED.last_checked_at,
                   last_error = EXCLUDED.last_error`
	if _, err := r.db.ExecContext(ctx, query, watchID, lastOS, string(status), lastError); err != nil {
		return fmt.Errorf("error upserting seat state: %w", err)
	}
	return nil
}

func (r *PostgresMonitoringRepository) SetOpenedAlertAt(ctx context.Context, watchID int64, sentAt time.Time) error {
	query := `UPDATE seat_state SET last_opened_alert_at = $1 WHERE watch_request_id = $2`
	if _, err := r.db.ExecContext(ctx, query, sentAt, watchID); err != nil {
		return fmt.Errorf("error setting opened alert timestamp: %w", err)
	}
	return nil
}

func (r *PostgresMonitoringRepository) AppendCheckLog(ctx context.Context, watchID sql.NullInt64, status monitoring.CheckStatus, message string, osValue sql.NullInt64) error {
	query := `INSERT INTO check_logs (watch_request_id, checked_at, os_value, status, message)
               VALUES ($1, NOW(), $2, $3, $4)`
	if _, err := r.db.ExecContext(ctx, query, watchID, osValue, string(status), message); err != nil {
		return fmt.Errorf("error appending check log: %w", err)
	}
	return nil
}

func (r *PostgresMonitoringRepository) AppendAlertLog(ctx context.Context, watchID sql.NullInt64, alertType monitoring.AlertType, payload map[string]any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error encoding alert payload: %w", err)
	}
	query := `INSERT INTO alerts_sent (watch_request_id, alert_type, sent_at, payload)
               VALUES ($1, $2, NOW(), $3)`
	if _, err := r.db.ExecContext(ctx, query, watchID, string(alertType), encoded); err != nil {
		return fmt.Errorf("error appending alert log: %w", err)
	}
	return nil
}

func (r *PostgresMonitoringRepository) PruneCheckLogs(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `DELETE FROM check_logs WHERE checked_at < $1`
	result, err := r.db.ExecContext(ctx, query, olderThan)
	if err != nil {
		return 0, fmt.Errorf("error pruning check logs: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error counting pruned check logs: %w", err)
	}
	return deleted, nil
}

func (r *PostgresMonitoringRepository) GetSessionState(ctx context.Context) (*monitoring.SessionState, error) {
	query := `SELECT state, last_checked_at, last_valid_at, last_error, relogin_notified_at
               FROM session_status WHERE id = 1`
	session := &monitoring.SessionState{}
	var state string
	err := r.db.QueryRowContext(ctx, query).Scan(
		&state, &session.LastCheckedAt, &session.LastValidAt,
		&session.LastError, &session.ReloginNotifiedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSessionRowMissing
		}
		return nil, fmt.Errorf("error getting session state: %w", err)
	}
	session.State = monitoring.SessionStateTag(state)
	return session, nil
}

// SetSessionValid marks the session valid, clears the stored error and
// resets the relogin-notified gate.
func (r *PostgresMonitoringRepository) SetSessionValid(ctx context.Context) error {
	query := `UPDATE session_status
               SET state = 'valid',
                   last_checked_at = NOW(),
                   last_valid_at = NOW(),
                   last_error = NULL,
                   relogin_notified_at = NULL
               WHERE id = 1`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("error setting session valid: %w", err)
	}
	return nil
}

func (r *PostgresMonitoringRepository) SetSessionExpired(ctx context.Context, errMsg string) error {
	query := `UPDATE session_status
               SET state = 'expired',
                   last_checked_at = NOW(),
                   last_error = $1
               WHERE id = 1`
	if _, err := r.db.ExecContext(ctx, query, errMsg); err != nil {
		return fmt.Errorf("error setting session expired: %w", err)
	}
	return nil
}

func (r *PostgresMonitoringRepository) SetSessionFetchError(ctx context.Context, errMsg string) error {
	query := `UPDATE session_status
               SET state = 'fetch_error',
                   last_checked_at = NOW(),
                   last_error = $1
               WHERE id = 1`
	if _, err := r.db.ExecContext(ctx, query, errMsg); err != nil {
		return fmt.Errorf("error setting session fetch error: %w", err)
	}
	return nil
}

func (r *PostgresMonitoringRepository) SetReloginNotified(ctx context.Context, notifiedAt time.Time) error {
	query := `UPDATE session_status SET relogin_notified_at = $1 WHERE id = 1`
	if _, err := r.db.ExecContext(ctx, query, notifiedAt); err != nil {
		return fmt.Errorf("error setting relogin notified timestamp: %w", err)
	}
	return nil
}
