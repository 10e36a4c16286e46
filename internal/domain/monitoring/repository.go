// internal/domain/monitoring/repository.go
package monitoring

import (
	"context"
	"database/sql"
	"time"
)

// Repository defines operations for SeatState, SessionState and the two
// append-only audit logs. All operations are synchronous and durable on
// return; the monitor loop is the single writer.
type Repository interface {
	// SeatState methods
	GetSeatState(ctx context.Context, watchID int64) (*SeatState, error) // ErrSeatStateNotFound when no row yet
	UpsertSeatState(ctx context.Context, watchID int64, lastOS sql.NullInt64, status CheckStatus, lastError sql.NullString) error
	SetOpenedAlertAt(ctx context.Context, watchID int64, sentAt time.Time) error

	// Audit logs (write-only from the monitor's perspective)
	AppendCheckLog(ctx context.Context, watchID sql.NullInt64, status CheckStatus, message string, osValue sql.NullInt64) error
	AppendAlertLog(ctx context.Context, watchID sql.NullInt64, alertType AlertType, payload map[string]any) error
	PruneCheckLogs(ctx context.Context, olderThan time.Time) (int64, error)

	// SessionState methods (singleton row)
	GetSessionState(ctx context.Context) (*SessionState, error)
	SetSessionValid(ctx context.Context) error
	SetSessionExpired(ctx context.Context, errMsg string) error
	SetSessionFetchError(ctx context.Context, errMsg string) error
	SetReloginNotified(ctx context.Context, notifiedAt time.Time) error
}
