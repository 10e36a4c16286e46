// internal/domain/monitoring/seat_state.go
package monitoring

import (
	"database/sql"
)

// SeatState is the one-per-watch record of the last observation. It is the
// only state the alert decision consults; the cycle must read the previous
// value before overwriting it so "previous" reflects the prior cycle.
type SeatState struct {
	WatchRequestID    int64
	LastOS            sql.NullInt64 // Last observed open-seat count; invalid until first successful check
	LastStatus        sql.NullString
	LastCheckedAt     sql.NullTime
	LastOpenedAlertAt sql.NullTime // Set only immediately after a successful open-seat alert send
	LastError         sql.NullString
}
