// internal/domain/monitoring/session.go
package monitoring

import (
	"database/sql"
)

// SessionState is the single process-wide record describing the upstream
// authentication session. ReloginNotifiedAt is a one-shot gate: while it is
// set, no further relogin alerts go out; it is cleared only when the session
// transitions back to valid.
type SessionState struct {
	State             SessionStateTag
	LastCheckedAt     sql.NullTime
	LastValidAt       sql.NullTime
	LastError         sql.NullString
	ReloginNotifiedAt sql.NullTime
}
