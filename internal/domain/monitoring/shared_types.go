// internal/domain/monitoring/shared_types.go
package monitoring

// CheckStatus is the outcome tag recorded per watch per monitor cycle.
type CheckStatus string

const (
	CheckStatusOpen           CheckStatus = "open"
	CheckStatusFull           CheckStatus = "full"
	CheckStatusNotFound       CheckStatus = "not_found"
	CheckStatusSessionExpired CheckStatus = "session_expired"
	CheckStatusFetchError     CheckStatus = "fetch_error"
	CheckStatusInvalidXML     CheckStatus = "invalid_xml"
	CheckStatusAlertSent      CheckStatus = "alert_sent"
	CheckStatusAlertError     CheckStatus = "alert_error"
	CheckStatusAlertSkipped   CheckStatus = "alert_skipped"
)

// AlertType classifies entries in the alert audit log.
type AlertType string

const (
	AlertTypeSeatOpen        AlertType = "seat_open"
	AlertTypeReloginRequired AlertType = "relogin_required"
)

// SessionStateTag is the process-wide upstream session classification.
type SessionStateTag string

const (
	SessionStateUnknown    SessionStateTag = "unknown"
	SessionStateValid      SessionStateTag = "valid"
	SessionStateExpired    SessionStateTag = "expired"
	SessionStateFetchError SessionStateTag = "fetch_error"
)
