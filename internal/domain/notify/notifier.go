package notify

import "fmt"

// ErrSendFailed is the single error kind for a failed notification send.
var ErrSendFailed = fmt.Errorf("notification send failed")

// Notifier defines an interface for delivering a composed alert to a
// recipient. The monitor treats the transport as a black box; any failure
// surfaces as ErrSendFailed.
type Notifier interface {
	Send(recipient, subject, body string) error
}
