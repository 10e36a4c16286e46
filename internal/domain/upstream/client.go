package upstream

import (
	"context"
	"fmt"
)

// Client defines an interface for fetching the raw seat-status XML from the
// enrollment system. This decouples the monitor cycle from the concrete
// HTTP client so tests can substitute canned documents.
type Client interface {
	FetchXML(ctx context.Context) (string, error)
}

// Error kinds surfaced by a Client and the document parser. Concrete errors
// wrap these sentinels; callers classify with errors.Is.
var (
	ErrNotConfigured  = fmt.Errorf("upstream endpoint is not configured")
	ErrSessionExpired = fmt.Errorf("upstream session expired")
	ErrFetchFailed    = fmt.Errorf("upstream fetch failed")
	ErrInvalidXML     = fmt.Errorf("invalid XML document")
	ErrBlockNotFound  = fmt.Errorf("block not found")
)
