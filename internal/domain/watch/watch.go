package watch

import (
	"database/sql"
	"fmt"
	"time"
)

// Request represents a subscriber's request to be alerted when a specific
// course block has open seats. Immutable after creation except for IsActive,
// which is toggled via the admin API (soft delete); the monitor only reads.
type Request struct {
	ID          int64
	Email       string
	TermCode    string
	SectionCode string
	BlockKey    string
	CourseLabel sql.NullString // Optional human-readable label
	IsActive    bool
	CreatedAt   time.Time
}

// Label returns the course label if set, or a section/block fallback.
func (r *Request) Label() string {
	if r.CourseLabel.Valid && r.CourseLabel.String != "" {
		return r.CourseLabel.String
	}
	return fmt.Sprintf("%s/%s", r.SectionCode, r.BlockKey)
}
