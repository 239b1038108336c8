// Package shift partitions time of day into operational shifts
package shift

import (
	"errors"
	"fmt"
	"time"
)

// Label identifies an operational shift
type Label string

const (
	// First covers [00:00:00, boundary)
	First Label = "1st Shift"
	// Second covers [boundary, 24:00:00)
	Second Label = "2nd Shift"
	// Unknown is only produced for malformed input
	Unknown Label = "Unknown"
)

// Labels lists the reachable shifts in report order
var Labels = []Label{First, Second} //nolint:gochecknoglobals // fixed ordering

const day = 24 * time.Hour

var (
	// ErrInvalidBoundary is returned when the boundary is not a time of day
	ErrInvalidBoundary = errors.New("shift boundary must be within (00:00:00, 24:00:00)")
)

// Classifier labels timestamps by shift
type Classifier struct {
	boundary time.Duration
}

// DefaultBoundary is the 15:30:00 change-over between the first and second shift
const DefaultBoundary = 15*time.Hour + 30*time.Minute

// NewClassifier creates a classifier with the given offset from midnight as
// the start of the second shift
func NewClassifier(boundary time.Duration) (*Classifier, error) {
	if boundary <= 0 || boundary >= day {
		return nil, fmt.Errorf("%w: %s", ErrInvalidBoundary, boundary)
	}

	return &Classifier{boundary: boundary}, nil
}

// ParseBoundary parses a "15:04:05" or "15:04" clock value into an offset from midnight
func ParseBoundary(s string) (time.Duration, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrInvalidBoundary, s)
}

// Boundary returns the start of the second shift as an offset from midnight
func (c *Classifier) Boundary() time.Duration {
	return c.boundary
}

// Classify returns the shift of a timestamp. A zero timestamp is treated as
// missing and yields Unknown.
func (c *Classifier) Classify(t time.Time) Label {
	if t.IsZero() {
		return Unknown
	}

	h, m, s := t.Clock()

	return c.ClassifyClock(h, m, s, t.Nanosecond())
}

// ClassifyClock classifies raw clock components
func (c *Classifier) ClassifyClock(hour, minute, sec, nsec int) Label {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || sec < 0 || sec > 59 || nsec < 0 || nsec >= int(time.Second) {
		return Unknown
	}

	offset := time.Duration(hour)*time.Hour +
		time.Duration(minute)*time.Minute +
		time.Duration(sec)*time.Second +
		time.Duration(nsec)

	if offset < c.boundary {
		return First
	}

	return Second
}

// ClassifyAll labels a column of timestamps, element-wise identical to Classify
func (c *Classifier) ClassifyAll(ts []time.Time) []Label {
	out := make([]Label, len(ts))
	for i := range ts {
		out[i] = c.Classify(ts[i])
	}

	return out
}
