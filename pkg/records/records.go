// Package records defines the essential test outcome record and date windows
package records

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// StatusPass is the status value of a passing test, compared case-insensitively
const StatusPass = "pass"

const dateLayout = "2006-01-02"

var (
	// ErrInvalidWindow is returned when a window starts after it ends
	ErrInvalidWindow = errors.New("window start is after window end")
)

// Record is one test outcome projected to the essential columns
type Record struct {
	Timestamp  time.Time `json:"timestamp" yaml:"timestamp"`
	Category   string    `json:"category" yaml:"category"`
	Status     string    `json:"status" yaml:"status"`
	DeviceType string    `json:"device_type" yaml:"device_type"`
	Serial     string    `json:"serial" yaml:"serial"`
}

// IsFailure reports whether the record is anything other than a pass
func (r *Record) IsFailure() bool {
	return strings.ToLower(r.Status) != StatusPass
}

// Day truncates t to the start of its calendar day in UTC
func Day(t time.Time) time.Time {
	y, m, d := t.Date()

	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Window is an inclusive range of calendar days
type Window struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// NewWindow builds a window from two dates, ignoring their time of day
func NewWindow(start, end time.Time) (Window, error) {
	w := Window{Start: Day(start), End: Day(end)}
	if w.Start.After(w.End) {
		return Window{}, fmt.Errorf("%w: %s > %s", ErrInvalidWindow, w.Start.Format(dateLayout), w.End.Format(dateLayout))
	}

	return w, nil
}

// SingleDay returns a window covering exactly one day
func SingleDay(day time.Time) Window {
	d := Day(day)

	return Window{Start: d, End: d}
}

// Bounds returns the closed timestamp range covered by the window:
// [start_of_day(start), start_of_day(end) + 1 day - 1µs]
func (w Window) Bounds() (from, to time.Time) {
	return w.Start, w.End.AddDate(0, 0, 1).Add(-time.Microsecond)
}

// Contains reports whether the calendar day of t lies inside the window
func (w Window) Contains(t time.Time) bool {
	d := Day(t)

	return !d.Before(w.Start) && !d.After(w.End)
}

// Overlaps reports whether the timestamp range [minTS, maxTS] intersects the window
func (w Window) Overlaps(minTS, maxTS time.Time) bool {
	return !(Day(maxTS).Before(w.Start) || Day(minTS).After(w.End))
}

// Days returns the number of calendar days in the window
func (w Window) Days() int {
	return int(w.End.Sub(w.Start).Hours()/24) + 1
}

func (w Window) String() string {
	if w.Start.Equal(w.End) {
		return w.Start.Format(dateLayout)
	}

	return w.Start.Format(dateLayout) + " to " + w.End.Format(dateLayout)
}

// Filter returns the records whose timestamp falls inside the window
func Filter(recs []Record, w Window) []Record {
	from, to := w.Bounds()

	out := make([]Record, 0, len(recs))
	for i := range recs {
		ts := recs[i].Timestamp
		if ts.Before(from) || ts.After(to) {
			continue
		}

		out = append(out, recs[i])
	}

	return out
}

// Span returns the min and max timestamp of a record set
func Span(recs []Record) (minTS, maxTS time.Time, ok bool) {
	if len(recs) == 0 {
		return time.Time{}, time.Time{}, false
	}

	minTS, maxTS = recs[0].Timestamp, recs[0].Timestamp
	for i := 1; i < len(recs); i++ {
		ts := recs[i].Timestamp
		if ts.Before(minTS) {
			minTS = ts
		}
		if ts.After(maxTS) {
			maxTS = ts
		}
	}

	return minTS, maxTS, true
}
