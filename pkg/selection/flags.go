package selection

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethpandaops/tlareport/pkg/records"
	"github.com/ethpandaops/tlareport/pkg/sources"
)

var (
	// ErrNoData is returned when no source carries dated records
	ErrNoData = errors.New("no sources with date data")
	// ErrConflictingFlags is returned when more than one selection mode is requested
	ErrConflictingFlags = errors.New("only one of --start/--end, --latest or --all may be used")
	// ErrStartRequired is returned when --end is given without --start
	ErrStartRequired = errors.New("--end requires --start")
	// ErrConflictingTrend is returned when both a trend range and --trend-days are given
	ErrConflictingTrend = errors.New("only one of --trend-start/--trend-end or --trend-days may be used")
)

// Options are the non-interactive selection flags
type Options struct {
	Start  string
	End    string
	Latest bool
	All    bool

	TrendStart string
	TrendEnd   string
	TrendDays  int
}

// Interactive reports whether no report window flag was given
func (o *Options) Interactive() bool {
	return o.Start == "" && o.End == "" && !o.Latest && !o.All
}

// HasTrend reports whether a trend window flag was given
func (o *Options) HasTrend() bool {
	return o.TrendStart != "" || o.TrendEnd != "" || o.TrendDays > 0
}

// Resolve turns flags into the report window. A lone --start selects a single day.
func Resolve(o *Options, extents []sources.Extent, now time.Time) (records.Window, error) {
	modes := 0
	for _, set := range []bool{o.Start != "" || o.End != "", o.Latest, o.All} {
		if set {
			modes++
		}
	}

	if modes > 1 {
		return records.Window{}, ErrConflictingFlags
	}

	switch {
	case o.Latest:
		return Latest(extents)
	case o.All:
		return All(extents)
	case o.Start == "" && o.End != "":
		return records.Window{}, ErrStartRequired
	}

	return parseRange(o.Start, o.End, now)
}

// ResolveTrend returns the trend window, or nil when no trend flag was given.
// --trend-days N covers the N days ending on the report window's last day.
func ResolveTrend(o *Options, report records.Window, now time.Time) (*records.Window, error) {
	if !o.HasTrend() {
		return nil, nil
	}

	if o.TrendDays > 0 {
		if o.TrendStart != "" || o.TrendEnd != "" {
			return nil, ErrConflictingTrend
		}

		w, err := records.NewWindow(report.End.AddDate(0, 0, -(o.TrendDays-1)), report.End)
		if err != nil {
			return nil, err
		}

		return &w, nil
	}

	if o.TrendStart == "" {
		return nil, fmt.Errorf("--trend-end %w", ErrStartRequired)
	}

	w, err := parseRange(o.TrendStart, o.TrendEnd, now)
	if err != nil {
		return nil, err
	}

	return &w, nil
}

// Latest selects the most recent day with data
func Latest(extents []sources.Extent) (records.Window, error) {
	_, maxTS, ok := sources.Span(extents)
	if !ok {
		return records.Window{}, ErrNoData
	}

	return records.SingleDay(maxTS), nil
}

// All selects every day from the earliest to the latest record
func All(extents []sources.Extent) (records.Window, error) {
	minTS, maxTS, ok := sources.Span(extents)
	if !ok {
		return records.Window{}, ErrNoData
	}

	return records.NewWindow(minTS, maxTS)
}

func parseRange(start, end string, now time.Time) (records.Window, error) {
	from, err := ParseDate(start, now)
	if err != nil {
		return records.Window{}, fmt.Errorf("start: %w", err)
	}

	if end == "" {
		return records.SingleDay(from), nil
	}

	to, err := ParseDate(end, now)
	if err != nil {
		return records.Window{}, fmt.Errorf("end: %w", err)
	}

	return records.NewWindow(from, to)
}
