// Package selection resolves the report and trend date windows, either from
// command line flags or by prompting the operator
package selection

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/ethpandaops/tlareport/pkg/records"
	dps "github.com/markusmobius/go-dateparser"
)

// DateLayout is the canonical date input format
const DateLayout = "2006-01-02"

var (
	// ErrInvalidDate is returned for input that cannot be read as a date
	ErrInvalidDate = errors.New("invalid date")
)

// ParseDate reads a calendar date. Numeric input must be a valid YYYY-MM-DD
// date; anything else is read as natural language such as "yesterday" or
// "3 days ago" relative to now.
func ParseDate(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty input", ErrInvalidDate)
	}

	if numeric(s) {
		t, err := time.Parse(DateLayout, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w %q: expected YYYY-MM-DD", ErrInvalidDate, s)
		}

		return t, nil
	}

	parser := dps.Parser{}
	cfg := &dps.Configuration{
		CurrentTime:         now,
		PreferredDateSource: dps.CurrentPeriod,
		StrictParsing:       true,
		RequiredParts:       []string{"day", "month", "year"},
	}

	parsed, err := parser.Parse(cfg, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: %w", ErrInvalidDate, s, err)
	}

	if parsed.IsZero() {
		return time.Time{}, fmt.Errorf("%w %q", ErrInvalidDate, s)
	}

	return records.Day(parsed.Time), nil
}

// numeric reports whether s holds only digits and date separators. The
// natural language parser corrects such input into other dates.
func numeric(s string) bool {
	return strings.IndexFunc(s, func(c rune) bool {
		return !unicode.IsDigit(c) && !strings.ContainsRune("-/. ", c)
	}) == -1
}
