package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethpandaops/tlareport/pkg/records"
)

// Parser reads one source format into essential records. Rows without a
// usable timestamp are dropped and counted in skipped.
type Parser interface {
	Parse(ctx context.Context, path string, cols Columns) (recs []records.Record, skipped int, err error)
}

// timestampLayouts are tried in order for textual timestamps
//
//nolint:gochecknoglobals // read-only lookup table
var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006/01/02 15:04:05",
	"01/02/2006 15:04:05",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"2006-01-02",
}

// ParseTimestamp parses a textual timestamp, keeping its wall clock and
// normalising it to UTC with microsecond precision
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return normalize(t), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
}

func normalize(t time.Time) time.Time {
	y, mo, d := t.Date()
	h, mi, s := t.Clock()

	return time.Date(y, mo, d, h, mi, s, t.Nanosecond(), time.UTC).Truncate(time.Microsecond)
}

// projection maps header positions to the essential columns
type projection struct {
	timestamp, category, status, deviceType, serial int
}

func newProjection(header []string, cols Columns) (*projection, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}

	lookup := func(name string) (int, error) {
		i, ok := index[name]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}

		return i, nil
	}

	p := &projection{}

	var err error
	if p.timestamp, err = lookup(cols.Timestamp); err != nil {
		return nil, err
	}
	if p.category, err = lookup(cols.Category); err != nil {
		return nil, err
	}
	if p.status, err = lookup(cols.Status); err != nil {
		return nil, err
	}
	if p.deviceType, err = lookup(cols.DeviceType); err != nil {
		return nil, err
	}
	if p.serial, err = lookup(cols.Serial); err != nil {
		return nil, err
	}

	return p, nil
}

// project builds a record from a row; ok is false when the timestamp is
// missing or unusable
func (p *projection) project(row []string, parseTS func(string) (time.Time, error)) (records.Record, bool) {
	raw := cell(row, p.timestamp)
	if raw == "" {
		return records.Record{}, false
	}

	ts, err := parseTS(raw)
	if err != nil {
		return records.Record{}, false
	}

	return records.Record{
		Timestamp:  ts,
		Category:   cell(row, p.category),
		Status:     cell(row, p.status),
		DeviceType: cell(row, p.deviceType),
		Serial:     cell(row, p.serial),
	}, true
}

// blank rows are common at the end of exported sheets
func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}

	return true
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[i])
}
