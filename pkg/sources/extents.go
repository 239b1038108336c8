package sources

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/ethpandaops/tlareport/pkg/records"
	"github.com/sirupsen/logrus"
)

// Bounds are the min/max record timestamps and row count of a source
type Bounds struct {
	Min  time.Time `json:"min" yaml:"min"`
	Max  time.Time `json:"max" yaml:"max"`
	Rows int       `json:"rows" yaml:"rows"`
}

// Extent pairs a source with its bounds
type Extent struct {
	File File `json:"file" yaml:"file"`
	Bounds
}

// Overlaps reports whether the extent may hold records inside w
func (e Extent) Overlaps(w records.Window) bool {
	return w.Overlaps(e.Min, e.Max)
}

// DateRange renders the extent as "min to max" dates
func (e Extent) DateRange() string {
	return fmt.Sprintf("%s to %s", e.Min.Format("2006-01-02"), e.Max.Format("2006-01-02"))
}

// ExtentError tags an extents failure with its source
type ExtentError struct {
	Source string
	Err    error
}

func (e *ExtentError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *ExtentError) Unwrap() error {
	return e.Err
}

// extentKey includes the modification time so a changed source never hits a stale entry
func extentKey(f File) string {
	return f.Name + "@" + strconv.FormatInt(f.ModTime.UnixNano(), 10)
}

// Extents computes the bounds of each file. Unreadable sources are returned
// as tagged errors, empty sources are dropped.
func (c *Catalog) Extents(ctx context.Context, files []File) ([]Extent, []*ExtentError) {
	var (
		out  []Extent
		errs []*ExtentError
	)

	for _, f := range files {
		if ctx.Err() != nil {
			errs = append(errs, &ExtentError{Source: f.Name, Err: ctx.Err()})

			continue
		}

		b, err := c.extent(ctx, f)
		if err != nil {
			c.log.WithError(err).WithField("source", f.Name).Warn("Could not read source")
			errs = append(errs, &ExtentError{Source: f.Name, Err: err})

			continue
		}

		if b.Rows == 0 {
			c.log.WithField("source", f.Name).Debug("Source holds no records")

			continue
		}

		out = append(out, Extent{File: f, Bounds: b})
	}

	return out, errs
}

func (c *Catalog) extent(ctx context.Context, f File) (Bounds, error) {
	key := extentKey(f)

	if b, ok, err := c.extents.Get(ctx, key); err != nil {
		c.log.WithError(err).Debug("Extents store lookup failed")
	} else if ok {
		return b, nil
	}

	if c.hint != nil {
		if b, ok := c.hint.ExtentHint(f); ok {
			c.remember(ctx, key, b)

			return b, nil
		}
	}

	recs, err := c.Parse(ctx, f)
	if err != nil {
		return Bounds{}, err
	}

	var b Bounds
	if minTS, maxTS, ok := records.Span(recs); ok {
		b = Bounds{Min: minTS, Max: maxTS, Rows: len(recs)}
	}

	c.remember(ctx, key, b)

	return b, nil
}

func (c *Catalog) remember(ctx context.Context, key string, b Bounds) {
	if err := c.extents.Set(ctx, key, b, c.cfg.Extents.TTL); err != nil {
		c.log.WithError(err).Debug("Extents store write failed")
	}
}

// InWindow returns the files whose extents overlap w
func InWindow(extents []Extent, w records.Window) []File {
	var files []File

	for _, e := range extents {
		if e.Overlaps(w) {
			files = append(files, e.File)
		}
	}

	return files
}

// Span returns the earliest min and latest max across extents
func Span(extents []Extent) (minTS, maxTS time.Time, ok bool) {
	for i, e := range extents {
		if i == 0 || e.Min.Before(minTS) {
			minTS = e.Min
		}
		if i == 0 || e.Max.After(maxTS) {
			maxTS = e.Max
		}
	}

	return minTS, maxTS, len(extents) > 0
}

// BoundaryDates lists the distinct min and max dates of all extents, ascending
func BoundaryDates(extents []Extent) []time.Time {
	seen := make(map[time.Time]bool)

	var dates []time.Time

	for _, e := range extents {
		for _, d := range []time.Time{records.Day(e.Min), records.Day(e.Max)} {
			if !seen[d] {
				seen[d] = true
				dates = append(dates, d)
			}
		}
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	return dates
}

// Fields summarises extents for structured logs
func Fields(extents []Extent) logrus.Fields {
	minTS, maxTS, _ := Span(extents)

	return logrus.Fields{
		"sources": len(extents),
		"min":     minTS.Format("2006-01-02"),
		"max":     maxTS.Format("2006-01-02"),
	}
}
