// Package query answers windowed record queries over the parquet cache
package query

import (
	"context"
	"fmt"

	"github.com/ethpandaops/tlareport/pkg/cache"
	"github.com/ethpandaops/tlareport/pkg/ingest"
	"github.com/ethpandaops/tlareport/pkg/observability"
	"github.com/ethpandaops/tlareport/pkg/pool"
	"github.com/ethpandaops/tlareport/pkg/records"
	"github.com/ethpandaops/tlareport/pkg/sources"
	"github.com/sirupsen/logrus"
)

// Cache is the subset of the cache manager used by the engine
type Cache interface {
	EnsureFresh(ctx context.Context, files []sources.File) (*cache.RefreshReport, error)
	Lookup(f sources.File) (*cache.Entry, bool)
	Load(ctx context.Context, entry *cache.Entry) ([]records.Record, error)
	KnownEmpty(f sources.File) bool
}

// Result is the outcome of a query that produced rows
type Result struct {
	Records  []records.Record
	Refresh  *cache.RefreshReport
	Scanned  []string
	Pruned   []string
	Parsed   []string
	Warnings []*ingest.SourceError
}

// Engine scans cache entries for a window
type Engine struct {
	log    logrus.FieldLogger
	cache  Cache
	parser ingest.Parser
	pool   *pool.Pool
}

// NewEngine creates a query engine. parser serves sources whose entry could
// not be written during this run.
func NewEngine(log logrus.FieldLogger, c Cache, parser ingest.Parser, cfg pool.Config) *Engine {
	return &Engine{
		log:    log.WithField("component", "query"),
		cache:  c,
		parser: parser,
		pool:   pool.New(log, "query", cfg),
	}
}

type scan struct {
	source  string
	entry   *cache.Entry
	records []records.Record
}

// Query refreshes the cache for files, then returns every record timestamped
// within [start of w.Start, end of w.End]. A nil result with a nil error means
// no rows matched.
func (e *Engine) Query(ctx context.Context, w records.Window, files []sources.File) (*Result, error) {
	refresh, err := e.cache.EnsureFresh(ctx, files)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh cache: %w", err)
	}

	from, to := w.Bounds()
	result := &Result{Refresh: refresh}

	units := make([]pool.Unit[scan], 0, len(files))

	for _, f := range files {
		if e.cache.KnownEmpty(f) {
			continue
		}

		entry, ok := e.cache.Lookup(f)
		if ok && !entry.Overlaps(from, to) {
			result.Pruned = append(result.Pruned, f.Name)

			continue
		}

		units = append(units, pool.Unit[scan]{
			ID: f.Name,
			Run: func(ctx context.Context) (scan, error) {
				return e.scan(ctx, f, entry, w)
			},
		})
	}

	e.log.WithFields(logrus.Fields{
		"window":  w.String(),
		"sources": len(files),
		"scan":    len(units),
		"pruned":  len(result.Pruned),
	}).Debug("Scanning cache")

	for o := range pool.Run(ctx, e.pool, units) {
		if o.Err != nil {
			if !o.Skipped {
				e.log.WithError(o.Err).WithField("source", o.ID).Warn("Could not scan source")
				observability.RecordSourceWarning("query")
			}
			result.Warnings = append(result.Warnings, &ingest.SourceError{Source: o.ID, Err: o.Err})

			continue
		}

		if o.Value.entry != nil {
			result.Scanned = append(result.Scanned, o.ID)
		} else {
			result.Parsed = append(result.Parsed, o.ID)
		}

		result.Records = append(result.Records, o.Value.records...)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("query interrupted: %w", err)
	}

	observability.RecordRecordsLoaded("query", len(result.Records))

	if len(result.Records) == 0 {
		return nil, nil
	}

	return result, nil
}

func (e *Engine) scan(ctx context.Context, f sources.File, entry *cache.Entry, w records.Window) (scan, error) {
	s := scan{source: f.Name, entry: entry}

	var (
		recs []records.Record
		err  error
	)

	if entry != nil {
		recs, err = e.cache.Load(ctx, entry)
	} else {
		recs, err = e.parser.Parse(ctx, f)
	}

	if err != nil {
		return s, err
	}

	s.records = records.Filter(recs, w)

	return s, nil
}
