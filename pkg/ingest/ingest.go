// Package ingest reads sources directly, cache first, and filters them to a
// date window. It is the fallback path used when the parquet cache is
// disabled or a single source participates.
package ingest

import (
	"context"
	"fmt"

	"github.com/ethpandaops/tlareport/pkg/cache"
	"github.com/ethpandaops/tlareport/pkg/observability"
	"github.com/ethpandaops/tlareport/pkg/pool"
	"github.com/ethpandaops/tlareport/pkg/records"
	"github.com/ethpandaops/tlareport/pkg/sources"
	"github.com/sirupsen/logrus"
)

// Config controls the ingestion fan-out
type Config struct {
	pool.Config  `yaml:",inline"`
	WriteThrough bool `yaml:"writeThrough"`
}

// Parser reads a raw source
type Parser interface {
	Parse(ctx context.Context, f sources.File) ([]records.Record, error)
}

// Cache is the subset of the cache manager the ingestor reads and writes
type Cache interface {
	Lookup(f sources.File) (*cache.Entry, bool)
	Load(ctx context.Context, entry *cache.Entry) ([]records.Record, error)
	Store(f sources.File, recs []records.Record) (*cache.Entry, error)
}

// SourceError tags a failure with the source it came from
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// Warnings flattens tagged errors into their messages
func Warnings(errs []*SourceError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Error())
	}

	return out
}

// Result is the merged output of one ingestion
type Result struct {
	Records  []records.Record
	Loaded   []string
	Empty    []string
	Warnings []*SourceError
}

// Ingestor loads sources in parallel
type Ingestor struct {
	log    logrus.FieldLogger
	cfg    *Config
	parser Parser
	cache  Cache
	pool   *pool.Pool
}

// New creates an ingestor. cache may be nil, in which case every source is parsed.
func New(log logrus.FieldLogger, cfg *Config, parser Parser, c Cache) *Ingestor {
	return &Ingestor{
		log:    log.WithField("component", "ingest"),
		cfg:    cfg,
		parser: parser,
		cache:  c,
		pool:   pool.New(log, "ingest", cfg.Config),
	}
}

// Ingest loads every source, keeping only records dated within w. A failing
// source becomes a warning; the remaining sources are still merged. When ctx
// is cancelled the completed sources are returned alongside the error.
func (i *Ingestor) Ingest(ctx context.Context, files []sources.File, w records.Window) (*Result, error) {
	units := make([]pool.Unit[[]records.Record], 0, len(files))
	for _, f := range files {
		units = append(units, pool.Unit[[]records.Record]{
			ID: f.Name,
			Run: func(ctx context.Context) ([]records.Record, error) {
				return i.read(ctx, f, w)
			},
		})
	}

	i.log.WithFields(logrus.Fields{
		"sources": len(files),
		"workers": i.pool.Size(),
		"window":  w.String(),
	}).Debug("Ingesting sources")

	result := &Result{}

	for o := range pool.Run(ctx, i.pool, units) {
		switch {
		case o.Err != nil:
			if !o.Skipped {
				i.log.WithError(o.Err).WithField("source", o.ID).Warn("Could not read source")
				observability.RecordSourceWarning("ingest")
			}
			result.Warnings = append(result.Warnings, &SourceError{Source: o.ID, Err: o.Err})
		case len(o.Value) == 0:
			result.Empty = append(result.Empty, o.ID)
		default:
			i.log.WithField("source", o.ID).WithField("records", len(o.Value)).Info("Loaded records")
			result.Loaded = append(result.Loaded, o.ID)
			result.Records = append(result.Records, o.Value...)
		}
	}

	observability.RecordRecordsLoaded("ingest", len(result.Records))

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("ingestion interrupted: %w", err)
	}

	return result, nil
}

func (i *Ingestor) read(ctx context.Context, f sources.File, w records.Window) ([]records.Record, error) {
	if i.cache != nil {
		if entry, ok := i.cache.Lookup(f); ok {
			from, to := w.Bounds()
			if !entry.Overlaps(from, to) {
				return nil, nil
			}

			recs, err := i.cache.Load(ctx, entry)
			if err == nil {
				return records.Filter(recs, w), nil
			}

			i.log.WithError(err).WithField("source", f.Name).Debug("Cache entry unreadable, parsing source")
		}
	}

	recs, err := i.parser.Parse(ctx, f)
	if err != nil {
		return nil, err
	}

	if i.cfg.WriteThrough && i.cache != nil {
		if _, err := i.cache.Store(f, recs); err != nil {
			i.log.WithError(err).WithField("source", f.Name).Debug("Write-through failed")
		}
	}

	return records.Filter(recs, w), nil
}
