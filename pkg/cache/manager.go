package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ethpandaops/tlareport/pkg/observability"
	"github.com/ethpandaops/tlareport/pkg/records"
	"github.com/ethpandaops/tlareport/pkg/sources"
	"github.com/parquet-go/parquet-go"
	"github.com/sirupsen/logrus"
)

// Parser reads a raw source into essential records
type Parser interface {
	Parse(ctx context.Context, f sources.File) ([]records.Record, error)
}

// State describes a source's cache entry at a point in time
type State string

const (
	// StateFresh means the entry matches the source's modification time
	StateFresh State = "fresh"
	// StateStale means the source changed after the entry was built
	StateStale State = "stale"
	// StateMissing means no entry exists
	StateMissing State = "missing"
	// StateEmpty means the source had no rows to cache during this run
	StateEmpty State = "empty"
	// StateUncached means writing the entry failed during this run
	StateUncached State = "uncached"
	// StateFailed means the source could not be parsed during this run
	StateFailed State = "failed"
)

// RefreshReport summarises one EnsureFresh call
type RefreshReport struct {
	Fresh   []string
	Rebuilt []string
	Empty   []string
	Failed  map[string]error
}

// Manager keeps cache entries in step with their sources. Rebuilds are
// sequential; readers only run once refreshing has finished.
type Manager struct {
	log     logrus.FieldLogger
	cfg     *Config
	parser  Parser
	codec   parquet.WriterOption
	enabled bool

	mu    sync.RWMutex
	state map[string]State
}

// NewManager creates a cache manager. When the cache directory cannot be
// created the manager is returned disabled rather than failing the run.
func NewManager(log logrus.FieldLogger, cfg *Config, parser Parser) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cache config: %w", err)
	}

	m := &Manager{
		log:     log.WithField("component", "cache"),
		cfg:     cfg,
		parser:  parser,
		codec:   compression(cfg.Compression),
		enabled: cfg.Enabled,
		state:   make(map[string]State),
	}

	if m.enabled {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			m.log.WithError(err).WithField("dir", cfg.Dir).Warn("Cache directory unavailable, caching disabled")
			m.enabled = false
		}
	}

	return m, nil
}

// Enabled reports whether entries can be read and written
func (m *Manager) Enabled() bool {
	return m.enabled
}

// EnsureFresh rebuilds every missing or stale entry. Per-source failures are
// recorded in the report and never abort the remaining sources.
func (m *Manager) EnsureFresh(ctx context.Context, files []sources.File) (*RefreshReport, error) {
	report := &RefreshReport{Failed: make(map[string]error)}
	if !m.enabled {
		return report, nil
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("cache refresh interrupted: %w", err)
		}

		if entry, err := readEntry(entryPath(m.cfg.Dir, f.Name)); err == nil && entry.FreshFor(f) {
			m.setState(f.Name, StateFresh)
			report.Fresh = append(report.Fresh, f.Name)

			continue
		}

		log := m.log.WithField("source", f.Name)
		log.Info("Caching source to parquet")

		entry, err := m.Rebuild(ctx, f)

		switch {
		case err != nil:
			log.WithError(err).Warn("Failed to cache source")
			report.Failed[f.Name] = err
		case entry == nil:
			report.Empty = append(report.Empty, f.Name)
		default:
			log.WithField("rows", entry.Rows).Info("Cached source")
			report.Rebuilt = append(report.Rebuilt, f.Name)
		}
	}

	return report, nil
}

// Rebuild fully parses a source and replaces its entry. A source with no
// rows gets no entry; nil is returned for it.
func (m *Manager) Rebuild(ctx context.Context, f sources.File) (*Entry, error) {
	if !m.enabled {
		return nil, nil
	}

	start := time.Now()

	recs, err := m.parser.Parse(ctx, f)
	if err != nil {
		m.setState(f.Name, StateFailed)
		observability.RecordCacheRebuild("parse_error", time.Since(start))

		return nil, err
	}

	return m.store(f, recs, start)
}

// Store writes already parsed records for a source, used for write-through
// from the ingestion path
func (m *Manager) Store(f sources.File, recs []records.Record) (*Entry, error) {
	if !m.enabled {
		return nil, nil
	}

	return m.store(f, recs, time.Now())
}

func (m *Manager) store(f sources.File, recs []records.Record, start time.Time) (*Entry, error) {
	path := entryPath(m.cfg.Dir, f.Name)

	if len(recs) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			m.log.WithError(err).WithField("source", f.Name).Warn("Failed to remove outdated cache entry")
		}

		m.setState(f.Name, StateEmpty)
		observability.RecordCacheRebuild("empty", time.Since(start))

		return nil, nil
	}

	entry, err := writeEntry(m.cfg.Dir, f, recs, m.codec)
	if err != nil {
		m.setState(f.Name, StateUncached)
		observability.RecordCacheRebuild("write_error", time.Since(start))

		return nil, fmt.Errorf("failed to write cache entry: %w", err)
	}

	m.setState(f.Name, StateFresh)
	observability.RecordCacheRebuild("rebuilt", time.Since(start))

	return entry, nil
}

// Lookup returns the entry for a source if it is fresh
func (m *Manager) Lookup(f sources.File) (*Entry, bool) {
	if !m.enabled {
		return nil, false
	}

	entry, err := readEntry(entryPath(m.cfg.Dir, f.Name))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			m.log.WithError(err).WithField("source", f.Name).Debug("Unreadable cache entry")
		}

		return nil, false
	}

	if !entry.FreshFor(f) {
		return nil, false
	}

	return entry, true
}

// Load decodes all rows of an entry
func (m *Manager) Load(ctx context.Context, entry *Entry) ([]records.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return loadEntry(entry.Path)
}

// KnownEmpty reports whether the source was found to hold no rows during this run
func (m *Manager) KnownEmpty(f sources.File) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.state[f.Name] == StateEmpty
}

// ExtentHint answers source extents from a fresh entry without parsing the source
func (m *Manager) ExtentHint(f sources.File) (sources.Bounds, bool) {
	entry, ok := m.Lookup(f)
	if !ok {
		return sources.Bounds{}, false
	}

	return entry.Bounds(), true
}

// EntryStatus is one line of Status
type EntryStatus struct {
	Source sources.File
	State  State
	Entry  *Entry
}

// Status inspects the entry of each source without modifying anything
func (m *Manager) Status(files []sources.File) []EntryStatus {
	out := make([]EntryStatus, 0, len(files))

	for _, f := range files {
		st := EntryStatus{Source: f, State: StateMissing}

		m.mu.RLock()
		known := m.state[f.Name]
		m.mu.RUnlock()

		entry, err := readEntry(entryPath(m.cfg.Dir, f.Name))

		switch {
		case err == nil && entry.FreshFor(f):
			st.State, st.Entry = StateFresh, entry
		case err == nil:
			st.State, st.Entry = StateStale, entry
		case known == StateEmpty || known == StateUncached || known == StateFailed:
			st.State = known
		}

		out = append(out, st)
	}

	return out
}

func (m *Manager) setState(source string, s State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state[source] = s
}
