package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ethpandaops/tlareport/pkg/records"
	"github.com/ethpandaops/tlareport/pkg/sources"
	"github.com/parquet-go/parquet-go"
)

// File metadata keys stored in every entry
const (
	metaSource      = "tlareport.source"
	metaSourceMTime = "tlareport.source_mtime_ns"
	metaRows        = "tlareport.rows"
	metaMin         = "tlareport.min_us"
	metaMax         = "tlareport.max_us"
)

var (
	// ErrCorruptEntry is returned when an entry lacks the required metadata
	ErrCorruptEntry = errors.New("cache entry metadata missing or invalid")
)

// row is the five column projection persisted per source
type row struct {
	Timestamp  time.Time `parquet:"StartDateTime,timestamp(microsecond)"`
	Category   string    `parquet:"Syndrom,dict"`
	Status     string    `parquet:"SyndromStatus,dict"`
	DeviceType string    `parquet:"UUT,dict"`
	Serial     string    `parquet:"SerialNumber"`
}

// Entry describes a cache file on disk
type Entry struct {
	Source        string    `json:"source" yaml:"source"`
	Path          string    `json:"path" yaml:"path"`
	SourceModTime time.Time `json:"source_mod_time" yaml:"source_mod_time"`
	Rows          int       `json:"rows" yaml:"rows"`
	Min           time.Time `json:"min" yaml:"min"`
	Max           time.Time `json:"max" yaml:"max"`
}

// FreshFor reports whether the entry was built from the source's current
// version: stored build-time mtime >= current mtime
func (e *Entry) FreshFor(f sources.File) bool {
	return !e.SourceModTime.Before(f.ModTime)
}

// Bounds returns the entry's extents
func (e *Entry) Bounds() sources.Bounds {
	return sources.Bounds{Min: e.Min, Max: e.Max, Rows: e.Rows}
}

// Overlaps reports whether the entry may contain rows within [from, to]
func (e *Entry) Overlaps(from, to time.Time) bool {
	return !(e.Max.Before(from) || e.Min.After(to))
}

func entryPath(dir, source string) string {
	return filepath.Join(dir, source+".parquet")
}

// readEntry reads only the footer metadata of a cache file
func readEntry(path string) (*Entry, error) {
	fh, err := os.Open(path) //nolint:gosec // cache path derived from source name
	if err != nil {
		return nil, err
	}
	defer func() { _ = fh.Close() }()

	info, err := fh.Stat()
	if err != nil {
		return nil, err
	}

	pf, err := parquet.OpenFile(fh, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	meta := func(key string) (int64, error) {
		v, ok := pf.Lookup(key)
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrCorruptEntry, key)
		}

		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %w", ErrCorruptEntry, key, err)
		}

		return n, nil
	}

	mtime, err := meta(metaSourceMTime)
	if err != nil {
		return nil, err
	}

	rows, err := meta(metaRows)
	if err != nil {
		return nil, err
	}

	minUS, err := meta(metaMin)
	if err != nil {
		return nil, err
	}

	maxUS, err := meta(metaMax)
	if err != nil {
		return nil, err
	}

	source, _ := pf.Lookup(metaSource)

	return &Entry{
		Source:        source,
		Path:          path,
		SourceModTime: time.Unix(0, mtime),
		Rows:          int(rows),
		Min:           time.UnixMicro(minUS).UTC(),
		Max:           time.UnixMicro(maxUS).UTC(),
	}, nil
}

// writeEntry persists recs via a temp file and rename so readers never
// observe a partial entry
func writeEntry(dir string, f sources.File, recs []records.Record, codec parquet.WriterOption) (*Entry, error) {
	minTS, maxTS, ok := records.Span(recs)
	if !ok {
		return nil, errors.New("refusing to write an empty cache entry")
	}

	rows := make([]row, len(recs))
	for i := range recs {
		rows[i] = row(recs[i])
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*.parquet")
	if err != nil {
		return nil, err
	}
	tmpName := tmp.Name()

	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	options := []parquet.WriterOption{
		parquet.KeyValueMetadata(metaSource, f.Name),
		parquet.KeyValueMetadata(metaSourceMTime, strconv.FormatInt(f.ModTime.UnixNano(), 10)),
		parquet.KeyValueMetadata(metaRows, strconv.Itoa(len(rows))),
		parquet.KeyValueMetadata(metaMin, strconv.FormatInt(minTS.UnixMicro(), 10)),
		parquet.KeyValueMetadata(metaMax, strconv.FormatInt(maxTS.UnixMicro(), 10)),
	}
	if codec != nil {
		options = append(options, codec)
	}

	if err := parquet.Write(tmp, rows, options...); err != nil {
		return nil, fmt.Errorf("failed to encode parquet: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	path := entryPath(dir, f.Name)
	if err := os.Rename(tmpName, path); err != nil {
		return nil, err
	}
	committed = true

	return &Entry{
		Source:        f.Name,
		Path:          path,
		SourceModTime: f.ModTime,
		Rows:          len(rows),
		Min:           minTS,
		Max:           maxTS,
	}, nil
}

// loadEntry decodes every row of an entry
func loadEntry(path string) ([]records.Record, error) {
	fh, err := os.Open(path) //nolint:gosec // cache path derived from source name
	if err != nil {
		return nil, err
	}
	defer func() { _ = fh.Close() }()

	info, err := fh.Stat()
	if err != nil {
		return nil, err
	}

	rows, err := parquet.Read[row](fh, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	recs := make([]records.Record, len(rows))
	for i := range rows {
		recs[i] = records.Record(rows[i])
		recs[i].Timestamp = recs[i].Timestamp.UTC()
	}

	return recs, nil
}

func compression(name string) parquet.WriterOption {
	switch name {
	case "none":
		return parquet.Compression(&parquet.Uncompressed)
	case "zstd":
		return parquet.Compression(&parquet.Zstd)
	case "gzip":
		return parquet.Compression(&parquet.Gzip)
	case "snappy":
		return parquet.Compression(&parquet.Snappy)
	default:
		return nil
	}
}
