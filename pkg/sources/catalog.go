package sources

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ethpandaops/tlareport/pkg/records"
	"github.com/sirupsen/logrus"
)

// File is a discovered source file. Name is its stable identity.
type File struct {
	Name    string    `json:"name" yaml:"name"`
	Path    string    `json:"path" yaml:"path"`
	ModTime time.Time `json:"mod_time" yaml:"mod_time"`
	Size    int64     `json:"size" yaml:"size"`
}

// Stat builds a File from the filesystem
func Stat(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, err
	}

	return File{
		Name:    filepath.Base(path),
		Path:    path,
		ModTime: info.ModTime(),
		Size:    info.Size(),
	}, nil
}

// Catalog discovers source files and extracts their timestamp extents
type Catalog struct {
	log     logrus.FieldLogger
	cfg     *Config
	parsers map[string]Parser
	extents ExtentStore
	hint    ExtentHinter
}

// ExtentHinter can answer extents without parsing the raw source, e.g. from a fresh cache entry
type ExtentHinter interface {
	ExtentHint(f File) (Bounds, bool)
}

// NewCatalog creates a catalog for the configured source directory
func NewCatalog(log logrus.FieldLogger, cfg *Config, store ExtentStore) (*Catalog, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sources config: %w", err)
	}

	if store == nil {
		var err error

		store, err = NewMemoryExtentStore(cfg.Extents.Size)
		if err != nil {
			return nil, err
		}
	}

	return &Catalog{
		log: log.WithField("component", "sources"),
		cfg: cfg,
		parsers: map[string]Parser{
			".xlsx": &xlsxParser{sheet: cfg.Sheet},
			".xlsm": &xlsxParser{sheet: cfg.Sheet},
			".csv":  &csvParser{},
		},
		extents: store,
	}, nil
}

// SetHinter registers a cheaper extents source consulted before parsing
func (c *Catalog) SetHinter(h ExtentHinter) {
	c.hint = h
}

// Columns returns the configured essential column names
func (c *Catalog) Columns() Columns {
	return c.cfg.Columns
}

// Discover lists candidate source files, excluding the report's own output
// and office lock files. The result is sorted by name.
func (c *Catalog) Discover() ([]File, error) {
	seen := make(map[string]bool)

	var files []File

	for _, pattern := range c.cfg.Patterns {
		matches, err := filepath.Glob(filepath.Join(c.cfg.Dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to glob %s: %w", pattern, err)
		}

		for _, path := range matches {
			name := filepath.Base(path)
			if seen[name] || c.skip(name) {
				continue
			}

			if _, ok := c.parsers[strings.ToLower(filepath.Ext(name))]; !ok {
				continue
			}

			info, err := os.Stat(path)
			if err != nil {
				c.log.WithError(err).WithField("source", name).Warn("Could not stat source")

				continue
			}

			if info.IsDir() {
				continue
			}

			seen[name] = true
			files = append(files, File{
				Name:    name,
				Path:    path,
				ModTime: info.ModTime(),
				Size:    info.Size(),
			})
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	return files, nil
}

// Matches reports whether a file name would be discovered as a source
func (c *Catalog) Matches(name string) bool {
	if c.skip(name) {
		return false
	}

	if _, ok := c.parsers[strings.ToLower(filepath.Ext(name))]; !ok {
		return false
	}

	for _, pattern := range c.cfg.Patterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}

	return false
}

// Dir returns the directory sources are discovered in
func (c *Catalog) Dir() string {
	return c.cfg.Dir
}

func (c *Catalog) skip(name string) bool {
	return name == c.cfg.ReportFile || strings.HasPrefix(name, "~$") || strings.HasPrefix(name, ".")
}

// Parse fully reads a source and projects it to the essential columns
func (c *Catalog) Parse(ctx context.Context, f File) ([]records.Record, error) {
	parser, ok := c.parsers[strings.ToLower(filepath.Ext(f.Name))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f.Name)
	}

	start := time.Now()

	recs, skipped, err := parser.Parse(ctx, f.Path, c.cfg.Columns)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", f.Name, err)
	}

	log := c.log.WithFields(logrus.Fields{
		"source":   f.Name,
		"rows":     len(recs),
		"duration": time.Since(start).String(),
	})

	if skipped > 0 {
		log.WithField("skipped", skipped).Warn("Skipped rows without a usable timestamp")
	} else {
		log.Debug("Parsed source")
	}

	return recs, nil
}
