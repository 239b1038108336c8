// Package reference looks up the per-category reference material: a golden
// image, a defect image and a free-text description.
package reference

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// File names inside a category folder
const (
	GoldenImage = "golden.jpg"
	DefectImage = "defect.jpg"
	Description = "description.txt"
)

var (
	// ErrDirRequired is returned when no database directory is configured
	ErrDirRequired = errors.New("reference dir is required")
)

// Config locates the reference database
type Config struct {
	Dir string `yaml:"dir" default:"SyndromDB"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Dir == "" {
		return ErrDirRequired
	}

	return nil
}

// Info is the reference material found for a category. Missing pieces are empty.
type Info struct {
	Category    string `json:"category" yaml:"category"`
	Folder      string `json:"folder,omitempty" yaml:"folder,omitempty"`
	GoldenImage string `json:"golden_image,omitempty" yaml:"golden_image,omitempty"`
	DefectImage string `json:"defect_image,omitempty" yaml:"defect_image,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Found reports whether a folder exists for the category
func (i Info) Found() bool {
	return i.Folder != ""
}

// DB is a directory of category folders
type DB struct {
	dir string
}

// New creates a lookup over dir
func New(cfg *Config) *DB {
	return &DB{dir: cfg.Dir}
}

//nolint:gochecknoglobals // fixed replacement table
var sanitizer = strings.NewReplacer(
	"/", "-",
	`\`, "-",
	":", "-",
	"*", "-",
	"?", "-",
	`"`, "-",
	"<", "-",
	">", "-",
	"|", "-",
)

// Sanitize maps a category to a folder-safe name by replacing the characters
// not allowed in Windows folder names with "-"
func Sanitize(category string) string {
	return sanitizer.Replace(category)
}

// Lookup finds the folder for category, trying the exact name first and the
// sanitised name second
func (d *DB) Lookup(category string) (Info, error) {
	info := Info{Category: category}

	folder, ok := d.folder(category)
	if !ok {
		return info, nil
	}

	info.Folder = folder
	info.GoldenImage = existing(filepath.Join(folder, GoldenImage))
	info.DefectImage = existing(filepath.Join(folder, DefectImage))

	desc, err := os.ReadFile(filepath.Join(folder, Description)) //nolint:gosec // path within the reference dir
	switch {
	case err == nil:
		info.Description = strings.TrimSpace(string(desc))
	case !errors.Is(err, os.ErrNotExist):
		return info, fmt.Errorf("failed to read description for %q: %w", category, err)
	}

	return info, nil
}

// LookupAll looks up each category in order. A category that fails keeps
// whatever was found for it; the failures are joined into the error.
func (d *DB) LookupAll(categories []string) ([]Info, error) {
	out := make([]Info, 0, len(categories))

	var errs []error

	for _, c := range categories {
		info, err := d.Lookup(c)
		if err != nil {
			errs = append(errs, err)
		}

		out = append(out, info)
	}

	return out, errors.Join(errs...)
}

func (d *DB) folder(category string) (string, bool) {
	candidates := []string{category, Sanitize(category)}

	for _, name := range candidates {
		if !safeName(name) {
			continue
		}

		path := filepath.Join(d.dir, name)
		if fi, err := os.Stat(path); err == nil && fi.IsDir() {
			return path, true
		}
	}

	return "", false
}

// safeName rejects names that would escape the database directory
func safeName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}

	return !strings.ContainsAny(name, `/\`)
}

func existing(path string) string {
	if fi, err := os.Stat(path); err == nil && !fi.IsDir() {
		return path
	}

	return ""
}
