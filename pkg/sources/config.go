// Package sources discovers and parses the raw tabular test outcome files
package sources

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	r "github.com/ethpandaops/tlareport/pkg/redis"
)

// Static errors for configuration validation
var (
	ErrDirRequired    = errors.New("sources dir is required")
	ErrInvalidPattern = errors.New("invalid source pattern")
)

// Config describes where sources live and how their columns are named
type Config struct {
	Dir        string        `yaml:"dir" default:"."`
	Patterns   []string      `yaml:"patterns"`
	ReportFile string        `yaml:"reportFile" default:"Daily_TLA_Report.xlsx"`
	Sheet      string        `yaml:"sheet"`
	Columns    Columns       `yaml:"columns"`
	Extents    ExtentsConfig `yaml:"extents"`
}

// Columns holds the source header names of the essential columns
type Columns struct {
	Timestamp  string `yaml:"timestamp" default:"StartDateTime" validate:"required"`
	Category   string `yaml:"category" default:"Syndrom" validate:"required"`
	Status     string `yaml:"status" default:"SyndromStatus" validate:"required"`
	DeviceType string `yaml:"deviceType" default:"UUT" validate:"required"`
	Serial     string `yaml:"serial" default:"SerialNumber" validate:"required"`
}

// ExtentsConfig configures memoisation of per-source timestamp extents
type ExtentsConfig struct {
	Size int           `yaml:"size" default:"256" validate:"min=1"`
	TTL  time.Duration `yaml:"ttl" default:"720h"`
	// Redis shares extents across runs and hosts when its URL is set
	Redis r.Config `yaml:"redis"`
}

// SetDefaults fills values that struct tags cannot express
func (c *Config) SetDefaults() {
	if len(c.Patterns) == 0 {
		c.Patterns = []string{"*.xlsx", "*.csv"}
	}

	if c.Columns == (Columns{}) {
		c.Columns = DefaultColumns()
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Dir == "" {
		return ErrDirRequired
	}

	for _, p := range c.Patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return fmt.Errorf("%w %q: %w", ErrInvalidPattern, p, err)
		}
	}

	return c.Extents.Redis.Validate()
}

// DefaultColumns returns the column names used by the test stations
func DefaultColumns() Columns {
	return Columns{
		Timestamp:  "StartDateTime",
		Category:   "Syndrom",
		Status:     "SyndromStatus",
		DeviceType: "UUT",
		Serial:     "SerialNumber",
	}
}

// Names returns the header names in projection order
func (c Columns) Names() []string {
	return []string{c.Timestamp, c.Category, c.Status, c.DeviceType, c.Serial}
}
