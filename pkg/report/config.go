// Package report wires discovery, caching, querying, aggregation and the
// consumers into the end-to-end report run
package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/creasty/defaults"
	"github.com/ethpandaops/tlareport/pkg/aggregate"
	"github.com/ethpandaops/tlareport/pkg/cache"
	"github.com/ethpandaops/tlareport/pkg/ingest"
	"github.com/ethpandaops/tlareport/pkg/notify"
	"github.com/ethpandaops/tlareport/pkg/reference"
	"github.com/ethpandaops/tlareport/pkg/rendering"
	"github.com/ethpandaops/tlareport/pkg/scheduler"
	"github.com/ethpandaops/tlareport/pkg/server"
	"github.com/ethpandaops/tlareport/pkg/shift"
	"github.com/ethpandaops/tlareport/pkg/sources"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read when no path is given
const DefaultConfigFile = "tlareport.yaml"

var (
	// ErrInvalidSchedule is returned when the schedule selection is unknown
	ErrInvalidSchedule = errors.New("schedule select must be latest or all")
)

// Config represents the complete report configuration
type Config struct {
	Logging string `yaml:"logging" default:"info" validate:"oneof=panic fatal error warn info debug trace"`

	Sources     sources.Config   `yaml:"sources"`
	Cache       cache.Config     `yaml:"cache"`
	Ingest      ingest.Config    `yaml:"ingest"`
	Shifts      ShiftsConfig     `yaml:"shifts"`
	Aggregation aggregate.Config `yaml:"aggregation"`
	Reference   reference.Config `yaml:"reference"`
	Output      rendering.Config `yaml:"output"`
	Notify      notify.Config    `yaml:"notify"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Schedule    ScheduleConfig   `yaml:"schedule"`
}

// ShiftsConfig sets the change-over between the first and second shift
type ShiftsConfig struct {
	Boundary string `yaml:"boundary" default:"15:30:00"`
}

// MetricsConfig controls where one-shot run metrics go. The schedule mode
// serves them instead, see server.Config.
type MetricsConfig struct {
	// Textfile receives metrics after one-shot runs, for node-exporter
	Textfile string `yaml:"textfile"`
}

// ScheduleConfig controls recurring runs
type ScheduleConfig struct {
	scheduler.Config `yaml:",inline"`

	Server server.Config `yaml:"server"`
	// Watch refreshes the cache as soon as an export changes, so the next
	// run only scans
	Watch sources.WatchConfig `yaml:"watch"`

	// Select picks the report window of each run
	Select    string `yaml:"select" default:"latest" validate:"oneof=latest all"`
	TrendDays int    `yaml:"trendDays" validate:"min=0"`
	Notify    bool   `yaml:"notify" default:"true"`
}

// Validate checks if the schedule is valid
func (c *ScheduleConfig) Validate() error {
	if c.Select != "latest" && c.Select != "all" {
		return fmt.Errorf("%w: %q", ErrInvalidSchedule, c.Select)
	}

	if err := c.Server.Validate(); err != nil {
		return err
	}

	return c.Config.Validate()
}

// SetDefaults fills values that struct tags cannot express
func (c *Config) SetDefaults() {
	c.Sources.SetDefaults()

	// Never read our own workbook back in as a source
	if c.Output.Workbook != "" {
		c.Sources.ReportFile = filepath.Base(c.Output.Workbook)
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if _, err := shift.ParseBoundary(c.Shifts.Boundary); err != nil {
		return err
	}

	if err := c.Sources.Validate(); err != nil {
		return err
	}

	if err := c.Cache.Validate(); err != nil {
		return err
	}

	if err := c.Aggregation.Validate(); err != nil {
		return err
	}

	if err := c.Reference.Validate(); err != nil {
		return err
	}

	if err := c.Output.Validate(); err != nil {
		return err
	}

	return c.Schedule.Validate()
}

// ShiftBoundary returns the parsed shift change-over
func (c *Config) ShiftBoundary() (time.Duration, error) {
	return shift.ParseBoundary(c.Shifts.Boundary)
}

// LoadConfig reads a YAML configuration file on top of the defaults. A
// missing file is not an error; the defaults are used.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFile
	}

	config := &Config{}

	if err := defaults.Set(config); err != nil {
		return nil, err
	}

	yamlFile, err := os.ReadFile(path) //nolint:gosec // User-provided config file path
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	if err == nil {
		if err := yaml.Unmarshal(yamlFile, config); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	config.SetDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}
