// Package scheduler runs the report batch on a cron timer
package scheduler

import (
	"errors"
	"fmt"
	"time"

	r "github.com/ethpandaops/tlareport/pkg/redis"
	"github.com/robfig/cron/v3"
)

var (
	// ErrInvalidCron is returned when the cron expression cannot be parsed
	ErrInvalidCron = errors.New("invalid cron expression")
	// ErrInvalidRunTimeout is returned when the run timeout is negative
	ErrInvalidRunTimeout = errors.New("run timeout must not be negative")
)

// Parser accepts standard five-field expressions and descriptors like @daily
var Parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Config defines scheduler configuration
type Config struct {
	Cron            string        `yaml:"cron" default:"0 7 * * *"`
	RunOnStart      bool          `yaml:"runOnStart"`
	CatchUp         bool          `yaml:"catchUp" default:"true"`
	RunTimeout      time.Duration `yaml:"runTimeout" default:"30m"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"10s"`
	// Tracker keeps last-run timestamps in Redis. Without a URL they live in
	// memory for the life of the process.
	Tracker r.Config `yaml:"tracker"`
}

// Validate checks if the scheduler configuration is valid
func (c *Config) Validate() error {
	if _, err := Parser.Parse(c.Cron); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidCron, c.Cron, err)
	}

	if c.RunTimeout < 0 {
		return ErrInvalidRunTimeout
	}

	return c.Tracker.Validate()
}
