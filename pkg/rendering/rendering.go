// Package rendering hands a finished report to its consumers: a text
// summary, a plain workbook and a YAML or JSON artifact
package rendering

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethpandaops/tlareport/pkg/aggregate"
	"github.com/ethpandaops/tlareport/pkg/records"
	"github.com/ethpandaops/tlareport/pkg/reference"
)

var (
	// ErrInvalidFormat is returned for an unknown artifact format
	ErrInvalidFormat = errors.New("artifact format must be yaml or json")
	// ErrNoReport is returned when a renderer is given no report
	ErrNoReport = errors.New("no report to render")
)

// Config selects which outputs are written
type Config struct {
	Workbook        string `yaml:"workbook" default:"Daily_TLA_Report.xlsx"`
	Artifact        string `yaml:"artifact"`
	Format          string `yaml:"format" default:"yaml" validate:"oneof=yaml json"`
	SummaryTemplate string `yaml:"summaryTemplate"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Format != FormatYAML && c.Format != FormatJSON {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, c.Format)
	}

	return nil
}

// Report is everything a consumer receives about one run
type Report struct {
	RunID       string            `json:"run_id" yaml:"run_id"`
	GeneratedAt time.Time         `json:"generated_at" yaml:"generated_at"`
	Window      records.Window    `json:"window" yaml:"window"`
	TrendWindow *records.Window   `json:"trend_window,omitempty" yaml:"trend_window,omitempty"`
	Path        string            `json:"path" yaml:"path"`
	Sources     []string          `json:"sources" yaml:"sources"`
	Warnings    []string          `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Result      *aggregate.Result `json:"result" yaml:"result"`
	References  []reference.Info  `json:"references,omitempty" yaml:"references,omitempty"`
}

// Renderer consumes a report
type Renderer interface {
	Name() string
	Render(ctx context.Context, r *Report) error
}

// RenderAll runs every renderer, continuing past failures
func RenderAll(ctx context.Context, r *Report, renderers ...Renderer) error {
	var errs []error

	for _, renderer := range renderers {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := renderer.Render(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", renderer.Name(), err))
		}
	}

	return errors.Join(errs...)
}
