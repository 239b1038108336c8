// Package pool runs independent units of work on a bounded set of workers.
// A failing unit never cancels its siblings; cancelling the context stops
// further dispatch while units already running finish and are reported.
package pool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/ethpandaops/tlareport/pkg/observability"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// MaxDefaultWorkers caps the automatic worker count
const MaxDefaultWorkers = 4

var (
	// ErrNotDispatched marks units skipped because the context was done before they started
	ErrNotDispatched = errors.New("unit not dispatched")
	// ErrPanic wraps a panic raised inside a unit
	ErrPanic = errors.New("unit panicked")
)

// Config bounds the pool
type Config struct {
	Workers     int           `yaml:"workers" validate:"min=0"`
	UnitTimeout time.Duration `yaml:"unitTimeout"`
}

// Size returns the worker count: the configured value, or min(4, NumCPU)
func (c Config) Size() int {
	if c.Workers > 0 {
		return c.Workers
	}

	return min(MaxDefaultWorkers, runtime.NumCPU())
}

// Unit is one independent piece of work identified by ID
type Unit[T any] struct {
	ID  string
	Run func(ctx context.Context) (T, error)
}

// Outcome is the tagged result of a unit: Value on success, Err otherwise
type Outcome[T any] struct {
	ID       string
	Value    T
	Err      error
	Skipped  bool
	Duration time.Duration
}

// OK reports whether the unit succeeded
func (o Outcome[T]) OK() bool {
	return o.Err == nil
}

// Pool is a named, bounded executor
type Pool struct {
	log  logrus.FieldLogger
	name string
	cfg  Config
}

// New creates a pool; name labels its logs and metrics
func New(log logrus.FieldLogger, name string, cfg Config) *Pool {
	return &Pool{
		log:  log.WithFields(logrus.Fields{"component": "pool", "pool": name}),
		name: name,
		cfg:  cfg,
	}
}

// Size returns the number of workers
func (p *Pool) Size() int {
	return p.cfg.Size()
}

// Run dispatches units and streams one outcome per unit. The channel is
// closed once every dispatched unit has finished. Outcome order is unspecified.
func Run[T any](ctx context.Context, p *Pool, units []Unit[T]) <-chan Outcome[T] {
	out := make(chan Outcome[T], len(units))

	go func() {
		defer close(out)

		var g errgroup.Group
		g.SetLimit(p.Size())

		for _, u := range units {
			// g.Go blocks while all workers are busy, so this check runs
			// between dispatches.
			if err := ctx.Err(); err != nil {
				observability.RecordPoolUnit(p.name, "skipped", 0)
				out <- Outcome[T]{ID: u.ID, Err: fmt.Errorf("%w: %w", ErrNotDispatched, err), Skipped: true}

				continue
			}

			g.Go(func() error {
				out <- execute(ctx, p, u)

				return nil
			})
		}

		_ = g.Wait()
	}()

	return out
}

// Collect drains an outcome channel
func Collect[T any](ch <-chan Outcome[T]) []Outcome[T] {
	var outcomes []Outcome[T]
	for o := range ch {
		outcomes = append(outcomes, o)
	}

	return outcomes
}

func execute[T any](ctx context.Context, p *Pool, u Unit[T]) (o Outcome[T]) {
	o.ID = u.ID
	start := time.Now()

	unitCtx := ctx
	if p.cfg.UnitTimeout > 0 {
		var cancel context.CancelFunc
		unitCtx, cancel = context.WithTimeout(ctx, p.cfg.UnitTimeout)
		defer cancel()
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			p.log.WithField("unit", u.ID).WithField("panic", recovered).Error("Panic in pool unit")
			o.Err = fmt.Errorf("%w: %v", ErrPanic, recovered)
		}

		o.Duration = time.Since(start)

		result := "ok"
		if o.Err != nil {
			result = "error"
		}
		observability.RecordPoolUnit(p.name, result, o.Duration)
	}()

	o.Value, o.Err = u.Run(unitCtx)

	return o
}
