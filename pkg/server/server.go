package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	//nolint:gosec // only exposed if pprofAddr config is set
	_ "net/http/pprof"

	"github.com/ethpandaops/tlareport/pkg/observability"
	"github.com/ethpandaops/tlareport/pkg/scheduler"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Scheduler is the part of scheduler.Service the server drives
type Scheduler interface {
	Start(ctx context.Context) error
	Stop() error
	Status() scheduler.Status
}

// Task is a background loop run alongside the scheduler. It must return
// once its context is done.
type Task func(ctx context.Context) error

// Server runs the scheduler until its context is cancelled
type Server struct {
	log    logrus.FieldLogger
	config *Config
	sched  Scheduler
	tasks  map[string]Task

	pprofServer  *http.Server
	healthServer *http.Server
}

// NewServer creates a new server instance
func NewServer(log logrus.FieldLogger, config *Config, sched Scheduler) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Server{
		log:    log.WithField("component", "server"),
		config: config,
		sched:  sched,
		tasks:  make(map[string]Task),
	}, nil
}

// AddTask registers a background loop. Must be called before Start.
func (s *Server) AddTask(name string, task Task) {
	s.tasks[name] = task
}

// Start starts the scheduler and the configured listeners, then blocks until
// ctx is done and everything has shut down
func (s *Server) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if s.config.MetricsAddr != "" {
		observability.StartMetricsServer(ctx, s.log, s.config.MetricsAddr)
	}

	if err := s.sched.Start(ctx); err != nil {
		return err
	}

	// Start pprof server if configured
	if s.config.PProfAddr != nil {
		s.pprofServer = &http.Server{
			Addr:              *s.config.PProfAddr,
			ReadHeaderTimeout: 120 * time.Second,
		}

		g.Go(func() error {
			s.log.WithField("addr", *s.config.PProfAddr).Info("Starting pprof server")

			return listen(s.pprofServer)
		})
	}

	// Start health check server if configured
	if s.config.HealthCheckAddr != nil {
		s.healthServer = &http.Server{
			Addr:              *s.config.HealthCheckAddr,
			ReadHeaderTimeout: 120 * time.Second,
			Handler:           s.healthHandler(),
		}

		g.Go(func() error {
			s.log.WithField("addr", *s.config.HealthCheckAddr).Info("Starting healthcheck server")

			return listen(s.healthServer)
		})
	}

	for name, task := range s.tasks {
		g.Go(func() error {
			s.log.WithField("task", name).Debug("Starting background task")

			if err := task(ctx); err != nil {
				return fmt.Errorf("task %s: %w", name, err)
			}

			return nil
		})
	}

	// Wait for shutdown signal
	g.Go(func() error {
		<-ctx.Done()

		// Use a fresh context for cleanup since the current one is canceled
		return s.stop(context.Background())
	})

	return g.Wait()
}

func listen(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) stop(ctx context.Context) error {
	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	cleanupCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.log.Info("Starting graceful shutdown...")

	err := s.sched.Stop()
	if err != nil {
		s.log.WithError(err).Error("failed to stop scheduler")
	}

	if s.pprofServer != nil {
		if serr := s.pprofServer.Shutdown(cleanupCtx); serr != nil {
			s.log.WithError(serr).Error("failed to shutdown pprof server")
		}
	}

	if s.healthServer != nil {
		if serr := s.healthServer.Shutdown(cleanupCtx); serr != nil {
			s.log.WithError(serr).Error("failed to shutdown health server")
		}
	}

	s.log.Info("Server stopped gracefully")

	return err
}

// healthHandler reports liveness plus the scheduler status. A failed report
// run does not make the process unhealthy.
func (s *Server) healthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		if err := json.NewEncoder(w).Encode(s.sched.Status()); err != nil {
			s.log.WithError(err).Debug("failed to write health response")
		}
	})
}
