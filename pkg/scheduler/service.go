package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethpandaops/tlareport/pkg/observability"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Run triggers
const (
	TriggerCron    = "cron"
	TriggerStartup = "startup"
	TriggerCatchUp = "catch_up"
	TriggerManual  = "manual"
)

var (
	// ErrAlreadyStarted is returned when Start is called twice
	ErrAlreadyStarted = errors.New("scheduler already started")
	// ErrShutdownTimeout is returned when a run outlives the shutdown timeout
	ErrShutdownTimeout = errors.New("timed out waiting for running job")
	// ErrRunSkipped is returned by RunNow while another run is in progress
	ErrRunSkipped = errors.New("previous run still in progress")
)

// Job is the unit of work the scheduler triggers
type Job func(ctx context.Context) error

// Status is a snapshot of the scheduler for health reporting
type Status struct {
	JobID     string    `json:"job_id"`
	Cron      string    `json:"cron"`
	Running   bool      `json:"running"`
	LastRun   time.Time `json:"last_run"`
	LastError string    `json:"last_error,omitempty"`
	NextRun   time.Time `json:"next_run"`
}

// Service triggers a single job on a cron schedule. Runs never overlap: a
// trigger that fires while the job is still running is skipped.
type Service struct {
	log      logrus.FieldLogger
	cfg      Config
	jobID    string
	job      Job
	tracker  Tracker
	schedule cron.Schedule
	now      func() time.Time

	running sync.Mutex
	wg      sync.WaitGroup

	mu      sync.Mutex
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	active  bool
	lastRun time.Time
	lastErr error
}

// NewService creates a scheduler for job. The tracker is closed by Stop.
func NewService(log logrus.FieldLogger, cfg Config, tracker Tracker, jobID string, job Job) (*Service, error) {
	schedule, err := Parser.Parse(cfg.Cron)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidCron, cfg.Cron, err)
	}

	if tracker == nil {
		tracker = NewMemoryTracker()
	}

	return &Service{
		log:      log.WithField("component", "scheduler"),
		cfg:      cfg,
		jobID:    jobID,
		job:      job,
		tracker:  tracker,
		schedule: schedule,
		now:      time.Now,
		ctx:      context.Background(),
	}, nil
}

// Start registers the cron entry and returns immediately. Depending on config
// it also kicks off a startup run, or a catch-up run when the last recorded
// completion is older than the most recent scheduled time.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return ErrAlreadyStarted
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	logger := newCronLogger(s.log)
	s.cron = cron.New(
		cron.WithParser(Parser),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger)),
	)
	s.cron.Schedule(s.schedule, cron.FuncJob(func() {
		_ = s.execute(TriggerCron)
	}))

	trigger, err := s.initialTrigger(ctx)
	if err != nil {
		s.log.WithError(err).Warn("Failed to check for missed runs")
	}

	if trigger != "" {
		s.wg.Add(1)

		go func() {
			defer s.wg.Done()

			_ = s.execute(trigger)
		}()
	}

	s.cron.Start()

	s.log.WithFields(logrus.Fields{
		"cron":     s.cfg.Cron,
		"job_id":   s.jobID,
		"next_run": s.Next(s.now()),
	}).Info("Scheduler started")

	return nil
}

// Stop waits for an in-flight run, bounded by the shutdown timeout, then
// releases the tracker
func (s *Service) Stop() error {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.mu.Unlock()

	if c == nil {
		return s.tracker.Close()
	}

	done := make(chan struct{})

	go func() {
		<-c.Stop().Done()
		s.wg.Wait()
		close(done)
	}()

	var err error

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	select {
	case <-done:
	case <-time.After(timeout):
		err = ErrShutdownTimeout
	}

	cancel()

	if cerr := s.tracker.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}

	s.log.Info("Scheduler stopped")

	return err
}

// Next returns the first scheduled time after from
func (s *Service) Next(from time.Time) time.Time {
	return s.schedule.Next(from)
}

// Missed reports whether a scheduled time passed since the last recorded
// completion. A job that has never completed has missed nothing.
func (s *Service) Missed(ctx context.Context, now time.Time) (bool, error) {
	last, err := s.tracker.GetLastRun(ctx, s.jobID)
	if err != nil {
		return false, err
	}

	if last.IsZero() {
		return false, nil
	}

	return !s.schedule.Next(last).After(now), nil
}

// Status returns the current state of the scheduler
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		JobID:   s.jobID,
		Cron:    s.cfg.Cron,
		Running: s.active,
		LastRun: s.lastRun,
		NextRun: s.Next(s.now()),
	}

	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}

	return st
}

// RunNow runs the job synchronously unless a run is already in progress
func (s *Service) RunNow() error {
	return s.execute(TriggerManual)
}

func (s *Service) initialTrigger(ctx context.Context) (string, error) {
	if s.cfg.RunOnStart {
		return TriggerStartup, nil
	}

	if !s.cfg.CatchUp {
		return "", nil
	}

	missed, err := s.Missed(ctx, s.now())
	if err != nil || !missed {
		return "", err
	}

	return TriggerCatchUp, nil
}

func (s *Service) execute(trigger string) error {
	log := s.log.WithFields(logrus.Fields{
		"job_id":  s.jobID,
		"trigger": trigger,
	})

	if !s.running.TryLock() {
		log.Warn("Skipping run, previous run still in progress")
		observability.RecordScheduledRun(trigger, "skipped")

		return ErrRunSkipped
	}
	defer s.running.Unlock()

	s.mu.Lock()
	ctx := s.ctx
	s.active = true
	s.mu.Unlock()

	var err error

	defer func() {
		s.mu.Lock()
		s.active = false
		s.lastRun = s.now()
		s.lastErr = err
		s.mu.Unlock()
	}()

	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}

	start := s.now()

	log.Info("Starting scheduled run")

	if err = s.job(ctx); err != nil {
		log.WithError(err).WithField("duration", s.now().Sub(start)).Error("Scheduled run failed")
		observability.RecordScheduledRun(trigger, "error")

		return err
	}

	observability.RecordScheduledRun(trigger, "ok")

	if terr := s.tracker.SetLastRun(context.WithoutCancel(ctx), s.jobID, s.now()); terr != nil {
		log.WithError(terr).Warn("Failed to record last run")
	}

	log.WithFields(logrus.Fields{
		"duration": s.now().Sub(start),
		"next_run": s.Next(s.now()),
	}).Info("Scheduled run completed")

	return nil
}
