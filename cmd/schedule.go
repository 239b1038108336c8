package cmd

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethpandaops/tlareport/pkg/report"
	"github.com/ethpandaops/tlareport/pkg/scheduler"
	"github.com/ethpandaops/tlareport/pkg/selection"
	"github.com/ethpandaops/tlareport/pkg/server"
	"github.com/ethpandaops/tlareport/pkg/sources"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// scheduleCmd represents the schedule command
//
//nolint:gochecknoglobals // Cobra commands are typically global
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the report on a cron schedule",
	Long: `Run the report batch on the configured cron schedule until interrupted.
Each run reports on the window picked by schedule.select, adds a trend over
schedule.trendDays when set, and notifies the recipient list when
schedule.notify is true. Metrics are served on schedule.server.metricsAddr,
scheduler status on schedule.server.healthCheckAddr when set.`,
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	// Silence usage on error
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	svc, cfg, err := newService(cmd)
	if err != nil {
		return err
	}
	defer closeService(svc)

	tracker, err := scheduler.NewTracker(logger, cfg.Schedule.Tracker)
	if err != nil {
		return err
	}

	// Cache refreshes from the watcher never overlap a run
	var mu sync.Mutex

	sched, err := scheduler.NewService(logger, cfg.Schedule.Config, tracker, "report", scheduledRun(&mu, svc, &cfg.Schedule))
	if err != nil {
		return err
	}

	srv, err := server.NewServer(logger, &cfg.Schedule.Server, sched)
	if err != nil {
		return err
	}

	if cfg.Schedule.Watch.Enabled {
		watcher := sources.NewWatcher(logger, svc.Catalog(), cfg.Schedule.Watch.Debounce, refreshOnChange(&mu, svc))
		srv.AddTask("source_watcher", watcher.Run)
	}

	// Blocks until interrupted, then shuts down gracefully
	return srv.Start(cmd.Context())
}

// refreshOnChange rebuilds the cache entries of changed sources
func refreshOnChange(mu *sync.Mutex, svc *report.Service) sources.ChangeFunc {
	return func(ctx context.Context, names []string) {
		mu.Lock()
		defer mu.Unlock()

		log := logger.WithField("changed", names)

		res, err := svc.Refresh(ctx)
		if err != nil {
			log.WithError(err).Warn("Failed to refresh cache after source change")

			return
		}

		log.WithFields(logrus.Fields{
			"rebuilt": len(res.Rebuilt),
			"failed":  len(res.Failed),
		}).Info("Cache refreshed after source change")
	}
}

// scheduledRun builds the job the scheduler triggers
func scheduledRun(mu *sync.Mutex, svc *report.Service, cfg *report.ScheduleConfig) scheduler.Job {
	return func(ctx context.Context) error {
		mu.Lock()
		defer mu.Unlock()

		extents, err := svc.Extents(ctx)
		if errors.Is(err, report.ErrNoSources) {
			logger.Warn("No source files with date data found, skipping run")

			return nil
		}

		if err != nil {
			return err
		}

		opts := &selection.Options{
			Latest:    cfg.Select == "latest",
			All:       cfg.Select == "all",
			TrendDays: cfg.TrendDays,
		}

		window, err := selection.Resolve(opts, extents, time.Now())
		if err != nil {
			return err
		}

		trend, err := selection.ResolveTrend(opts, window, time.Now())
		if err != nil {
			return err
		}

		_, err = svc.Run(ctx, report.Request{
			Window: window,
			Trend:  trend,
			Notify: cfg.Notify,
		})

		return err
	}
}
