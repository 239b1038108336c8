package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics must be global for registration
var (
	// CacheRebuildsTotal counts cache entry rebuild attempts
	CacheRebuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tlareport_cache_rebuilds_total",
			Help: "Total number of cache entry rebuilds",
		},
		[]string{"result"}, // result: rebuilt, empty, parse_error, write_error
	)

	// CacheRebuildDuration measures how long parsing and writing an entry takes
	CacheRebuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tlareport_cache_rebuild_duration_seconds",
			Help:    "Cache entry rebuild duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"result"},
	)

	// PoolUnitsTotal counts worker pool units by outcome
	PoolUnitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tlareport_pool_units_total",
			Help: "Total number of worker pool units processed",
		},
		[]string{"pool", "outcome"}, // outcome: ok, empty, error, skipped
	)

	// PoolUnitDuration measures unit execution time
	PoolUnitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tlareport_pool_unit_duration_seconds",
			Help:    "Worker pool unit duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		},
		[]string{"pool"},
	)

	// RecordsLoadedTotal counts records returned by the load paths
	RecordsLoadedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tlareport_records_loaded_total",
			Help: "Total number of records returned by windowed loads",
		},
		[]string{"path"}, // path: query, ingest
	)

	// SourceWarningsTotal counts sources excluded from a run
	SourceWarningsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tlareport_source_warnings_total",
			Help: "Total number of sources excluded from a run because of errors",
		},
		[]string{"stage"},
	)

	// RunsTotal counts report runs by outcome
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tlareport_runs_total",
			Help: "Total number of report runs",
		},
		[]string{"outcome"}, // outcome: ok, no_data, error
	)

	// RunDuration measures end-to-end report duration
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tlareport_run_duration_seconds",
			Help:    "Report run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~7m
		},
	)

	// ScheduledRunsTotal counts scheduler triggers by result
	ScheduledRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tlareport_scheduled_runs_total",
			Help: "Total number of scheduler triggered runs",
		},
		[]string{"trigger", "result"}, // trigger: cron, startup, catch_up, manual
	)

	// LastRunTimestamp records when the last run finished
	LastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tlareport_last_run_timestamp_seconds",
			Help: "Unix time the last report run finished",
		},
	)
)

// RecordCacheRebuild records a cache rebuild attempt
func RecordCacheRebuild(result string, duration time.Duration) {
	CacheRebuildsTotal.WithLabelValues(result).Inc()
	CacheRebuildDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// RecordPoolUnit records a finished worker pool unit
func RecordPoolUnit(pool, outcome string, duration time.Duration) {
	PoolUnitsTotal.WithLabelValues(pool, outcome).Inc()
	if outcome != "skipped" {
		PoolUnitDuration.WithLabelValues(pool).Observe(duration.Seconds())
	}
}

// RecordRecordsLoaded records the size of a loaded record set
func RecordRecordsLoaded(path string, count int) {
	RecordsLoadedTotal.WithLabelValues(path).Add(float64(count))
}

// RecordSourceWarning records a source excluded from a run
func RecordSourceWarning(stage string) {
	SourceWarningsTotal.WithLabelValues(stage).Inc()
}

// RecordRun records a finished report run
func RecordRun(outcome string, duration time.Duration) {
	RunsTotal.WithLabelValues(outcome).Inc()
	RunDuration.Observe(duration.Seconds())
	LastRunTimestamp.SetToCurrentTime()
}

// RecordScheduledRun records a run started by the scheduler
func RecordScheduledRun(trigger, result string) {
	ScheduledRunsTotal.WithLabelValues(trigger, result).Inc()
}
