package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	r "github.com/ethpandaops/tlareport/pkg/redis"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Tracker records when each job last completed so missed runs can be caught up
type Tracker interface {
	// GetLastRun returns zero time if the job has never completed
	GetLastRun(ctx context.Context, jobID string) (time.Time, error)
	SetLastRun(ctx context.Context, jobID string, timestamp time.Time) error
	Close() error
}

// NewTracker returns a Redis tracker when a URL is configured, memory otherwise
func NewTracker(log logrus.FieldLogger, cfg r.Config) (Tracker, error) {
	if !cfg.Enabled() {
		return NewMemoryTracker(), nil
	}

	client, err := cfg.NewClient()
	if err != nil {
		return nil, err
	}

	return NewRedisTracker(log, client, cfg.Prefix), nil
}

// MemoryTracker keeps timestamps for the life of the process
type MemoryTracker struct {
	mu       sync.Mutex
	lastRuns map[string]time.Time
}

// NewMemoryTracker creates an empty in-process tracker
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{lastRuns: make(map[string]time.Time)}
}

// GetLastRun returns the recorded timestamp for a job
func (m *MemoryTracker) GetLastRun(_ context.Context, jobID string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.lastRuns[jobID], nil
}

// SetLastRun records a completion timestamp
func (m *MemoryTracker) SetLastRun(_ context.Context, jobID string, timestamp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastRuns[jobID] = timestamp

	return nil
}

// Close is a no-op
func (m *MemoryTracker) Close() error {
	return nil
}

// RedisTracker persists timestamps so a restarted scheduler knows what it missed
type RedisTracker struct {
	log       logrus.FieldLogger
	redis     *redis.Client
	keyPrefix string
}

// NewRedisTracker creates a tracker on top of an existing client.
// Keys follow {prefix}:scheduler:job:{jobID}.
func NewRedisTracker(log logrus.FieldLogger, client *redis.Client, prefix string) *RedisTracker {
	cfg := r.Config{Prefix: prefix}

	return &RedisTracker{
		log:       log.WithField("component", "schedule_tracker"),
		redis:     client,
		keyPrefix: cfg.PrefixKey("scheduler", "job"),
	}
}

// GetLastRun reads the RFC3339 timestamp stored for a job
func (t *RedisTracker) GetLastRun(ctx context.Context, jobID string) (time.Time, error) {
	val, err := t.redis.Get(ctx, t.keyPrefix+jobID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			t.log.WithField("job_id", jobID).Debug("No last run found for job")

			return time.Time{}, nil
		}

		return time.Time{}, fmt.Errorf("failed to get last run for job %s: %w", jobID, err)
	}

	timestamp, err := time.Parse(time.RFC3339, val)
	if err != nil {
		t.log.WithError(err).WithFields(logrus.Fields{
			"job_id":    jobID,
			"raw_value": val,
		}).Error("Failed to parse timestamp")

		return time.Time{}, fmt.Errorf("failed to parse timestamp for job %s: %w", jobID, err)
	}

	return timestamp, nil
}

// SetLastRun stores the timestamp with no TTL
func (t *RedisTracker) SetLastRun(ctx context.Context, jobID string, timestamp time.Time) error {
	if err := t.redis.Set(ctx, t.keyPrefix+jobID, timestamp.UTC().Format(time.RFC3339), 0).Err(); err != nil {
		return fmt.Errorf("failed to set last run for job %s: %w", jobID, err)
	}

	t.log.WithFields(logrus.Fields{
		"job_id":    jobID,
		"timestamp": timestamp,
	}).Debug("Updated last run for job")

	return nil
}

// Close releases the Redis client
func (t *RedisTracker) Close() error {
	if t.redis != nil {
		return t.redis.Close()
	}

	return nil
}

var (
	_ Tracker = (*MemoryTracker)(nil)
	_ Tracker = (*RedisTracker)(nil)
)
