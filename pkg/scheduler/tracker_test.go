package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/ethpandaops/tlareport/internal/testutil"
	r "github.com/ethpandaops/tlareport/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackers(t *testing.T) {
	ctx := context.Background()

	trackers := map[string]func(t *testing.T) Tracker{
		"memory": func(_ *testing.T) Tracker {
			return NewMemoryTracker()
		},
		"redis": func(t *testing.T) Tracker {
			_, client := testutil.NewMiniredisClient(t)
			return NewRedisTracker(testutil.Logger(t), client, "")
		},
	}

	for name, build := range trackers {
		t.Run(name, func(t *testing.T) {
			tracker := build(t)

			t.Run("never run is zero", func(t *testing.T) {
				last, err := tracker.GetLastRun(ctx, "report")
				require.NoError(t, err)
				assert.True(t, last.IsZero())
			})

			t.Run("set then get", func(t *testing.T) {
				first := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
				second := first.Add(30 * time.Minute)

				require.NoError(t, tracker.SetLastRun(ctx, "report", first))
				require.NoError(t, tracker.SetLastRun(ctx, "report", second))

				last, err := tracker.GetLastRun(ctx, "report")
				require.NoError(t, err)
				assert.Equal(t, second.Unix(), last.Unix())
			})

			t.Run("jobs are independent", func(t *testing.T) {
				last, err := tracker.GetLastRun(ctx, "other")
				require.NoError(t, err)
				assert.True(t, last.IsZero())
			})
		})
	}
}

func TestRedisTrackerKeysAndCorruptValues(t *testing.T) {
	ctx := context.Background()
	mr, client := testutil.NewMiniredisClient(t)
	tracker := NewRedisTracker(testutil.Logger(t), client, "plant1")

	ts := time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)
	require.NoError(t, tracker.SetLastRun(ctx, "report", ts))

	stored, err := mr.Get("plant1:scheduler:job:report")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02T07:00:00Z", stored)

	require.NoError(t, mr.Set("plant1:scheduler:job:report", "yesterday-ish"))

	_, err = tracker.GetLastRun(ctx, "report")
	require.Error(t, err)
}

func TestNewTracker(t *testing.T) {
	log := testutil.Logger(t)

	tracker, err := NewTracker(log, r.Config{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryTracker{}, tracker)

	_, cfg := testutil.NewMiniredisConfig(t, "x")

	tracker, err = NewTracker(log, cfg)
	require.NoError(t, err)
	assert.IsType(t, &RedisTracker{}, tracker)
	assert.NoError(t, tracker.Close())

	_, err = NewTracker(log, r.Config{URL: "://bad"})
	require.Error(t, err)
}
