package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethpandaops/tlareport/internal/testutil"
	"github.com/ethpandaops/tlareport/pkg/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScheduler struct {
	started atomic.Bool
	stopped atomic.Bool
	status  scheduler.Status
}

func (f *fakeScheduler) Start(context.Context) error {
	f.started.Store(true)
	return nil
}

func (f *fakeScheduler) Stop() error {
	f.stopped.Store(true)
	return nil
}

func (f *fakeScheduler) Status() scheduler.Status {
	return f.status
}

func TestConfigValidate(t *testing.T) {
	addr := ":9091"

	cfg := &Config{MetricsAddr: ":9091", HealthCheckAddr: &addr}
	require.ErrorIs(t, cfg.Validate(), ErrMetricsAddrConflict)

	other := ":8081"
	cfg.HealthCheckAddr = &other
	assert.NoError(t, cfg.Validate())
}

func TestStartStopsSchedulerOnCancel(t *testing.T) {
	sched := &fakeScheduler{}

	srv, err := NewServer(testutil.Logger(t), &Config{ShutdownTimeout: time.Second}, sched)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- srv.Start(ctx)
	}()

	require.Eventually(t, sched.started.Load, time.Second, 5*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}

	assert.True(t, sched.stopped.Load())
}

func TestHealthHandler(t *testing.T) {
	last := time.Date(2026, 3, 4, 7, 0, 0, 0, time.UTC)
	sched := &fakeScheduler{status: scheduler.Status{
		JobID:     "report",
		Cron:      "0 7 * * *",
		LastRun:   last,
		LastError: "no sources",
		NextRun:   last.Add(24 * time.Hour),
	}}

	srv, err := NewServer(testutil.Logger(t), &Config{}, sched)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.healthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got scheduler.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "report", got.JobID)
	assert.Equal(t, "no sources", got.LastError)
	assert.True(t, last.Equal(got.LastRun))
}

func TestStartRunsTasks(t *testing.T) {
	sched := &fakeScheduler{}

	srv, err := NewServer(testutil.Logger(t), &Config{ShutdownTimeout: time.Second}, sched)
	require.NoError(t, err)

	var ran atomic.Bool

	srv.AddTask("noop", func(ctx context.Context) error {
		ran.Store(true)
		<-ctx.Done()

		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- srv.Start(ctx)
	}()

	require.Eventually(t, ran.Load, time.Second, 5*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestStartStopsOnTaskFailure(t *testing.T) {
	sched := &fakeScheduler{}

	srv, err := NewServer(testutil.Logger(t), &Config{ShutdownTimeout: time.Second}, sched)
	require.NoError(t, err)

	boom := errors.New("watch failed")

	srv.AddTask("watcher", func(context.Context) error {
		return boom
	})

	err = srv.Start(context.Background())

	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "task watcher")
	assert.True(t, sched.stopped.Load())
}
