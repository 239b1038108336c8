package pool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethpandaops/tlareport/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Size(t *testing.T) {
	assert.Equal(t, 7, Config{Workers: 7}.Size())
	assert.Equal(t, min(4, runtime.NumCPU()), Config{}.Size())
}

func TestRun_IsolatesFailures(t *testing.T) {
	p := New(testutil.Logger(t), "test", Config{Workers: 2})
	boom := errors.New("boom")

	units := make([]Unit[int], 0, 6)
	for i := 0; i < 6; i++ {
		units = append(units, Unit[int]{
			ID: fmt.Sprintf("u%d", i),
			Run: func(context.Context) (int, error) {
				if i%3 == 0 {
					return 0, boom
				}

				return i * 10, nil
			},
		})
	}

	outcomes := Collect(Run(context.Background(), p, units))
	require.Len(t, outcomes, 6)

	byID := make(map[string]Outcome[int])
	for _, o := range outcomes {
		byID[o.ID] = o
	}

	assert.ErrorIs(t, byID["u0"].Err, boom)
	assert.ErrorIs(t, byID["u3"].Err, boom)
	assert.True(t, byID["u1"].OK())
	assert.Equal(t, 50, byID["u5"].Value)
}

func TestRun_BoundsConcurrency(t *testing.T) {
	p := New(testutil.Logger(t), "test", Config{Workers: 3})

	var running, peak atomic.Int32

	units := make([]Unit[struct{}], 12)
	for i := range units {
		units[i] = Unit[struct{}]{
			ID: fmt.Sprintf("u%d", i),
			Run: func(context.Context) (struct{}, error) {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)

				return struct{}{}, nil
			},
		}
	}

	outcomes := Collect(Run(context.Background(), p, units))
	assert.Len(t, outcomes, 12)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestRun_CancelStopsDispatch(t *testing.T) {
	p := New(testutil.Logger(t), "test", Config{Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	units := []Unit[string]{
		{ID: "first", Run: func(context.Context) (string, error) {
			cancel()

			return "done", nil
		}},
		{ID: "second", Run: func(context.Context) (string, error) { return "never", nil }},
		{ID: "third", Run: func(context.Context) (string, error) { return "never", nil }},
	}

	outcomes := Collect(Run(ctx, p, units))
	require.Len(t, outcomes, 3)

	byID := make(map[string]Outcome[string])
	for _, o := range outcomes {
		byID[o.ID] = o
	}

	assert.Equal(t, "done", byID["first"].Value)
	assert.True(t, byID["first"].OK())
	assert.True(t, byID["third"].Skipped)
	assert.ErrorIs(t, byID["third"].Err, ErrNotDispatched)
	assert.ErrorIs(t, byID["third"].Err, context.Canceled)
}

func TestRun_UnitTimeoutAndPanic(t *testing.T) {
	p := New(testutil.Logger(t), "test", Config{Workers: 2, UnitTimeout: 10 * time.Millisecond})

	units := []Unit[int]{
		{ID: "slow", Run: func(ctx context.Context) (int, error) {
			<-ctx.Done()

			return 0, ctx.Err()
		}},
		{ID: "panics", Run: func(context.Context) (int, error) {
			panic("bad row")
		}},
		{ID: "fine", Run: func(context.Context) (int, error) { return 1, nil }},
	}

	byID := make(map[string]Outcome[int])
	for _, o := range Collect(Run(context.Background(), p, units)) {
		byID[o.ID] = o
	}

	assert.ErrorIs(t, byID["slow"].Err, context.DeadlineExceeded)
	assert.ErrorIs(t, byID["panics"].Err, ErrPanic)
	assert.Equal(t, 1, byID["fine"].Value)
}
