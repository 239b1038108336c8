package sources

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethpandaops/tlareport/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, dir string, debounce time.Duration) <-chan []string {
	t.Helper()

	changes := make(chan []string, 8)

	w := NewWatcher(testutil.Logger(t), newTestCatalog(t, dir), debounce, func(_ context.Context, names []string) {
		changes <- names
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- w.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	select {
	case <-w.Ready():
	case err := <-done:
		t.Fatalf("watcher exited early: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher not ready")
	}

	return changes
}

func TestWatcher_CoalescesBurst(t *testing.T) {
	dir := t.TempDir()
	changes := startWatcher(t, dir, 100*time.Millisecond)

	testutil.WriteCSV(t, dir, "line2.csv", sample())
	testutil.WriteCSV(t, dir, "line1.csv", sample())

	select {
	case names := <-changes:
		assert.Equal(t, []string{"line1.csv", "line2.csv"}, names)
	case <-time.After(3 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestWatcher_IgnoresNonSources(t *testing.T) {
	dir := t.TempDir()
	changes := startWatcher(t, dir, 50*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "~$line1.xlsx"), []byte("lock"), 0o600))
	testutil.WriteXLSX(t, dir, "Daily_TLA_Report.xlsx", sample())

	select {
	case names := <-changes:
		t.Fatalf("unexpected change: %v", names)
	case <-time.After(300 * time.Millisecond):
	}

	testutil.WriteCSV(t, dir, "line1.csv", sample())

	select {
	case names := <-changes:
		assert.Equal(t, []string{"line1.csv"}, names)
	case <-time.After(3 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w := NewWatcher(testutil.Logger(t), newTestCatalog(t, filepath.Join(t.TempDir(), "missing")), 0, func(context.Context, []string) {})

	err := w.Run(context.Background())

	assert.ErrorContains(t, err, "failed to watch")
}
