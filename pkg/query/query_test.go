package query

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethpandaops/tlareport/internal/testutil"
	"github.com/ethpandaops/tlareport/pkg/cache"
	"github.com/ethpandaops/tlareport/pkg/pool"
	"github.com/ethpandaops/tlareport/pkg/records"
	"github.com/ethpandaops/tlareport/pkg/sources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	srcDir   string
	cacheDir string
	catalog  *sources.Catalog
	cache    *cache.Manager
	engine   *Engine
}

func newFixture(t *testing.T, enabled bool) *fixture {
	t.Helper()

	root := t.TempDir()
	srcDir := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))

	log := testutil.Logger(t)

	catalog, err := sources.NewCatalog(log, &sources.Config{Dir: srcDir}, nil)
	require.NoError(t, err)

	cacheDir := filepath.Join(root, "_parquet_cache")

	manager, err := cache.NewManager(log, &cache.Config{
		Enabled:     enabled,
		Dir:         cacheDir,
		Compression: "snappy",
	}, catalog)
	require.NoError(t, err)

	return &fixture{
		srcDir:   srcDir,
		cacheDir: cacheDir,
		catalog:  catalog,
		cache:    manager,
		engine:   NewEngine(log, manager, catalog, pool.Config{Workers: 2}),
	}
}

func (fx *fixture) discover(t *testing.T) []sources.File {
	t.Helper()

	files, err := fx.catalog.Discover()
	require.NoError(t, err)

	return files
}

func window(t *testing.T, start, end string) records.Window {
	t.Helper()

	w, err := records.NewWindow(testutil.Date(start+" 00:00:00"), testutil.Date(end+" 00:00:00"))
	require.NoError(t, err)

	return w
}

func TestQuery_EndToEnd(t *testing.T) {
	fx := newFixture(t, true)

	// 120 rows across 2024-01-01..02, 80 rows across 2024-02-01..02
	testutil.WriteXLSX(t, fx.srcDir, "january.xlsx", testutil.Generate(testutil.Date("2024-01-01 00:00:00"), 120, 20*time.Minute, "Open", 3))
	testutil.WriteCSV(t, fx.srcDir, "february.csv", testutil.Generate(testutil.Date("2024-02-01 00:00:00"), 80, 30*time.Minute, "Short", 4))

	files := fx.discover(t)
	ctx := context.Background()

	extents, errs := fx.catalog.Extents(ctx, files)
	require.Empty(t, errs)

	minTS, maxTS, ok := sources.Span(extents)
	require.True(t, ok)

	all, err := records.NewWindow(minTS, maxTS)
	require.NoError(t, err)

	result, err := fx.engine.Query(ctx, all, files)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Len(t, result.Records, 200)
	assert.Len(t, result.Refresh.Rebuilt, 2)

	result, err = fx.engine.Query(ctx, window(t, "2024-02-01", "2024-02-28"), files)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Len(t, result.Records, 80)
	assert.Equal(t, []string{"january.xlsx"}, result.Pruned)
	assert.Equal(t, []string{"february.csv"}, result.Scanned)
	assert.Len(t, result.Refresh.Fresh, 2)
	assert.Empty(t, result.Refresh.Rebuilt)
}

func TestQuery_WindowBounds(t *testing.T) {
	fx := newFixture(t, true)

	at := func(s string) time.Time {
		ts, err := time.Parse(testutil.TimestampLayout, s)
		require.NoError(t, err)

		return ts
	}

	recs := []records.Record{
		{Timestamp: at("2024-05-09 23:59:59.999999"), Category: "X", Status: "FAIL", DeviceType: "U", Serial: "1"},
		{Timestamp: at("2024-05-10 00:00:00.000000"), Category: "X", Status: "FAIL", DeviceType: "U", Serial: "2"},
		{Timestamp: at("2024-05-11 12:00:00.000000"), Status: "PASS", DeviceType: "U", Serial: "3"},
		{Timestamp: at("2024-05-11 23:59:59.999999"), Category: "X", Status: "FAIL", DeviceType: "U", Serial: "4"},
		{Timestamp: at("2024-05-12 00:00:00.000000"), Category: "X", Status: "FAIL", DeviceType: "U", Serial: "5"},
	}
	testutil.WriteCSV(t, fx.srcDir, "edges.csv", recs)

	result, err := fx.engine.Query(context.Background(), window(t, "2024-05-10", "2024-05-11"), fx.discover(t))
	require.NoError(t, err)
	require.NotNil(t, result)

	serials := make([]string, 0, len(result.Records))
	for _, r := range result.Records {
		serials = append(serials, r.Serial)
	}

	assert.ElementsMatch(t, []string{"2", "3", "4"}, serials)
}

func TestQuery_NoData(t *testing.T) {
	fx := newFixture(t, true)

	testutil.WriteCSV(t, fx.srcDir, "a.csv", testutil.Generate(testutil.Date("2024-01-01 08:00:00"), 10, time.Minute, "Open", 2))

	result, err := fx.engine.Query(context.Background(), window(t, "2025-01-01", "2025-01-31"), fx.discover(t))
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestQuery_SkipsEmptyAndReportsBrokenSources(t *testing.T) {
	fx := newFixture(t, true)

	testutil.WriteCSV(t, fx.srcDir, "a.csv", testutil.Generate(testutil.Date("2024-01-01 08:00:00"), 10, time.Minute, "Open", 2))
	testutil.WriteCSV(t, fx.srcDir, "empty.csv", nil)
	require.NoError(t, os.WriteFile(filepath.Join(fx.srcDir, "broken.csv"), []byte("nope\n1\n"), 0o600))

	result, err := fx.engine.Query(context.Background(), window(t, "2024-01-01", "2024-01-01"), fx.discover(t))
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Len(t, result.Records, 10)
	assert.Equal(t, []string{"empty.csv"}, result.Refresh.Empty)
	assert.Contains(t, result.Refresh.Failed, "broken.csv")
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "broken.csv", result.Warnings[0].Source)
	assert.ErrorIs(t, result.Warnings[0], sources.ErrMissingColumn)
}

func TestQuery_CacheDisabledParsesRaw(t *testing.T) {
	fx := newFixture(t, false)

	testutil.WriteCSV(t, fx.srcDir, "a.csv", testutil.Generate(testutil.Date("2024-01-01 08:00:00"), 10, time.Minute, "Open", 2))
	testutil.WriteCSV(t, fx.srcDir, "b.csv", testutil.Generate(testutil.Date("2024-01-01 09:00:00"), 7, time.Minute, "Open", 2))

	result, err := fx.engine.Query(context.Background(), window(t, "2024-01-01", "2024-01-01"), fx.discover(t))
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Len(t, result.Records, 17)
	assert.ElementsMatch(t, []string{"a.csv", "b.csv"}, result.Parsed)
	assert.Empty(t, result.Scanned)
}

func TestQuery_ParsesSourceWhoseEntryCannotBeWritten(t *testing.T) {
	fx := newFixture(t, true)

	testutil.WriteCSV(t, fx.srcDir, "a.csv", testutil.Generate(testutil.Date("2024-01-01 08:00:00"), 10, time.Minute, "Open", 2))
	testutil.WriteCSV(t, fx.srcDir, "blocked.csv", testutil.Generate(testutil.Date("2024-01-01 09:00:00"), 7, time.Minute, "Open", 2))

	// A directory squatting on the entry path makes the write fail.
	require.NoError(t, os.MkdirAll(filepath.Join(fx.cacheDir, "blocked.csv.parquet"), 0o755))

	files := fx.discover(t)

	result, err := fx.engine.Query(context.Background(), window(t, "2024-01-01", "2024-01-01"), files)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Len(t, result.Records, 17)
	assert.Equal(t, []string{"a.csv"}, result.Scanned)
	assert.Equal(t, []string{"blocked.csv"}, result.Parsed)
	assert.Contains(t, result.Refresh.Failed, "blocked.csv")
	assert.Empty(t, result.Warnings)

	for _, st := range fx.cache.Status(files) {
		if st.Source.Name == "blocked.csv" {
			assert.Equal(t, cache.StateUncached, st.State)
		}
	}
}
