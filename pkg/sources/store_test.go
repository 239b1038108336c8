package sources

import (
	"context"
	"testing"
	"time"

	"github.com/ethpandaops/tlareport/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryExtentStore(t *testing.T) {
	store, err := NewMemoryExtentStore(1)
	require.NoError(t, err)

	ctx := context.Background()
	b := Bounds{Min: testutil.Date("2024-01-01 00:00:00"), Max: testutil.Date("2024-01-02 00:00:00"), Rows: 3}

	require.NoError(t, store.Set(ctx, "a@1", b, 0))
	got, ok, err := store.Get(ctx, "a@1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, b, got)

	// Capacity one evicts the oldest entry.
	require.NoError(t, store.Set(ctx, "b@1", b, 0))
	_, ok, err = store.Get(ctx, "a@1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, store.Len())
}

func TestRedisExtentStore(t *testing.T) {
	mr, client := testutil.NewMiniredisClient(t)
	store := NewRedisExtentStore(client, "test")

	ctx := context.Background()
	b := Bounds{Min: testutil.Date("2024-01-01 06:00:00"), Max: testutil.Date("2024-01-05 18:00:00"), Rows: 42}

	_, ok, err := store.Get(ctx, "line1.xlsx@1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "line1.xlsx@1", b, time.Hour))
	assert.True(t, mr.Exists("test:extents:line1.xlsx@1"))

	got, ok, err := store.Get(ctx, "line1.xlsx@1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, b.Min.Equal(got.Min))
	assert.True(t, b.Max.Equal(got.Max))
	assert.Equal(t, 42, got.Rows)

	mr.FastForward(2 * time.Hour)

	_, ok, err = store.Get(ctx, "line1.xlsx@1")
	require.NoError(t, err)
	assert.False(t, ok)
}
