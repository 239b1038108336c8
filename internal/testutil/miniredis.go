package testutil

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	r "github.com/ethpandaops/tlareport/pkg/redis"
	"github.com/redis/go-redis/v9"
)

// NewMiniredisClient returns an in-memory Redis server and a connected client.
// Both are closed when the test completes.
func NewMiniredisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() {
		if err := client.Close(); err != nil {
			t.Logf("failed to close miniredis client: %v", err)
		}
	})

	return mr, client
}

// NewMiniredisConfig returns an in-memory Redis server and a connection config
// pointing at it, for components that dial Redis themselves
func NewMiniredisConfig(t *testing.T, prefix string) (*miniredis.Miniredis, r.Config) {
	t.Helper()

	mr := miniredis.RunT(t)

	return mr, r.Config{URL: "redis://" + mr.Addr(), Prefix: prefix}
}
