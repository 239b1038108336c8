package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	r "github.com/ethpandaops/tlareport/pkg/redis"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// ExtentStore memoises source bounds keyed by source identity and modification time
type ExtentStore interface {
	Get(ctx context.Context, key string) (Bounds, bool, error)
	Set(ctx context.Context, key string, b Bounds, ttl time.Duration) error
}

// MemoryExtentStore keeps bounds for the lifetime of the process
type MemoryExtentStore struct {
	cache *lru.Cache[string, Bounds]
}

// NewMemoryExtentStore creates an in-process store holding at most size entries
func NewMemoryExtentStore(size int) (*MemoryExtentStore, error) {
	if size <= 0 {
		size = 256
	}

	cache, err := lru.New[string, Bounds](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create extents cache: %w", err)
	}

	return &MemoryExtentStore{cache: cache}, nil
}

// Get returns cached bounds
func (s *MemoryExtentStore) Get(_ context.Context, key string) (Bounds, bool, error) {
	b, ok := s.cache.Get(key)

	return b, ok, nil
}

// Set stores bounds; the TTL is irrelevant in process
func (s *MemoryExtentStore) Set(_ context.Context, key string, b Bounds, _ time.Duration) error {
	s.cache.Add(key, b)

	return nil
}

// Len returns the number of cached entries
func (s *MemoryExtentStore) Len() int {
	return s.cache.Len()
}

// RedisExtentStore shares bounds across runs and hosts
type RedisExtentStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisExtentStore creates a store on top of an existing client.
// Keys follow {prefix}:extents:{source key}.
func NewRedisExtentStore(client *redis.Client, prefix string) *RedisExtentStore {
	cfg := r.Config{Prefix: prefix}

	return &RedisExtentStore{
		client:    client,
		keyPrefix: cfg.PrefixKey("extents"),
	}
}

// NewRedisExtentStoreFromConfig dials the configured Redis URL
func NewRedisExtentStoreFromConfig(cfg r.Config) (*RedisExtentStore, error) {
	client, err := cfg.NewClient()
	if err != nil {
		return nil, err
	}

	return NewRedisExtentStore(client, cfg.Prefix), nil
}

// Get retrieves cached bounds from Redis
func (s *RedisExtentStore) Get(ctx context.Context, key string) (Bounds, bool, error) {
	data, err := s.client.Get(ctx, s.keyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Bounds{}, false, nil
		}

		return Bounds{}, false, err
	}

	var b Bounds
	if err := json.Unmarshal([]byte(data), &b); err != nil {
		return Bounds{}, false, err
	}

	return b, true, nil
}

// Set stores bounds in Redis
func (s *RedisExtentStore) Set(ctx context.Context, key string, b Bounds, ttl time.Duration) error {
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, s.keyPrefix+key, data, ttl).Err()
}

// Close releases the Redis client
func (s *RedisExtentStore) Close() error {
	return s.client.Close()
}
