package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"parcel-tracking/internal/carriers"
)

// DefaultKeyPrefix namespaces enrichment entries in a shared Redis
const DefaultKeyPrefix = "parcel-tracker:enrichment:"

// RedisStore keeps enrichment responses in Redis. Expiry is handled by Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to redisURL, which has the form
// redis://[:password@]host[:port][/database]
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return &RedisStore{client: redis.NewClient(opts), prefix: DefaultKeyPrefix}, nil
}

func (r *RedisStore) key(key string) string {
	return r.prefix + key
}

// Get retrieves an enrichment from Redis
func (r *RedisStore) Get(ctx context.Context, key string) (*carriers.Enrichment, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	var value carriers.Enrichment
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("failed to decode cached enrichment %s: %w", key, err)
	}
	return &value, nil
}

// Set stores an enrichment with ttl
func (r *RedisStore) Set(ctx context.Context, key string, value carriers.Enrichment, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode enrichment: %w", err)
	}
	if err := r.client.Set(ctx, r.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Delete removes an enrichment
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Stats counts the cached enrichments. Redis evicts expired keys itself, so
// the expired count is always zero.
func (r *RedisStore) Stats(ctx context.Context) (int, int, error) {
	var total int
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		total++
	}
	if err := iter.Err(); err != nil {
		return 0, 0, fmt.Errorf("failed to scan cache keys: %w", err)
	}
	return total, 0, nil
}

// Ping checks if Redis is reachable
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	return r.client.Close()
}
