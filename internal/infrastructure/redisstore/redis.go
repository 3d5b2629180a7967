package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"digitalwall/internal/config"
	"digitalwall/internal/ports"
)

// Daily usage counters expire on their own after two days; the key itself
// encodes the day, so a longer lifetime only wastes memory.
const counterTTL = 48 * time.Hour

// Store implements the cache and counter ports on a single Redis
// connection.
type Store struct {
	client *redis.Client
}

var (
	_ ports.CacheStore   = (*Store)(nil)
	_ ports.CounterStore = (*Store)(nil)
)

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, cfg config.RedisConfig) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{client: client}, nil
}

// Get returns the cached payload, or ports.ErrCacheMiss for absent keys.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	payload, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ports.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return payload, nil
}

// Set stores the payload under the key with the given lifetime.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Increment atomically adds to the counter and refreshes its expiry.
func (s *Store) Increment(ctx context.Context, key string, amount int64) error {
	pipe := s.client.TxPipeline()
	pipe.IncrBy(ctx, key, amount)
	pipe.Expire(ctx, key, counterTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis incrby: %w", err)
	}
	return nil
}

// Read returns the counter value; a missing key reads as zero.
func (s *Store) Read(ctx context.Context, key string) (int64, error) {
	value, err := s.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get counter: %w", err)
	}
	return value, nil
}

// Client exposes the underlying connection for collaborators that need
// pub/sub on the same instance.
func (s *Store) Client() *redis.Client {
	return s.client
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
