package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists entries in Redis, relying on key expiry for the TTL.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	// Addr is host:port of the Redis server.
	Addr string
	// Username and Password authenticate with the server (optional).
	Username string
	Password string
	// DB selects the logical database.
	DB int
	// KeyPrefix is prepended to every cache key.
	// Default: "graphcache:"
	KeyPrefix string
}

// NewRedisStore connects to Redis.
func NewRedisStore(cfg RedisConfig) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisStoreWithClient(client, cfg.KeyPrefix)
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client redis.UniversalClient, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "graphcache:"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

// Get retrieves an entry. A missing or expired key is a miss.
func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	value, err := s.client.Get(ctx, s.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: redis get: %w", err)
	}

	entry, err := decodeEntry(value)
	if err != nil {
		return nil, false, err
	}
	return entry, true, nil
}

// Set stores an entry with a Redis expiry of ttl.
func (s *RedisStore) Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	value, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set: %w", err)
	}
	return nil
}

// Ping checks the server connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ensure RedisStore implements Store
var _ Store = (*RedisStore)(nil)
