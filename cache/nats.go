package cache

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSConfig configures a NATSStore.
type NATSConfig struct {
	// Bucket is the JetStream key-value bucket name.
	// Default: "graphcache"
	Bucket string

	// MaxAge bounds how long the bucket keeps any value. Per-entry TTLs are
	// enforced on read and must not exceed it.
	// Default: DefaultTTL
	MaxAge time.Duration

	// Timeout bounds each KV operation.
	// Default: 5 seconds
	Timeout time.Duration
}

// NATSStore persists entries in a NATS JetStream key-value bucket.
//
// KV keys only allow a restricted alphabet, so cache keys are stored
// base64url-encoded.
type NATSStore struct {
	conn    *nats.Conn
	kv      jetstream.KeyValue
	timeout time.Duration
	now     func() time.Time
}

// NewNATSStore creates or updates the bucket and returns a store bound to it.
// The store does not own conn; Close leaves the connection open.
func NewNATSStore(ctx context.Context, conn *nats.Conn, cfg NATSConfig) (*NATSStore, error) {
	if cfg.Bucket == "" {
		cfg.Bucket = "graphcache"
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	js, err := jetstream.New(conn)
	if err != nil {
		return nil, fmt.Errorf("cache: jetstream: %w", err)
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "graphcache responses",
		History:     1,
		TTL:         cfg.MaxAge,
	})
	if err != nil {
		return nil, fmt.Errorf("cache: kv bucket %s: %w", cfg.Bucket, err)
	}

	return &NATSStore{conn: conn, kv: kv, timeout: cfg.Timeout, now: time.Now}, nil
}

func (s *NATSStore) applyTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func natsKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

// Get retrieves an entry. Missing, deleted and expired keys are a miss.
func (s *NATSStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	ctx, cancel := s.applyTimeout(ctx)
	defer cancel()

	kve, err := s.kv.Get(ctx, natsKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: kv get: %w", err)
	}
	return decodeEnvelope(kve.Value(), s.now())
}

// Set stores an entry without revision checks (last writer wins).
func (s *NATSStore) Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	value, err := encodeEnvelope(entry, s.now().Add(ttl))
	if err != nil {
		return err
	}

	ctx, cancel := s.applyTimeout(ctx)
	defer cancel()
	if _, err := s.kv.Put(ctx, natsKey(key), value); err != nil {
		return fmt.Errorf("cache: kv put: %w", err)
	}
	return nil
}

// Ping checks the connection and bucket.
func (s *NATSStore) Ping(ctx context.Context) error {
	if !s.conn.IsConnected() {
		return fmt.Errorf("cache: nats not connected: %s", s.conn.Status())
	}
	ctx, cancel := s.applyTimeout(ctx)
	defer cancel()
	_, err := s.kv.Status(ctx)
	return err
}

// Close is a no-op; the connection belongs to the caller.
func (s *NATSStore) Close() error {
	return nil
}

// Ensure NATSStore implements Store
var _ Store = (*NATSStore)(nil)
