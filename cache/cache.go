package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// DefaultTTL is how long a response stays cached.
const DefaultTTL = 300 * time.Second

// Sentinel errors for cache operations.
var (
	ErrNilStore   = errors.New("cache: store is nil")
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
	ErrCorrupt    = errors.New("cache: stored entry is corrupt")
	ErrClosed     = errors.New("cache: store is closed")
)

// Entry is the record persisted for a cached response. It keeps what produced
// the answer alongside the answer itself for diagnostics.
type Entry struct {
	Endpoint  string          `json:"endpoint"`
	Operation string          `json:"operation"`
	Data      json.RawMessage `json:"data"`
	Variables json.RawMessage `json:"variables"`
}

// Store is the interface for persisting cached responses.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use, including
// from multiple gateway instances sharing one backend. Last writer wins.
// - Context: methods should honor cancellation/deadlines.
// - Errors: Get returns (nil, false, nil) on miss or expiry and a non-nil error
// only for I/O failures. Callers treat a Get error as a miss.
type Store interface {
	// Get retrieves the entry stored under key.
	Get(ctx context.Context, key string) (*Entry, bool, error)

	// Set stores entry under key for ttl. TTL<=0 means the entry is not stored.
	Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error

	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	// Reject keys with newlines or carriage returns
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}

// record is the stored form of an Entry. Payloads are kept as bytes so a hit
// returns exactly what the upstream sent, whitespace and escapes included.
type record struct {
	Endpoint  string `json:"endpoint"`
	Operation string `json:"operation"`
	Data      []byte `json:"data"`
	Variables []byte `json:"variables"`
}

func newRecord(entry Entry) record {
	return record{
		Endpoint:  entry.Endpoint,
		Operation: entry.Operation,
		Data:      entry.Data,
		Variables: entry.Variables,
	}
}

func (r record) entry() *Entry {
	return &Entry{
		Endpoint:  r.Endpoint,
		Operation: r.Operation,
		Data:      json.RawMessage(r.Data),
		Variables: json.RawMessage(r.Variables),
	}
}

// envelope is the byte representation used by backends that do not track
// expiry themselves.
type envelope struct {
	ExpiresAt int64  `json:"expiresAt"`
	Entry     record `json:"entry"`
}

func encodeEntry(entry Entry) ([]byte, error) {
	return marshal(newRecord(entry))
}

func decodeEntry(b []byte) (*Entry, error) {
	var r record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return r.entry(), nil
}

func encodeEnvelope(entry Entry, expiresAt time.Time) ([]byte, error) {
	return marshal(envelope{ExpiresAt: expiresAt.UnixMilli(), Entry: newRecord(entry)})
}

// decodeEnvelope returns the entry and whether it is still live at now.
func decodeEnvelope(b []byte, now time.Time) (*Entry, bool, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if now.UnixMilli() >= env.ExpiresAt {
		return nil, false, nil
	}
	return env.Entry.entry(), true, nil
}
