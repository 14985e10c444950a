package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. Entries are held encoded so callers
// never share mutable state with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

// Get retrieves an entry. Returns (nil, false, nil) on miss or expiry.
func (s *MemoryStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}

	if !s.now().Before(entry.expiresAt) {
		// Expired - clean up lazily
		s.mu.Lock()
		if cur, ok := s.entries[key]; ok && cur == entry {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false, nil
	}

	decoded, err := decodeEntry(entry.value)
	if err != nil {
		return nil, false, err
	}
	return decoded, true, nil
}

// Set stores an entry with the given TTL. TTL<=0 means no caching.
func (s *MemoryStore) Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl <= 0 {
		return nil
	}

	value, err := encodeEntry(entry)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.entries[key] = &memoryEntry{
		value:     value,
		expiresAt: s.now().Add(ttl),
	}
	s.mu.Unlock()

	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close drops all entries.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.entries = make(map[string]*memoryEntry)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, including expired ones not yet
// collected.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
