package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// SQLiteStore persists entries in a SQLite database.
type SQLiteStore struct {
	db         *sql.DB
	writeMutex *sync.Mutex
	now        func() time.Time
}

// NewSQLiteStore opens (or creates) the database at filename.
// If filename is empty, a private in-memory database is used.
func NewSQLiteStore(ctx context.Context, filename string) (*SQLiteStore, error) {
	if filename == "" {
		filename = "file::memory:"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, fmt.Errorf("cache: open sqlite: %w", err)
	}
	if filename == "file::memory:" {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS graphcache (
			key TEXT PRIMARY KEY,
			expires INTEGER NOT NULL,
			entry BLOB NOT NULL
		)`,
		"CREATE INDEX IF NOT EXISTS graphcache_expires_idx ON graphcache (expires)",
		"PRAGMA journal_mode=WAL",
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("cache: init sqlite: %w", err)
		}
	}

	return &SQLiteStore{
		db:         db,
		writeMutex: &sync.Mutex{},
		now:        time.Now,
	}, nil
}

// Get retrieves an entry. Expired rows are reported as a miss.
func (s *SQLiteStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	var expires int64
	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT expires, entry FROM graphcache WHERE key = ?", key).Scan(&expires, &value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: sqlite get: %w", err)
	}
	if s.now().UnixMilli() >= expires {
		return nil, false, nil
	}

	entry, err := decodeEntry(value)
	if err != nil {
		return nil, false, err
	}
	return entry, true, nil
}

// Set stores an entry, replacing any existing row for key.
func (s *SQLiteStore) Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	value, err := encodeEntry(entry)
	if err != nil {
		return err
	}

	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO graphcache (key, expires, entry) VALUES (?, ?, ?)",
		key, s.now().Add(ttl).UnixMilli(), value)
	if err != nil {
		return fmt.Errorf("cache: sqlite set: %w", err)
	}
	return nil
}

// PurgeExpired deletes expired rows and returns how many were removed.
func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int64, error) {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	res, err := s.db.ExecContext(ctx, "DELETE FROM graphcache WHERE expires <= ?", s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("cache: sqlite purge: %w", err)
	}
	return res.RowsAffected()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
