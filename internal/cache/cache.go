package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

// Store persists fetched payloads (token list snapshots) across process runs.
// Reads never take the file lock; writes do so concurrent CLI processes
// don't interleave upserts.
type Store struct {
	db *sql.DB
	// mu serializes writers inside the process; lock covers other processes.
	mu   sync.Mutex
	lock *flock.Flock
	now  func() time.Time
}

type Entry struct {
	Hit      bool
	Value    []byte
	Age      time.Duration
	Stale    bool
	TooStale bool
}

// Usable reports whether the entry may be served, fresh or within the stale budget.
func (e Entry) Usable() bool {
	return e.Hit && !e.TooStale
}

func Open(path, lockPath string) (*Store, error) {
	for _, dir := range []string{filepath.Dir(path), filepath.Dir(lockPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS snapshots (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value BLOB NOT NULL,
			fetched_at INTEGER NOT NULL,
			ttl_seconds INTEGER NOT NULL,
			PRIMARY KEY (namespace, key)
		);`,
	}
	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init cache schema: %w", err)
		}
	}

	return &Store{db: db, lock: flock.New(lockPath), now: time.Now}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Prune drops snapshots older than their TTL plus keep.
func (s *Store) Prune(keep time.Duration) error {
	if s == nil || s.db == nil {
		return nil
	}
	cutoff := s.now().UTC().Add(-keep).Unix()
	if _, err := s.db.Exec("DELETE FROM snapshots WHERE fetched_at + ttl_seconds < ?", cutoff); err != nil {
		return fmt.Errorf("prune cache: %w", err)
	}
	return nil
}

// Lookup reads a snapshot. A negative maxStale allows any stale age.
func (s *Store) Lookup(namespace, key string, maxStale time.Duration) (Entry, error) {
	var value []byte
	var fetchedUnix, ttlSeconds int64
	err := s.db.QueryRow(
		"SELECT value, fetched_at, ttl_seconds FROM snapshots WHERE namespace = ? AND key = ?",
		namespace, key,
	).Scan(&value, &fetchedUnix, &ttlSeconds)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, nil
		}
		return Entry{}, fmt.Errorf("cache read: %w", err)
	}

	age := s.now().UTC().Sub(time.Unix(fetchedUnix, 0).UTC())
	if age < 0 {
		age = 0
	}
	ttl := time.Duration(ttlSeconds) * time.Second
	stale := age > ttl
	return Entry{
		Hit:      true,
		Value:    value,
		Age:      age,
		Stale:    stale,
		TooStale: stale && maxStale >= 0 && age > ttl+maxStale,
	}, nil
}

func (s *Store) Put(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	if err := s.withLock(ctx, func() error {
		ttlSeconds := int64(ttl.Seconds())
		if ttlSeconds <= 0 {
			ttlSeconds = 1
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO snapshots (namespace, key, value, fetched_at, ttl_seconds)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(namespace, key) DO UPDATE SET
				value=excluded.value,
				fetched_at=excluded.fetched_at,
				ttl_seconds=excluded.ttl_seconds
		`, namespace, key, value, s.now().UTC().Unix(), ttlSeconds)
		return err
	}); err != nil {
		return fmt.Errorf("cache write: %w", err)
	}
	return nil
}

// Invalidate removes every snapshot in a namespace.
func (s *Store) Invalidate(ctx context.Context, namespace string) error {
	return s.withLock(ctx, func() error {
		_, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE namespace = ?", namespace)
		return err
	})
}

func (s *Store) withLock(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lockCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	locked, err := s.lock.TryLockContext(lockCtx, 25*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock cache: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock cache: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()
	return fn()
}
