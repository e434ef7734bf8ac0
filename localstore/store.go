// Package localstore is the last-known-good content store kept next to the
// site. It is a small SQLite key/value table holding one JSON blob per
// content kind, and it notifies watchers when a different writer changes it.
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// Keys under which content is persisted.
const (
	KeyNews      = "news_items"
	KeyGallery   = "gallery_items"
	KeyVideo     = "video_url"
	KeyVideoKind = "video_kind"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("localstore: store is closed")

// Change describes one write to the store.
type Change struct {
	Key    string
	Origin string
}

type watcher struct {
	origin string
	fn     func(Change)
}

// Store wraps a SQLite database used as a string key/value store.
type Store struct {
	db *sql.DB

	mu       sync.Mutex
	watchers map[int]watcher
	nextID   int
	closed   bool
}

// Open opens (or creates) the SQLite database at path, ensuring the parent
// directory exists and the schema is in place.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db, watchers: make(map[int]watcher)}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database and drops all watchers.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.watchers = map[int]watcher{}
	s.mu.Unlock()
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);
`)
	return err
}

// Get returns the value stored under key and whether it exists.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if s.isClosed() {
		return "", false, ErrClosed
	}
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set stores value under key and notifies watchers of other origins.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if s.isClosed() {
		return ErrClosed
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`, key, value)
	if err != nil {
		return err
	}
	s.notify(Change{Key: key, Origin: OriginFrom(ctx)})
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	if s.isClosed() {
		return ErrClosed
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.notify(Change{Key: key, Origin: OriginFrom(ctx)})
	}
	return nil
}

// Watch registers fn for changes written by any origin other than origin.
// An empty origin receives every change. The returned func unregisters fn.
func (s *Store) Watch(origin string, fn func(Change)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = watcher{origin: origin, fn: fn}
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify(c Change) {
	s.mu.Lock()
	targets := make([]func(Change), 0, len(s.watchers))
	for _, w := range s.watchers {
		if w.origin != "" && w.origin == c.Origin {
			continue
		}
		targets = append(targets, w.fn)
	}
	s.mu.Unlock()
	for _, fn := range targets {
		fn(c)
	}
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type originKey struct{}

// WithOrigin tags writes made with ctx as coming from origin, so watchers
// registered under the same origin do not hear their own writes.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originKey{}, origin)
}

// OriginFrom returns the origin attached to ctx, if any.
func OriginFrom(ctx context.Context) string {
	origin, _ := ctx.Value(originKey{}).(string)
	return origin
}
