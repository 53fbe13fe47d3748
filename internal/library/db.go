// Package library provides the durable local chart library: named, tagged
// chart snapshots with favorite and lifecycle metadata, plus point-in-time
// backups of the whole collection.
//
// Storage is an embedded SQLite database (WAL mode for concurrent reads).
// Every write runs as a single all-or-nothing transaction: a crash mid-write
// leaves either the pre- or post-state, never a mix.
package library

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Sentinel errors for the two resource-limit guards. Unlike validation
// rejections these abort the operation loudly; callers decide whether to
// surface them.
var (
	// ErrRateLimited is returned when saves arrive faster than the
	// configured minimum interval.
	ErrRateLimited = errors.New("saving too fast")

	// ErrChartTooLarge is returned when a chart's serialized payload
	// exceeds the configured ceiling. Nothing is written.
	ErrChartTooLarge = errors.New("chart payload too large")
)

// Options configures a Store.
type Options struct {
	// SaveInterval is the minimum interval between successive saves,
	// tracked in the meta table so it binds across processes.
	// Zero disables the guard (test and automation contexts).
	SaveInterval time.Duration

	// MaxChartBytes is the ceiling on a chart's serialized size.
	// Zero disables the guard.
	MaxChartBytes int

	// Clock is the time source, overridable in tests.
	Clock func() time.Time
}

// DefaultOptions returns the production guards: a 2 second save window and a
// 1 MiB chart ceiling.
func DefaultOptions() Options {
	return Options{
		SaveInterval:  2 * time.Second,
		MaxChartBytes: 1 << 20,
		Clock:         time.Now,
	}
}

// Store wraps the library database connection.
type Store struct {
	conn *sql.DB
	path string
	opts Options
}

// Open creates a library store at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads and
// created along with its schema if missing. The caller must Close when done.
func Open(path string, opts Options) (*Store, error) {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// The library serializes writes through transactions; a single writer
	// connection avoids SQLITE_BUSY churn.
	conn.SetMaxOpenConns(1)

	s := &Store{conn: conn, path: path, opts: opts}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := s.conn.Exec(pragma); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	if err := s.initSchema(); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection after checkpointing the WAL.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.conn = nil
	return nil
}

// initSchema creates the schema if it doesn't exist. Idempotent.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS charts (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		tags TEXT NOT NULL DEFAULT '[]',  -- JSON array
		chart TEXT NOT NULL,              -- chart JSON
		favorite INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS backups (
		created_at INTEGER PRIMARY KEY,   -- ms epoch, unique key
		charts TEXT NOT NULL              -- JSON array of items
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_charts_status ON charts(status);
	CREATE INDEX IF NOT EXISTS idx_charts_favorite ON charts(favorite);
	CREATE INDEX IF NOT EXISTS idx_charts_title ON charts(title COLLATE NOCASE);
	`

	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}
