// Package outbox provides the durable queue of chart mutations awaiting
// delivery to the remote store.
//
// The queue guarantees at-least-once, eventually-consistent delivery: it
// survives process restarts and transient remote failures. Mutations are
// keyed by chart id and coalesce: queuing a second mutation for an id before
// the first drains replaces the pending payload, so only the latest value per
// id is ever sent.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"chartkit/internal/chart"
)

// Item is one pending mutation: "chart id should eventually equal this chart
// as of updatedAt" at the remote sink.
type Item struct {
	ID        string       `json:"id"`
	Chart     *chart.Chart `json:"chart"`
	UpdatedAt int64        `json:"updated_at"` // ms epoch
}

// Queue wraps the outbox database connection.
type Queue struct {
	conn *sql.DB
	path string
}

// Open creates an outbox queue at the specified path, creating the database
// and schema if missing. The caller must Close when done.
func Open(path string) (*Queue, error) {
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
	conn.SetMaxOpenConns(1)

	q := &Queue{conn: conn, path: path}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := q.conn.Exec(pragma); err != nil {
			_ = q.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS mutations (
		id TEXT PRIMARY KEY,
		chart TEXT NOT NULL,          -- chart JSON
		updated_at INTEGER NOT NULL   -- ms epoch
	);
	`
	if _, err := q.conn.Exec(schema); err != nil {
		_ = q.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return q, nil
}

// Close closes the database connection.
func (q *Queue) Close() error {
	if q.conn == nil {
		return nil
	}
	if err := q.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	q.conn = nil
	return nil
}

// QueueMutation upserts a pending mutation keyed by id. The stored chart is
// an independent copy of c.
func (q *Queue) QueueMutation(id string, c *chart.Chart, updatedAt int64) error {
	return q.QueueMutationContext(context.Background(), id, c, updatedAt)
}

// QueueMutationContext is QueueMutation with context support.
func (q *Queue) QueueMutationContext(ctx context.Context, id string, c *chart.Chart, updatedAt int64) error {
	chartJSON, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal chart: %w", err)
	}

	query := `
	INSERT INTO mutations (id, chart, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		chart = excluded.chart,
		updated_at = excluded.updated_at
	`
	if _, err := q.conn.ExecContext(ctx, query, id, string(chartJSON), updatedAt); err != nil {
		return fmt.Errorf("failed to queue mutation for %s: %w", id, err)
	}
	return nil
}

// Process drains the queue against the sink. Each queued item is offered via
// sink.Upsert; on success the item is removed, on failure it stays queued for
// the next drain. A failed item never blocks delivery of the others in the
// same pass. The whole read-and-delete runs in one transaction, so a crash
// mid-drain cannot lose items that were not confirmed removed.
//
// Remote failures are non-fatal and local-only: Process returns an error only
// for storage problems, never for sink rejections.
func (q *Queue) Process(ctx context.Context, sink Sink) error {
	tx, err := q.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, "SELECT id, chart, updated_at FROM mutations ORDER BY updated_at ASC")
	if err != nil {
		return fmt.Errorf("failed to read outbox: %w", err)
	}

	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			rows.Close()
			return err
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to scan outbox: %w", err)
	}
	rows.Close()

	for _, it := range items {
		if err := sink.Upsert(ctx, Record{ID: it.ID, Chart: it.Chart, UpdatedAt: it.UpdatedAt}); err != nil {
			// Kept for the next drain.
			continue
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM mutations WHERE id = ?", it.ID); err != nil {
			return fmt.Errorf("failed to remove delivered mutation %s: %w", it.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// List returns every pending mutation, oldest first. Used by diagnostics and
// tests.
func (q *Queue) List() ([]Item, error) {
	return q.ListContext(context.Background())
}

// ListContext is List with context support.
func (q *Queue) ListContext(ctx context.Context) ([]Item, error) {
	rows, err := q.conn.QueryContext(ctx, "SELECT id, chart, updated_at FROM mutations ORDER BY updated_at ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to read outbox: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan outbox: %w", err)
	}
	return items, nil
}

// Len returns the number of pending mutations.
func (q *Queue) Len() (int, error) {
	var n int
	if err := q.conn.QueryRow("SELECT COUNT(*) FROM mutations").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count outbox: %w", err)
	}
	return n, nil
}

// Clear removes every pending mutation.
func (q *Queue) Clear() error {
	return q.ClearContext(context.Background())
}

// ClearContext is Clear with context support.
func (q *Queue) ClearContext(ctx context.Context) error {
	if _, err := q.conn.ExecContext(ctx, "DELETE FROM mutations"); err != nil {
		return fmt.Errorf("failed to clear outbox: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (*Item, error) {
	var it Item
	var chartJSON string
	if err := row.Scan(&it.ID, &chartJSON, &it.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan mutation row: %w", err)
	}
	c, err := chart.Decode([]byte(chartJSON))
	if err != nil {
		return nil, fmt.Errorf("queued chart %s: %w", it.ID, err)
	}
	it.Chart = c
	return &it, nil
}
