package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"chartkit/internal/chart"
)

const metaLastBackupDay = "last_backup_day"

// Backup snapshots the entire current item set, including trashed items,
// under a new backup record and returns its key (ms epoch timestamp).
// Backups accumulate; pruning is a caller policy.
func (s *Store) Backup() (int64, error) {
	return s.BackupContext(context.Background())
}

// BackupContext is Backup with context support.
func (s *Store) BackupContext(ctx context.Context) (int64, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ts, err := s.backupTx(ctx, tx)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return ts, nil
}

// backupTx writes one backup record inside an open transaction and returns
// its key.
func (s *Store) backupTx(ctx context.Context, tx *sql.Tx) (int64, error) {
	rows, err := tx.QueryContext(ctx, "SELECT id, title, tags, chart, favorite, status FROM charts ORDER BY rowid ASC")
	if err != nil {
		return 0, fmt.Errorf("failed to read charts for backup: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var it Item
		var tagsJSON, chartJSON, status string
		var favorite int
		if err := rows.Scan(&it.ID, &it.Title, &tagsJSON, &chartJSON, &favorite, &status); err != nil {
			return 0, fmt.Errorf("failed to scan chart row: %w", err)
		}
		if err := json.Unmarshal([]byte(tagsJSON), &it.Tags); err != nil {
			return 0, fmt.Errorf("failed to parse tags for %s: %w", it.ID, err)
		}
		c, err := chart.Decode([]byte(chartJSON))
		if err != nil {
			return 0, fmt.Errorf("stored chart %s: %w", it.ID, err)
		}
		it.Chart = c
		it.Favorite = favorite != 0
		it.Status = Status(status)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan charts: %w", err)
	}

	payload, err := json.Marshal(items)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal backup: %w", err)
	}

	// The timestamp is the unique key; bump until free so two backups in
	// the same millisecond both survive.
	ts := s.opts.Clock().UnixMilli()
	for {
		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM backups WHERE created_at = ?", ts).Scan(&exists); err != nil {
			return 0, fmt.Errorf("failed to probe backup key: %w", err)
		}
		if exists == 0 {
			break
		}
		ts++
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO backups (created_at, charts) VALUES (?, ?)", ts, string(payload)); err != nil {
		return 0, fmt.Errorf("failed to write backup: %w", err)
	}
	return ts, nil
}

// ListBackups returns every backup key, newest first.
func (s *Store) ListBackups() ([]int64, error) {
	return s.ListBackupsContext(context.Background())
}

// ListBackupsContext is ListBackups with context support.
func (s *Store) ListBackupsContext(ctx context.Context) ([]int64, error) {
	rows, err := s.conn.QueryContext(ctx, "SELECT created_at FROM backups ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("failed to scan backup row: %w", err)
		}
		out = append(out, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan backups: %w", err)
	}
	return out, nil
}

// RestoreFromBackup overwrites the current item for id with its copy from the
// backup keyed by timestamp, leaving other current items untouched. Reports
// whether anything was restored: a missing backup or a missing item within it
// is a no-op, not an error.
func (s *Store) RestoreFromBackup(timestamp int64, id string) (bool, error) {
	return s.RestoreFromBackupContext(context.Background(), timestamp, id)
}

// RestoreFromBackupContext is RestoreFromBackup with context support.
func (s *Store) RestoreFromBackupContext(ctx context.Context, timestamp int64, id string) (bool, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var payload string
	err = tx.QueryRowContext(ctx, "SELECT charts FROM backups WHERE created_at = ?", timestamp).Scan(&payload)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read backup %d: %w", timestamp, err)
	}

	var items []Item
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return false, fmt.Errorf("corrupt backup %d: %w", timestamp, err)
	}

	var found *Item
	for i := range items {
		if items[i].ID == id {
			found = &items[i]
			break
		}
	}
	if found == nil {
		return false, nil
	}

	tagsJSON, err := json.Marshal(found.Tags)
	if err != nil {
		return false, fmt.Errorf("failed to marshal tags: %w", err)
	}
	chartJSON, err := json.Marshal(found.Chart)
	if err != nil {
		return false, fmt.Errorf("failed to marshal chart: %w", err)
	}

	ts := s.opts.Clock().UTC().Format(time.RFC3339)
	query := `
	INSERT INTO charts (id, title, tags, chart, favorite, status, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		tags = excluded.tags,
		chart = excluded.chart,
		favorite = excluded.favorite,
		status = excluded.status,
		updated_at = excluded.updated_at
	`
	if _, err := tx.ExecContext(ctx, query,
		found.ID, found.Title, string(tagsJSON), string(chartJSON),
		boolToInt(found.Favorite), string(found.Status), ts, ts,
	); err != nil {
		return false, fmt.Errorf("failed to restore chart %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}

// EnsureDailyBackup takes a backup unless one was already taken today,
// tracked by a last-backup marker in the meta table. Returns the backup key
// and whether a new backup was written.
func (s *Store) EnsureDailyBackup() (int64, bool, error) {
	return s.EnsureDailyBackupContext(context.Background())
}

// EnsureDailyBackupContext is EnsureDailyBackup with context support.
func (s *Store) EnsureDailyBackupContext(ctx context.Context) (int64, bool, error) {
	today := s.opts.Clock().UTC().Format("2006-01-02")

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var last string
	err = tx.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", metaLastBackupDay).Scan(&last)
	if err != nil && err != sql.ErrNoRows {
		return 0, false, fmt.Errorf("failed to read backup marker: %w", err)
	}
	if last == today {
		return 0, false, nil
	}

	ts, err := s.backupTx(ctx, tx)
	if err != nil {
		return 0, false, err
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		metaLastBackupDay, today,
	); err != nil {
		return 0, false, fmt.Errorf("failed to update backup marker: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return ts, true, nil
}
