package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"chartkit/internal/chart"
)

// metaLastSaveAt holds the last save instant (ms epoch) for the rate limit.
const metaLastSaveAt = "last_save_at"

// Status is a library item's lifecycle state. The UI moves items one way
// (active → archived → trashed) but the store allows arbitrary transitions.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
	StatusTrashed  Status = "trashed"
)

// ParseStatus validates a status value.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusActive, StatusArchived, StatusTrashed:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q (want active, archived or trashed)", s)
}

// Item is a persisted library entry.
type Item struct {
	ID       string       `json:"id"`
	Title    string       `json:"title"`
	Tags     []string     `json:"tags"`
	Chart    *chart.Chart `json:"chart"`
	Favorite bool         `json:"favorite"`
	Status   Status       `json:"status"`
}

// Summary is a listing row: an item without its chart payload.
type Summary struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Tags     []string `json:"tags"`
	Favorite bool     `json:"favorite"`
	Status   Status   `json:"status"`
}

// Filter narrows ListCharts results. All set fields are ANDed. Title and Tag
// are case-insensitive substring matches (Tag against any of an item's tags).
// When Status is empty, trashed items are excluded: soft-deleted items stay
// invisible unless asked for explicitly.
type Filter struct {
	Title    string
	Tag      string
	Favorite *bool
	Status   Status
}

// SaveChart upserts a named chart snapshot and returns its id, generating a
// new one when id is empty. Newly created items default to favorite=false,
// status=active; updates keep both. Two guards run before any write: the save
// rate limit and the serialized-size ceiling. The stored chart is an
// independent copy of c.
func (s *Store) SaveChart(c *chart.Chart, title string, tags []string, id string) (string, error) {
	return s.SaveChartContext(context.Background(), c, title, tags, id)
}

// SaveChartContext upserts a chart snapshot with context support.
func (s *Store) SaveChartContext(ctx context.Context, c *chart.Chart, title string, tags []string, id string) (string, error) {
	now := s.opts.Clock()

	chartJSON, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chart: %w", err)
	}
	if s.opts.MaxChartBytes > 0 && len(chartJSON) > s.opts.MaxChartBytes {
		return "", fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrChartTooLarge, len(chartJSON), s.opts.MaxChartBytes)
	}

	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("failed to marshal tags: %w", err)
	}

	if id == "" {
		id = uuid.NewString()
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// The rate limit marker lives in the meta table so the guard binds
	// across processes, not just within one.
	if s.opts.SaveInterval > 0 {
		var raw string
		scanErr := tx.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", metaLastSaveAt).Scan(&raw)
		if scanErr != nil && scanErr != sql.ErrNoRows {
			return "", fmt.Errorf("failed to read save marker: %w", scanErr)
		}
		if scanErr == nil {
			if ms, perr := strconv.ParseInt(raw, 10, 64); perr == nil && now.Sub(time.UnixMilli(ms)) < s.opts.SaveInterval {
				return "", fmt.Errorf("%w: wait %s between saves", ErrRateLimited, s.opts.SaveInterval)
			}
		}
	}

	query := `
	INSERT INTO charts (id, title, tags, chart, favorite, status, created_at, updated_at)
	VALUES (?, ?, ?, ?, 0, 'active', ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		tags = excluded.tags,
		chart = excluded.chart,
		updated_at = excluded.updated_at
	`

	ts := now.UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, query, id, title, string(tagsJSON), string(chartJSON), ts, ts); err != nil {
		return "", fmt.Errorf("failed to save chart: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		metaLastSaveAt, strconv.FormatInt(now.UnixMilli(), 10),
	); err != nil {
		return "", fmt.Errorf("failed to update save marker: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return id, nil
}

// GetChart returns the stored chart for id, or nil (not an error) when
// absent.
func (s *Store) GetChart(id string) (*chart.Chart, error) {
	return s.GetChartContext(context.Background(), id)
}

// GetChartContext is GetChart with context support.
func (s *Store) GetChartContext(ctx context.Context, id string) (*chart.Chart, error) {
	var chartJSON string
	err := s.conn.QueryRowContext(ctx, "SELECT chart FROM charts WHERE id = ?", id).Scan(&chartJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chart %s: %w", id, err)
	}
	c, err := chart.Decode([]byte(chartJSON))
	if err != nil {
		return nil, fmt.Errorf("stored chart %s: %w", id, err)
	}
	return c, nil
}

// ListCharts returns item summaries matching the filter, sorted by title,
// case-insensitive ascending, ties broken by insertion order.
func (s *Store) ListCharts(f Filter) ([]Summary, error) {
	return s.ListChartsContext(context.Background(), f)
}

// ListChartsContext is ListCharts with context support.
func (s *Store) ListChartsContext(ctx context.Context, f Filter) ([]Summary, error) {
	var conditions []string
	var args []interface{}

	if f.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(f.Status))
	} else {
		conditions = append(conditions, "status != ?")
		args = append(args, string(StatusTrashed))
	}
	if f.Title != "" {
		conditions = append(conditions, "instr(lower(title), lower(?)) > 0")
		args = append(args, f.Title)
	}
	if f.Favorite != nil {
		conditions = append(conditions, "favorite = ?")
		args = append(args, boolToInt(*f.Favorite))
	}

	query := `
		SELECT id, title, tags, favorite, status
		FROM charts
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY title COLLATE NOCASE ASC, rowid ASC
	`

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list charts: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		if f.Tag != "" && !tagsMatch(sum.Tags, f.Tag) {
			continue
		}
		out = append(out, *sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan charts: %w", err)
	}
	return out, nil
}

// MarkFavorite sets the favorite flag on an item. No-op if id is absent.
func (s *Store) MarkFavorite(id string, favorite bool) error {
	return s.MarkFavoriteContext(context.Background(), id, favorite)
}

// MarkFavoriteContext is MarkFavorite with context support.
func (s *Store) MarkFavoriteContext(ctx context.Context, id string, favorite bool) error {
	_, err := s.conn.ExecContext(ctx, "UPDATE charts SET favorite = ? WHERE id = ?", boolToInt(favorite), id)
	if err != nil {
		return fmt.Errorf("failed to mark favorite on %s: %w", id, err)
	}
	return nil
}

// SetStatus sets an item's lifecycle status. No-op if id is absent.
func (s *Store) SetStatus(id string, status Status) error {
	return s.SetStatusContext(context.Background(), id, status)
}

// SetStatusContext is SetStatus with context support.
func (s *Store) SetStatusContext(ctx context.Context, id string, status Status) error {
	if _, err := ParseStatus(string(status)); err != nil {
		return err
	}
	_, err := s.conn.ExecContext(ctx, "UPDATE charts SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return fmt.Errorf("failed to set status on %s: %w", id, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func tagsMatch(tags []string, query string) bool {
	q := strings.ToLower(query)
	for _, t := range tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSummary(row rowScanner) (*Summary, error) {
	var sum Summary
	var tagsJSON string
	var favorite int
	var status string
	if err := row.Scan(&sum.ID, &sum.Title, &tagsJSON, &favorite, &status); err != nil {
		return nil, fmt.Errorf("failed to scan chart row: %w", err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &sum.Tags); err != nil {
		return nil, fmt.Errorf("failed to parse tags for %s: %w", sum.ID, err)
	}
	sum.Favorite = favorite != 0
	sum.Status = Status(status)
	return &sum, nil
}
