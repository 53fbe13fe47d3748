// Package remote talks to the hosted chart store over its REST interface.
//
// The client doubles as the outbox's remote mutation sink. When the remote
// URL or key is not configured the client runs in disabled mode: reads and
// share operations succeed as logged no-ops, but Upsert reports ErrDisabled
// so queued mutations stay queued until a remote is configured.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"chartkit/internal/outbox"
)

// ErrDisabled is returned by Upsert when the client has no remote
// configuration. The outbox treats it like any delivery failure and keeps the
// mutation queued; reporting success here would delete local edits without
// ever sending them.
var ErrDisabled = errors.New("remote store disabled")

// Config holds remote store settings.
type Config struct {
	// URL is the base URL of the hosted store.
	URL string

	// Key is the anonymous API key sent with every request.
	Key string

	// Token is the optional user access token; without it requests run
	// with anonymous rights only.
	Token string

	// Logger for client activity (default: stderr logger).
	Logger *log.Logger
}

// Client is the remote store client.
type Client struct {
	baseURL  string
	key      string
	token    string
	http     *http.Client
	logger   *log.Logger
	disabled bool
}

// New creates a remote client. With an empty URL or key the client is
// disabled: reads and shares are logged no-ops and Upsert fails with
// ErrDisabled.
func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}
	c := &Client{
		baseURL: cfg.URL,
		key:     cfg.Key,
		token:   cfg.Token,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
	if cfg.URL == "" || cfg.Key == "" {
		c.disabled = true
		logger.Printf("remote store disabled: missing URL or key")
	}
	return c
}

// Disabled reports whether the client is running in disabled no-op mode.
func (c *Client) Disabled() bool {
	return c.disabled
}

// Host returns the host of the remote URL, for connectivity probing.
// Empty when the client is disabled.
func (c *Client) Host() string {
	if c.disabled {
		return ""
	}
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return ""
	}
	host := u.Host
	if u.Port() == "" {
		switch u.Scheme {
		case "http":
			host += ":80"
		default:
			host += ":443"
		}
	}
	return host
}

// Upsert implements outbox.Sink: it merges one chart record into the remote
// charts table. Idempotent by chart id. Returns ErrDisabled when the client
// is disabled, leaving the record queued.
func (c *Client) Upsert(ctx context.Context, rec outbox.Record) error {
	if c.disabled {
		return ErrDisabled
	}
	return c.do(ctx, http.MethodPost, "/rest/v1/charts", map[string]string{
		"Prefer": "resolution=merge-duplicates",
	}, []outbox.Record{rec}, nil)
}

// UserID returns the id of the currently authenticated user, or empty when
// anonymous or disabled. The core never gates operations on identity; this
// exists for display and for collaborators that do.
func (c *Client) UserID(ctx context.Context) (string, error) {
	if c.disabled || c.token == "" {
		return "", nil
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", nil, nil, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// do performs one JSON request against the remote store.
func (c *Client) do(ctx context.Context, method, path string, headers map[string]string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("apikey", c.key)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.key)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("remote store returned %s: %s", resp.Status, bytes.TrimSpace(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
