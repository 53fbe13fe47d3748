// Package daemon provides the background process that keeps local edits
// flowing to the remote store.
//
// The daemon:
//  1. Watches the outbox database for newly queued mutations
//  2. Triggers sync drains with debouncing, and on connectivity regain
//  3. Takes the daily library backup
//  4. Handles graceful shutdown
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"chartkit/internal/library"
	"chartkit/internal/syncer"
)

// Config holds configuration for the daemon.
type Config struct {
	// DebounceInterval is how long to wait after an outbox change before
	// triggering a drain. Batches rapid edits together.
	DebounceInterval time.Duration

	// BackupCheckInterval is how often to check the daily backup marker.
	BackupCheckInterval time.Duration

	// ConnectivityInterval is how often to probe the remote store.
	ConnectivityInterval time.Duration

	// Probe checks remote reachability. Nil disables connectivity
	// triggering (offline-only operation).
	Probe syncer.Probe

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval:     500 * time.Millisecond,
		BackupCheckInterval:  time.Hour,
		ConnectivityInterval: 30 * time.Second,
		Logger:               log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon orchestrates outbox watching, sync triggering and backups.
type Daemon struct {
	lib        *library.Store
	orch       *syncer.Orchestrator
	outboxPath string
	config     *Config

	watcher *fsnotify.Watcher

	mu         sync.Mutex
	lastChange time.Time
	pending    bool
}

// New creates a Daemon. outboxPath is the outbox database file whose changes
// signal newly queued mutations.
func New(lib *library.Store, orch *syncer.Orchestrator, outboxPath string, config *Config) (*Daemon, error) {
	if lib == nil {
		return nil, fmt.Errorf("library store cannot be nil")
	}
	if orch == nil {
		return nil, fmt.Errorf("orchestrator cannot be nil")
	}
	if outboxPath == "" {
		return nil, fmt.Errorf("outboxPath cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Daemon{
		lib:        lib,
		orch:       orch,
		outboxPath: outboxPath,
		config:     config,
		watcher:    watcher,
	}, nil
}

// Run starts the daemon and blocks until ctx is cancelled.
//
// On start it performs the app-start sync trigger and the daily backup check,
// then keeps watching.
func (d *Daemon) Run(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")
	defer d.config.Logger.Println("Daemon stopped")

	// Watch the directory, not the file: SQLite rewrites the WAL beside it.
	dir := filepath.Dir(d.outboxPath)
	if err := d.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch outbox directory %s: %w", dir, err)
	}
	d.config.Logger.Printf("Watching: %s", dir)

	// App-start trigger.
	d.orch.SyncNow(ctx)
	d.checkBackup(ctx)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.watchOutbox(ctx) })
	g.Go(func() error { return d.processDebounce(ctx) })
	g.Go(func() error { return d.backupLoop(ctx) })
	if d.config.Probe != nil {
		g.Go(func() error {
			d.orch.WatchConnectivity(ctx, d.config.Probe, d.config.ConnectivityInterval)
			return nil
		})
	}

	err := g.Wait()
	_ = d.watcher.Close()
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// watchOutbox queues a debounced sync trigger on every outbox file change.
func (d *Daemon) watchOutbox(ctx context.Context) error {
	base := filepath.Base(d.outboxPath)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-d.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			// The database file or its WAL/journal siblings.
			if !strings.HasPrefix(filepath.Base(event.Name), base) {
				continue
			}
			d.mu.Lock()
			d.lastChange = time.Now()
			d.pending = true
			d.mu.Unlock()

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return nil
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// processDebounce fires a sync once outbox changes settle.
func (d *Daemon) processDebounce(ctx context.Context) error {
	ticker := time.NewTicker(d.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.mu.Lock()
			ready := d.pending && time.Since(d.lastChange) >= d.config.DebounceInterval
			if ready {
				d.pending = false
			}
			d.mu.Unlock()

			if ready {
				d.config.Logger.Println("Outbox changed, syncing")
				d.orch.SyncNow(ctx)
			}
		}
	}
}

// backupLoop keeps the at-most-one-backup-per-day policy.
func (d *Daemon) backupLoop(ctx context.Context) error {
	ticker := time.NewTicker(d.config.BackupCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.checkBackup(ctx)
		}
	}
}

func (d *Daemon) checkBackup(ctx context.Context) {
	ts, created, err := d.lib.EnsureDailyBackupContext(ctx)
	if err != nil {
		d.config.Logger.Printf("Warning: daily backup failed: %v", err)
		return
	}
	if created {
		d.config.Logger.Printf("Daily backup written: %d", ts)
	}
}
