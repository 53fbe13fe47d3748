package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"chartkit/internal/config"
	"chartkit/internal/kvstore"
	"chartkit/internal/library"
	"chartkit/internal/outbox"
	"chartkit/internal/remote"
	"chartkit/internal/session"
)

var rootCmd = &cobra.Command{
	Use:   "chartkit",
	Short: "Offline-first lead-sheet chart editor",
	Long: `chartkit edits lead-sheet chord charts locally and syncs them to a
hosted store when connectivity allows.

The live chart and preferences persist in a session directory; named charts
live in a local SQLite library with daily backups; edits destined for the
remote store queue in a durable outbox and replay opportunistically.`,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "chart", Title: "Chart commands:"},
		&cobra.Group{ID: "library", Title: "Library commands:"},
		&cobra.Group{ID: "sync", Title: "Sync commands:"},
	)
	rootCmd.AddCommand(
		chartCmd,
		prefsCmd,
		libraryCmd,
		outboxCmd,
		syncCmd,
		daemonCmd,
		shareCmd,
	)
}

// fatal prints an error and exits, the shared failure path for commands.
func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fatal("loading config: %v", err)
	}
	return cfg
}

func openSession(cfg *config.Config) *session.Store {
	kv, err := kvstore.NewFileStore(cfg.SessionDir())
	if err != nil {
		fatal("opening session storage: %v", err)
	}
	return session.New(kv, nil)
}

func openLibrary(cfg *config.Config) *library.Store {
	opts := library.DefaultOptions()
	opts.SaveInterval = cfg.Library.SaveInterval
	opts.MaxChartBytes = cfg.Library.MaxChartBytes
	lib, err := library.Open(cfg.LibraryPath(), opts)
	if err != nil {
		fatal("opening library: %v", err)
	}
	return lib
}

func openOutbox(cfg *config.Config) *outbox.Queue {
	q, err := outbox.Open(cfg.OutboxPath())
	if err != nil {
		fatal("opening outbox: %v", err)
	}
	return q
}

func newRemote(cfg *config.Config) *remote.Client {
	return remote.New(remote.Config{
		URL:   cfg.Remote.URL,
		Key:   cfg.Remote.Key,
		Token: cfg.Remote.Token,
	})
}
