package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"chartkit/internal/daemon"
	"chartkit/internal/dashboard"
	"chartkit/internal/syncer"
)

var (
	daemonPort      int
	daemonNoRemote  bool
	daemonDashboard bool
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Run the background sync daemon",
	Long: `Run the long-lived process that watches the outbox for queued mutations,
drains them to the remote store with debouncing, retries on connectivity
regain, takes the daily library backup, and serves a WebSocket dashboard
with live sync status and Prometheus metrics.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if !cmd.Flags().Changed("port") {
			daemonPort = cfg.Daemon.Port
		}

		logger := log.New(os.Stderr, "[daemon] ", log.LstdFlags)
		if cfg.Daemon.LogFile != "" {
			logger.SetOutput(&lumberjack.Logger{
				Filename:   cfg.Daemon.LogFile,
				MaxSize:    10, // MB
				MaxBackups: 3,
				MaxAge:     28, // days
				Compress:   true,
			})
		}

		lib := openLibrary(cfg)
		defer lib.Close()
		q := openOutbox(cfg)
		defer q.Close()

		client := newRemote(cfg)
		orch := syncer.New(q, client, logger)

		dcfg := daemon.DefaultConfig()
		dcfg.DebounceInterval = cfg.Daemon.Debounce
		if cfg.Daemon.BackupCheck > 0 {
			dcfg.BackupCheckInterval = cfg.Daemon.BackupCheck
		}
		dcfg.Logger = logger
		if !daemonNoRemote && !client.Disabled() {
			dcfg.Probe = syncer.DialProbe(client.Host(), 5*time.Second)
		}

		d, err := daemon.New(lib, orch, cfg.OutboxPath(), dcfg)
		if err != nil {
			fatal("starting daemon: %v", err)
		}

		if daemonDashboard {
			scfg := dashboard.DefaultConfig()
			scfg.Port = daemonPort
			scfg.Logger = logger
			srv := dashboard.NewServer(lib, q, orch, scfg)
			if err := srv.Start(); err != nil {
				fatal("starting dashboard: %v", err)
			}
			defer srv.Stop()
			fmt.Printf("Dashboard listening on %s\n", srv.GetAddr())
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := d.Run(ctx); err != nil && err != context.Canceled {
			fatal("daemon exited: %v", err)
		}
		logger.Println("Daemon stopped")
	},
}

func init() {
	daemonCmd.Flags().IntVar(&daemonPort, "port", 8080, "dashboard listen port")
	daemonCmd.Flags().BoolVar(&daemonNoRemote, "no-remote", false, "skip connectivity probing")
	daemonCmd.Flags().BoolVar(&daemonDashboard, "dashboard", true, "serve the WebSocket dashboard")
}
