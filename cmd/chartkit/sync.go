package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"chartkit/internal/syncer"
	"chartkit/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Push queued mutations to the remote store",
	Long: `Drain the outbox against the remote store. Mutations that fail stay
queued for the next attempt; successfully delivered ones are removed.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		q := openOutbox(cfg)
		defer q.Close()

		client := newRemote(cfg)

		pending, err := q.Len()
		if err != nil {
			fatal("reading outbox: %v", err)
		}

		if client.Disabled() {
			fmt.Println(ui.RenderDim("Remote sync is disabled (no remote.url/remote.key configured)"))
			fmt.Printf("%d mutation(s) remain queued\n", pending)
			return
		}

		orch := syncer.New(q, client, nil)

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()
		orch.SyncNow(ctx)

		remaining, err := q.Len()
		if err != nil {
			fatal("reading outbox: %v", err)
		}
		delivered := pending - remaining

		if orch.Status() == syncer.StatusError {
			fatal("sync failed after delivering %d of %d mutation(s); %d still queued",
				delivered, pending, remaining)
		}
		fmt.Printf("%s Delivered %d mutation(s), %d remaining\n",
			ui.RenderPass("✓"), delivered, remaining)
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the outbox depth and remote configuration",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		q := openOutbox(cfg)
		defer q.Close()

		n, err := q.Len()
		if err != nil {
			fatal("reading outbox: %v", err)
		}
		client := newRemote(cfg)

		if client.Disabled() {
			fmt.Printf("Remote:  %s\n", ui.RenderDim("disabled"))
		} else {
			fmt.Printf("Remote:  %s\n", cfg.Remote.URL)
		}
		fmt.Printf("Pending: %d mutation(s)\n", n)
	},
}

func init() {
	syncCmd.AddCommand(syncStatusCmd)
}
