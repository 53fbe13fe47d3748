package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"chartkit/internal/ui"
)

var outboxCmd = &cobra.Command{
	Use:     "outbox",
	GroupID: "sync",
	Short:   "Inspect the pending sync queue",
}

var outboxListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued mutations, oldest first",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		q := openOutbox(cfg)
		defer q.Close()

		items, err := q.List()
		if err != nil {
			fatal("listing outbox: %v", err)
		}
		if len(items) == 0 {
			fmt.Println("Outbox is empty")
			return
		}
		for _, it := range items {
			fmt.Printf("%-36s %q  %s\n", it.ID, it.Chart.Title,
				ui.RenderDim(time.UnixMilli(it.UpdatedAt).Format(time.RFC3339)))
		}
	},
}

var outboxClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every queued mutation without syncing",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		q := openOutbox(cfg)
		defer q.Close()

		n, err := q.Len()
		if err != nil {
			fatal("reading outbox: %v", err)
		}
		if err := q.Clear(); err != nil {
			fatal("clearing outbox: %v", err)
		}
		fmt.Printf("%s Dropped %d pending mutation(s)\n", ui.RenderPass("✓"), n)
	},
}

func init() {
	outboxCmd.AddCommand(outboxListCmd, outboxClearCmd)
}
