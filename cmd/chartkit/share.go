package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"chartkit/internal/remote"
	"chartkit/internal/ui"
)

var shareCmd = &cobra.Command{
	Use:     "share",
	GroupID: "sync",
	Short:   "Manage chart shares on the remote store",
	Long: `Grant, revoke and list per-chart access for other users. Shares live on
the remote store only, so these commands require remote credentials.`,
}

var shareAddRole string

var shareAddCmd = &cobra.Command{
	Use:   "add <chart-id> <email>",
	Short: "Share a chart with a user",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		client := newRemote(cfg)
		if client.Disabled() {
			fatal("sharing requires remote.url and remote.key")
		}
		role := remote.ShareRole(shareAddRole)
		if err := client.ShareChart(cmd.Context(), args[0], args[1], role); err != nil {
			fatal("sharing chart: %v", err)
		}
		fmt.Printf("%s Shared %s with %s as %s\n", ui.RenderPass("✓"), args[0], args[1], role)
	},
}

var shareRevokeCmd = &cobra.Command{
	Use:   "revoke <share-id>",
	Short: "Revoke a share",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		client := newRemote(cfg)
		if client.Disabled() {
			fatal("sharing requires remote.url and remote.key")
		}
		if err := client.RevokeShare(cmd.Context(), args[0]); err != nil {
			fatal("revoking share: %v", err)
		}
		fmt.Printf("%s Revoked %s\n", ui.RenderPass("✓"), args[0])
	},
}

var shareListCmd = &cobra.Command{
	Use:   "list <chart-id>",
	Short: "List a chart's shares",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		client := newRemote(cfg)
		if client.Disabled() {
			fatal("sharing requires remote.url and remote.key")
		}
		shares, err := client.ListShares(cmd.Context(), args[0])
		if err != nil {
			fatal("listing shares: %v", err)
		}
		if len(shares) == 0 {
			fmt.Println("No shares")
			return
		}
		for _, s := range shares {
			fmt.Printf("%-36s %-30s %s\n", s.ID, s.Email, ui.RenderDim(string(s.Role)))
		}
	},
}

func init() {
	shareAddCmd.Flags().StringVar(&shareAddRole, "role", string(remote.RoleReader),
		"access role (editor, commenter, reader)")

	shareCmd.AddCommand(shareAddCmd, shareRevokeCmd, shareListCmd)
}
