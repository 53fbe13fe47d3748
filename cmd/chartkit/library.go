package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"chartkit/internal/library"
	"chartkit/internal/ui"
)

var libraryCmd = &cobra.Command{
	Use:     "library",
	GroupID: "library",
	Short:   "Manage the local chart library",
	Long: `Save, list and restore named charts in the local SQLite library.

Every save also queues an outbox mutation so the chart eventually reaches the
remote store. Deletion is soft: trashed charts disappear from listings but
survive in backups until restored.`,
}

var (
	librarySaveTitle string
	librarySaveTags  []string
	librarySaveID    string
)

var librarySaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save the live chart to the library",
	Long: `Snapshot the live chart into the library. With --id the existing entry is
overwritten; otherwise a new entry is created. When run interactively without
--title, prompts for title and tags.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		store := openSession(cfg)
		lib := openLibrary(cfg)
		defer lib.Close()

		title := librarySaveTitle
		tags := librarySaveTags
		if title == "" && term.IsTerminal(int(os.Stdin.Fd())) {
			var tagLine string
			form := huh.NewForm(huh.NewGroup(
				huh.NewInput().Title("Title").Value(&title),
				huh.NewInput().Title("Tags (comma separated)").Value(&tagLine),
			))
			if err := form.Run(); err != nil {
				fatal("prompt failed: %v", err)
			}
			tags = splitTags(tagLine)
		}
		if title == "" {
			title = store.Chart().Title
		}
		if title == "" {
			title = "Untitled"
		}

		id, err := lib.SaveChart(store.Chart(), title, tags, librarySaveID)
		if err != nil {
			fatal("saving chart: %v", err)
		}

		q := openOutbox(cfg)
		defer q.Close()
		if err := q.QueueMutation(id, store.Chart(), time.Now().UnixMilli()); err != nil {
			fatal("queuing sync mutation: %v", err)
		}

		fmt.Printf("%s Saved %q as %s\n", ui.RenderPass("✓"), title, ui.RenderAccent(id))
	},
}

var (
	libraryListTitle    string
	libraryListTag      string
	libraryListStatus   string
	libraryListFavorite bool
	libraryListFormat   string
)

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List library charts",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		lib := openLibrary(cfg)
		defer lib.Close()

		f := library.Filter{Title: libraryListTitle, Tag: libraryListTag}
		if libraryListStatus != "" {
			status, err := library.ParseStatus(libraryListStatus)
			if err != nil {
				fatal("%v", err)
			}
			f.Status = status
		}
		if cmd.Flags().Changed("favorite") {
			f.Favorite = &libraryListFavorite
		}

		items, err := lib.ListCharts(f)
		if err != nil {
			fatal("listing charts: %v", err)
		}

		switch libraryListFormat {
		case "table", "":
			if len(items) == 0 {
				fmt.Println("No charts found")
				return
			}
			for _, it := range items {
				fav := " "
				if it.Favorite {
					fav = "★"
				}
				line := fmt.Sprintf("%s %-36s %s", fav, it.ID, it.Title)
				if len(it.Tags) > 0 {
					line += "  " + ui.RenderDim("["+strings.Join(it.Tags, ", ")+"]")
				}
				if it.Status != library.StatusActive {
					line += "  " + ui.RenderDim(string(it.Status))
				}
				fmt.Println(line)
			}
		case "json":
			out, err := json.MarshalIndent(items, "", "  ")
			if err != nil {
				fatal("encoding output: %v", err)
			}
			fmt.Println(string(out))
		case "yaml":
			out, err := yaml.Marshal(items)
			if err != nil {
				fatal("encoding output: %v", err)
			}
			fmt.Print(string(out))
		default:
			fatal("unknown format %q (want table, json or yaml)", libraryListFormat)
		}
	},
}

var libraryShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a library chart as JSON",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		lib := openLibrary(cfg)
		defer lib.Close()

		c, err := lib.GetChart(args[0])
		if err != nil {
			fatal("loading chart: %v", err)
		}
		if c == nil {
			fatal("no chart with id %s", args[0])
		}
		data, err := c.Encode()
		if err != nil {
			fatal("encoding chart: %v", err)
		}
		fmt.Println(string(data))
	},
}

var libraryOpenCmd = &cobra.Command{
	Use:   "open <id>",
	Short: "Load a library chart into the live session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		lib := openLibrary(cfg)
		defer lib.Close()

		c, err := lib.GetChart(args[0])
		if err != nil {
			fatal("loading chart: %v", err)
		}
		if c == nil {
			fatal("no chart with id %s", args[0])
		}
		store := openSession(cfg)
		store.SetChart(c)
		fmt.Printf("%s Opened %q\n", ui.RenderPass("✓"), c.Title)
	},
}

var libraryFavoriteRemove bool

var libraryFavoriteCmd = &cobra.Command{
	Use:   "favorite <id>",
	Short: "Mark or unmark a chart as a favorite",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		lib := openLibrary(cfg)
		defer lib.Close()

		if err := lib.MarkFavorite(args[0], !libraryFavoriteRemove); err != nil {
			fatal("updating favorite: %v", err)
		}
		if libraryFavoriteRemove {
			fmt.Printf("%s Unfavorited %s\n", ui.RenderPass("✓"), args[0])
			return
		}
		fmt.Printf("%s Favorited %s\n", ui.RenderPass("✓"), args[0])
	},
}

var libraryStatusCmd = &cobra.Command{
	Use:   "status <id> <active|archived|trashed>",
	Short: "Change a chart's lifecycle status",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		status, err := library.ParseStatus(args[1])
		if err != nil {
			fatal("%v", err)
		}
		cfg := loadConfig()
		lib := openLibrary(cfg)
		defer lib.Close()

		if err := lib.SetStatus(args[0], status); err != nil {
			fatal("updating status: %v", err)
		}
		fmt.Printf("%s %s is now %s\n", ui.RenderPass("✓"), args[0], status)
	},
}

var libraryBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot the whole library now",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		lib := openLibrary(cfg)
		defer lib.Close()

		ts, err := lib.Backup()
		if err != nil {
			fatal("creating backup: %v", err)
		}
		fmt.Printf("%s Backup %d (%s)\n", ui.RenderPass("✓"), ts,
			time.UnixMilli(ts).Format(time.RFC3339))
	},
}

var libraryBackupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "List backups, newest first",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		lib := openLibrary(cfg)
		defer lib.Close()

		stamps, err := lib.ListBackups()
		if err != nil {
			fatal("listing backups: %v", err)
		}
		if len(stamps) == 0 {
			fmt.Println("No backups yet")
			return
		}
		for _, ts := range stamps {
			fmt.Printf("%d  %s\n", ts, ui.RenderDim(time.UnixMilli(ts).Format(time.RFC3339)))
		}
	},
}

var libraryRestoreAt string

var libraryRestoreCmd = &cobra.Command{
	Use:   "restore <id>",
	Short: "Restore one chart from a backup",
	Long: `Copy a chart from a backup back into the library, overwriting the current
entry. --at selects the backup: a numeric backup timestamp, or a phrase like
"yesterday" or "last friday" (picks the newest backup at or before that time).
Defaults to the newest backup.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		lib := openLibrary(cfg)
		defer lib.Close()

		ts, err := resolveBackup(lib, libraryRestoreAt)
		if err != nil {
			fatal("%v", err)
		}

		ok, err := lib.RestoreFromBackup(ts, args[0])
		if err != nil {
			fatal("restoring chart: %v", err)
		}
		if !ok {
			fatal("chart %s not found in backup %d", args[0], ts)
		}
		fmt.Printf("%s Restored %s from backup %d\n", ui.RenderPass("✓"), args[0], ts)
	},
}

// resolveBackup maps --at to a backup timestamp: empty means newest, digits
// are taken literally, anything else is parsed as a natural-language time and
// matched to the newest backup at or before it.
func resolveBackup(lib *library.Store, at string) (int64, error) {
	stamps, err := lib.ListBackups()
	if err != nil {
		return 0, fmt.Errorf("listing backups: %w", err)
	}
	if len(stamps) == 0 {
		return 0, fmt.Errorf("no backups exist")
	}
	if at == "" {
		return stamps[0], nil
	}
	if ts, err := strconv.ParseInt(at, 10, 64); err == nil {
		return ts, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	r, err := w.Parse(at, time.Now())
	if err != nil || r == nil {
		return 0, fmt.Errorf("cannot parse time %q", at)
	}
	cutoff := r.Time.UnixMilli()
	for _, ts := range stamps { // newest first
		if ts <= cutoff {
			return ts, nil
		}
	}
	return 0, fmt.Errorf("no backup at or before %s", r.Time.Format(time.RFC3339))
}

func splitTags(line string) []string {
	var tags []string
	for _, t := range strings.Split(line, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func init() {
	librarySaveCmd.Flags().StringVar(&librarySaveTitle, "title", "", "chart title")
	librarySaveCmd.Flags().StringSliceVar(&librarySaveTags, "tag", nil, "tag (repeatable)")
	librarySaveCmd.Flags().StringVar(&librarySaveID, "id", "", "overwrite an existing entry")

	libraryListCmd.Flags().StringVar(&libraryListTitle, "title", "", "filter by title substring")
	libraryListCmd.Flags().StringVar(&libraryListTag, "tag", "", "filter by tag substring")
	libraryListCmd.Flags().StringVar(&libraryListStatus, "status", "", "filter by status")
	libraryListCmd.Flags().BoolVar(&libraryListFavorite, "favorite", false, "filter by favorite flag")
	libraryListCmd.Flags().StringVar(&libraryListFormat, "format", "table", "output format (table, json, yaml)")

	libraryFavoriteCmd.Flags().BoolVar(&libraryFavoriteRemove, "remove", false, "remove the favorite mark")

	libraryRestoreCmd.Flags().StringVar(&libraryRestoreAt, "at", "", "backup timestamp or natural-language time")

	libraryCmd.AddCommand(
		librarySaveCmd,
		libraryListCmd,
		libraryShowCmd,
		libraryOpenCmd,
		libraryFavoriteCmd,
		libraryStatusCmd,
		libraryBackupCmd,
		libraryBackupsCmd,
		libraryRestoreCmd,
	)
}
