package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"chartkit/internal/chart"
	"chartkit/internal/transpose"
	"chartkit/internal/ui"
)

var chartCmd = &cobra.Command{
	Use:     "chart",
	GroupID: "chart",
	Short:   "Edit the live chart",
	Long: `Work on the chart currently being edited.

The live chart persists in the session directory after every change, so these
commands compose across invocations.`,
}

var chartNewTemplate string

var chartNewCmd = &cobra.Command{
	Use:   "new [title]",
	Short: "Start a new chart",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		store := openSession(cfg)

		var c *chart.Chart
		if chartNewTemplate != "" {
			tmpl, err := chart.Template(chartNewTemplate)
			if err != nil {
				fatal("%v (templates: %s)", err, strings.Join(chart.TemplateNames, ", "))
			}
			c = tmpl
		} else {
			c = chart.Empty()
		}
		if len(args) == 1 {
			c.Title = args[0]
		}
		store.SetChart(c)
		fmt.Printf("%s New chart %q\n", ui.RenderPass("✓"), c.Title)
	},
}

var chartShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the live chart as JSON",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		store := openSession(cfg)
		data, err := store.ExportJSON()
		if err != nil {
			fatal("exporting chart: %v", err)
		}
		fmt.Println(string(data))
	},
}

var chartExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export the live chart to a JSON file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		store := openSession(cfg)
		if err := store.Chart().WriteFile(args[0]); err != nil {
			fatal("exporting chart: %v", err)
		}
		fmt.Printf("%s Exported to %s\n", ui.RenderPass("✓"), args[0])
	},
}

var chartImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the live chart from a JSON file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		store := openSession(cfg)
		data, err := os.ReadFile(args[0])
		if err != nil {
			fatal("reading %s: %v", args[0], err)
		}
		if err := store.ImportJSON(data); err != nil {
			fatal("importing chart: %v", err)
		}
		fmt.Printf("%s Imported %q\n", ui.RenderPass("✓"), store.Chart().Title)
	},
}

var chartTransposeFlats bool

var chartTransposeCmd = &cobra.Command{
	Use:   "transpose <semitones>",
	Short: "Transpose every chord in the chart",
	Long: `Shift every chord root by the given number of semitones (negative for
down). The offset accumulates in the manual-transpose counter; use
"chart reset-transpose" to undo the accumulated manual offset.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			fatal("invalid semitone count %q", args[0])
		}
		cfg := loadConfig()
		store := openSession(cfg)
		store.Transpose(n, !chartTransposeFlats)
		fmt.Printf("%s Transposed by %+d (manual offset now %+d)\n",
			ui.RenderPass("✓"), n, store.ManualTranspose())
	},
}

var chartResetTransposeCmd = &cobra.Command{
	Use:   "reset-transpose",
	Short: "Undo the accumulated manual transposition",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		store := openSession(cfg)
		before := store.ManualTranspose()
		store.ResetTranspose()
		if before == 0 {
			fmt.Println("Nothing to reset")
			return
		}
		fmt.Printf("%s Undid manual offset of %+d\n", ui.RenderPass("✓"), before)
	},
}

var chartInstrumentFlats bool

var chartInstrumentCmd = &cobra.Command{
	Use:   "instrument <C|Bb|Eb|F>",
	Short: "Switch the transposing-instrument view",
	Long: `Re-spell the chart for a transposing instrument. The view change is
invertible and does not touch the manual-transpose counter.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		inst, err := transpose.ParseInstrument(args[0])
		if err != nil {
			fatal("%v", err)
		}
		cfg := loadConfig()
		store := openSession(cfg)
		store.SetInstrument(inst, !chartInstrumentFlats)
		fmt.Printf("%s Instrument view: %s\n", ui.RenderPass("✓"), inst)
	},
}

var chartChordSecondary bool

var chartChordCmd = &cobra.Command{
	Use:   "chord <section> <measure> <beat> [chord]",
	Short: "Set or clear a chord on a beat",
	Args:  cobra.RangeArgs(3, 4),
	Run: func(cmd *cobra.Command, args []string) {
		nums := make([]int, 3)
		for i := 0; i < 3; i++ {
			n, err := strconv.Atoi(args[i])
			if err != nil {
				fatal("invalid index %q", args[i])
			}
			nums[i] = n
		}
		var chord string
		if len(args) == 4 {
			chord = args[3]
		}

		cfg := loadConfig()
		store := openSession(cfg)
		store.SelectMeasure(nums[0], nums[1])

		var ok bool
		if chartChordSecondary {
			ok = store.SetSecondary(nums[2], chord)
		} else {
			ok = store.SetChord(nums[2], chord)
		}
		if !ok {
			fatal("no beat %d at section %d, measure %d", nums[2], nums[0], nums[1])
		}
		if chord == "" {
			fmt.Printf("%s Cleared beat %d\n", ui.RenderPass("✓"), nums[2])
			return
		}
		fmt.Printf("%s Beat %d: %s\n", ui.RenderPass("✓"), nums[2], ui.RenderAccent(chord))
	},
}

var chartMarkerCmd = &cobra.Command{
	Use:   "marker <section> <measure> [marker]",
	Short: "Set or clear a measure's marker",
	Long: `Assign a marker (%, ||:, :||, Segno, Coda, Fine, D.C., D.S., To Coda) to
a measure, or clear it when no marker is given. Chart-wide marker rules apply:
one of each navigation marker per chart, and Fine/D.S./To Coda require their
counterpart to exist first.`,
	Args: cobra.RangeArgs(2, 3),
	Run: func(cmd *cobra.Command, args []string) {
		si, err := strconv.Atoi(args[0])
		if err != nil {
			fatal("invalid section index %q", args[0])
		}
		mi, err := strconv.Atoi(args[1])
		if err != nil {
			fatal("invalid measure index %q", args[1])
		}

		var marker chart.Marker
		if len(args) == 3 {
			marker = chart.Marker(args[2])
			if !marker.IsValid() {
				fatal("unknown marker %q", args[2])
			}
		}

		cfg := loadConfig()
		store := openSession(cfg)

		var rejection string
		defer store.OnMessage(func(msg string) { rejection = msg })()

		store.SelectMeasure(si, mi)
		if !store.SetMarker(marker) {
			if rejection != "" {
				fatal("%s", rejection)
			}
			fatal("no measure at section %d, measure %d", si, mi)
		}
		if marker == "" {
			fmt.Printf("%s Cleared marker\n", ui.RenderPass("✓"))
			return
		}
		fmt.Printf("%s Set %s\n", ui.RenderPass("✓"), marker)
	},
}

var chartVoltaCmd = &cobra.Command{
	Use:   "volta <section> <number> <from> <to>",
	Short: "Set a repeat-ending bracket",
	Long: `Set volta 1 or 2 over the measure range [from, to] of a section. Any
existing volta of the same number in the section is cleared first; an invalid
range keeps just the clear.`,
	Args: cobra.ExactArgs(4),
	Run: func(cmd *cobra.Command, args []string) {
		nums := make([]int, 4)
		for i, a := range args {
			n, err := strconv.Atoi(a)
			if err != nil {
				fatal("invalid number %q", a)
			}
			nums[i] = n
		}
		cfg := loadConfig()
		store := openSession(cfg)
		if err := checkVoltaInput(store.Chart(), nums[0], nums[1]); err != nil {
			fatal("%v", err)
		}
		if store.SetVolta(nums[0], nums[1], nums[2], nums[3]) {
			fmt.Printf("%s Volta %d spans measures %d-%d\n", ui.RenderPass("✓"), nums[1], nums[2], nums[3])
			return
		}
		fmt.Printf("%s Volta %d cleared (range not assigned)\n", ui.RenderDim("•"), nums[1])
	},
}

// checkVoltaInput rejects the inputs SetVolta ignores outright, so a false
// return from it can only mean a valid clear with an unassignable range.
func checkVoltaInput(c *chart.Chart, section, number int) error {
	if number != 1 && number != 2 {
		return fmt.Errorf("volta number must be 1 or 2, got %d", number)
	}
	if section < 0 || section >= len(c.Sections) {
		return fmt.Errorf("no section %d (chart has %d)", section, len(c.Sections))
	}
	return nil
}

func init() {
	chartNewCmd.Flags().StringVar(&chartNewTemplate, "template", "",
		"start from a template ("+strings.Join(chart.TemplateNames, ", ")+")")
	chartTransposeCmd.Flags().BoolVar(&chartTransposeFlats, "flats", false, "prefer flat spellings")
	chartInstrumentCmd.Flags().BoolVar(&chartInstrumentFlats, "flats", false, "prefer flat spellings")
	chartChordCmd.Flags().BoolVar(&chartChordSecondary, "secondary", false, "set the secondary chord slot")

	chartCmd.AddCommand(
		chartNewCmd,
		chartShowCmd,
		chartExportCmd,
		chartImportCmd,
		chartTransposeCmd,
		chartResetTransposeCmd,
		chartInstrumentCmd,
		chartChordCmd,
		chartMarkerCmd,
		chartVoltaCmd,
	)
}
