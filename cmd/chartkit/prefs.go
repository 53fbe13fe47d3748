package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"chartkit/internal/session"
	"chartkit/internal/ui"
)

var prefsCmd = &cobra.Command{
	Use:     "prefs",
	GroupID: "chart",
	Short:   "View and change playback and display preferences",
}

var prefsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current preferences",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		store := openSession(cfg)

		fmt.Printf("tempo             %d\n", store.Tempo())
		fmt.Printf("master-volume     %g\n", store.MasterVolume())
		fmt.Printf("chord-volume      %g\n", store.ChordVolume())
		fmt.Printf("metronome-volume  %g\n", store.MetronomeVolume())
		fmt.Printf("metronome         %v\n", store.MetronomeOn())
		fmt.Printf("wave-shape        %s\n", store.WaveShape())
		fmt.Printf("theme             %s\n", store.Theme())
		fmt.Printf("font-size         %d\n", store.FontSize())
		fmt.Printf("show-secondary    %v\n", store.ShowSecondary())
	},
}

var prefsSetCmd = &cobra.Command{
	Use:   "set <name> <value>",
	Short: "Change one preference",
	Long: `Change a preference by name: tempo, master-volume, chord-volume,
metronome-volume, metronome, wave-shape, theme, font-size or show-secondary.
Changes persist in the session directory immediately.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		store := openSession(cfg)

		if err := setPref(store, args[0], args[1]); err != nil {
			fatal("%v", err)
		}
		fmt.Printf("%s %s = %s\n", ui.RenderPass("✓"), args[0], args[1])
	},
}

func setPref(store *session.Store, name, value string) error {
	switch name {
	case "tempo":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("tempo wants an integer, got %q", value)
		}
		store.SetTempo(n)
	case "master-volume", "chord-volume", "metronome-volume":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s wants a number, got %q", name, value)
		}
		switch name {
		case "master-volume":
			store.SetMasterVolume(v)
		case "chord-volume":
			store.SetChordVolume(v)
		default:
			store.SetMetronomeVolume(v)
		}
	case "metronome":
		on, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("metronome wants true or false, got %q", value)
		}
		store.SetMetronome(on)
	case "wave-shape":
		store.SetWaveShape(value)
	case "theme":
		store.SetTheme(value)
	case "font-size":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("font-size wants an integer, got %q", value)
		}
		store.SetFontSize(n)
	case "show-secondary":
		show, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("show-secondary wants true or false, got %q", value)
		}
		if show != store.ShowSecondary() {
			store.ToggleSecondary()
		}
	default:
		return fmt.Errorf("unknown preference %q", name)
	}
	return nil
}

func init() {
	prefsCmd.AddCommand(prefsShowCmd, prefsSetCmd)
}
