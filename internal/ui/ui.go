// Package ui provides terminal styling helpers for the CLI.
package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	noColor = termenv.EnvNoColor()
)

// RenderPass styles a success indicator.
func RenderPass(s string) string { return render(passStyle, s) }

// RenderFail styles a failure indicator.
func RenderFail(s string) string { return render(failStyle, s) }

// RenderAccent styles a highlighted fragment.
func RenderAccent(s string) string { return render(accentStyle, s) }

// RenderDim styles de-emphasized text.
func RenderDim(s string) string { return render(dimStyle, s) }

func render(style lipgloss.Style, s string) string {
	if noColor {
		return s
	}
	return style.Render(s)
}
