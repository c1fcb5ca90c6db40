// Package ui renders CLI output: styled tables on a terminal, tab-separated
// text when piped.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	// Accent highlights headers and selected items.
	Accent = lipgloss.NewStyle().Foreground(lipgloss.Color("#A78BFA"))

	// Muted style for secondary info such as ids and hints.
	Muted = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))

	// Bold style for emphasis
	Bold = lipgloss.NewStyle().Bold(true)

	// Error style for failures written to stderr.
	Error = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8"))
)
