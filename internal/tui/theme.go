// Package tui renders worker state for operators: a styled journal table
// and a live monitor that polls the ops server.
package tui

import "github.com/charmbracelet/lipgloss"

// Theme centralizes all styling.
type Theme struct {
	StatusOK     lipgloss.Style
	StatusFailed lipgloss.Style

	Border lipgloss.Style
	Title  lipgloss.Style
	Header lipgloss.Style
	Dim    lipgloss.Style
}

// NewDefaultTheme returns the default color scheme.
func NewDefaultTheme() Theme {
	purple := lipgloss.Color("#874BFD")

	return Theme{
		StatusOK:     lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		StatusFailed: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),

		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(purple),
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Padding(0, 1),
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#61AFEF")),
		Dim: lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
	}
}
