package tui

import "github.com/charmbracelet/lipgloss"

var (
	textPrimaryColor = lipgloss.AdaptiveColor{Light: "#333333", Dark: "#CCCCCC"}
	textMutedColor   = lipgloss.AdaptiveColor{Light: "#888888", Dark: "#696969"}
	successColor     = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	warningColor     = lipgloss.AdaptiveColor{Light: "#FECA57", Dark: "#FECA57"}
	errorColor       = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF8787"}
	borderColor      = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#696969"}

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(textPrimaryColor)
	mutedStyle   = lipgloss.NewStyle().Foreground(textMutedColor)
	warnStyle    = lipgloss.NewStyle().Foreground(warningColor)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor)
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(successColor)

	frameStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor)
)
