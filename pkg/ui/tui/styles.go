package tui

import (
	"github.com/charmbracelet/lipgloss"

	"phototimer/pkg/session"
)

var (
	// Darkroom palette
	accentCyan    = lipgloss.Color("#5FD7FF")
	accentMagenta = lipgloss.Color("#D75FAF")
	accentGreen   = lipgloss.Color("#87D75F")
	accentYellow  = lipgloss.Color("#FFD75F")
	accentOrange  = lipgloss.Color("#FF8700")
	alertRed      = lipgloss.Color("#FF5F5F")
	darkBg        = lipgloss.Color("#121212")
	dimWhite      = lipgloss.Color("#B0B0B0")

	logoStyle = lipgloss.NewStyle().
			Foreground(accentCyan).
			Bold(true).
			Padding(0, 0, 1, 0)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentMagenta).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Background(accentMagenta).
			Foreground(darkBg).
			Bold(true).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(accentCyan).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(accentYellow)

	dimStyle = lipgloss.NewStyle().
			Foreground(dimWhite)

	successStyle = lipgloss.NewStyle().
			Foreground(accentGreen).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(alertRed).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(accentOrange).
			Bold(true)

	listItemStyle = lipgloss.NewStyle().
			PaddingLeft(2).
			Foreground(dimWhite)

	listCursorStyle = lipgloss.NewStyle().
			Foreground(accentYellow).
			Bold(true)

	listCurrentStyle = lipgloss.NewStyle().
				Foreground(accentGreen).
				Bold(true)

	logTimestampStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#666666"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Padding(1, 0, 0, 1)
)

// StatusStyle returns the badge style for a rotation status
func StatusStyle(s session.Status) lipgloss.Style {
	switch s {
	case session.StatusRunning:
		return successStyle
	case session.StatusPaused:
		return warningStyle
	case session.StatusEnded:
		return lipgloss.NewStyle().Foreground(accentMagenta).Bold(true)
	default:
		return dimStyle.Bold(true)
	}
}
