package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/crimson-sun/fortiwatch/internal/model"
)

var (
	// Colors
	colorPrimary = lipgloss.Color("#2563EB")
	colorSuccess = lipgloss.Color("#22C55E")
	colorWarning = lipgloss.Color("#F59E0B")
	colorDanger  = lipgloss.Color("#EF4444")
	colorInfo    = lipgloss.Color("#38BDF8")
	colorMuted   = lipgloss.Color("#6B7280")
	colorBorder  = lipgloss.Color("#374151")

	styleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(colorPrimary).
			Padding(0, 1)

	styleHelp = lipgloss.NewStyle().
			Foreground(colorMuted).
			Padding(0, 1)

	styleError = lipgloss.NewStyle().
			Foreground(colorDanger).
			Bold(true)

	styleBadge = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#000000")).
			Background(colorWarning).
			Padding(0, 1)

	styleCard = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 2).
			Width(20)

	styleCardLabel = lipgloss.NewStyle().
			Foreground(colorMuted)

	styleTableHeader = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#FFFFFF")).
				Background(colorPrimary)

	styleRowSelected = lipgloss.NewStyle().
				Background(lipgloss.Color("#1F2937")).
				Foreground(lipgloss.Color("#FFFFFF"))
)

func styleMuted() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(colorMuted)
}

func levelColor(lv model.Level) lipgloss.Color {
	switch lv {
	case model.LevelError:
		return colorDanger
	case model.LevelWarning:
		return colorWarning
	case model.LevelSuccess:
		return colorSuccess
	default:
		return colorInfo
	}
}

// LevelBadge renders a level in its color.
func LevelBadge(lv model.Level) string {
	return lipgloss.NewStyle().Foreground(levelColor(lv)).Bold(true).Render(string(lv))
}
