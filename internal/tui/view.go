package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/crimson-sun/fortiwatch/internal/model"
	"github.com/crimson-sun/fortiwatch/internal/pipeline"
)

const (
	colTime   = 19
	colLevel  = 8
	colSource = 16
	colAction = 10
)

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(m.renderCards())
	b.WriteString("\n")

	if m.search.Focused() || m.search.Value() != "" {
		b.WriteString("  " + m.search.View())
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(styleError.Render("  " + m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(m.renderTable())
	b.WriteString("\n")

	help := styleHelp.Render("  [↑/↓] Navigate  [/] Search  [esc] Clear  [r] Refresh  [q] Quit")
	b.WriteString(help)
	return b.String()
}

func (m Model) renderHeader() string {
	title := "  FortiGate Security Monitor"
	if m.title != "" {
		title += "  " + m.title
	}
	status := m.state.String()
	if m.mock {
		status = styleBadge.Render("MOCK") + " " + status
	}
	gap := m.width - lipgloss.Width(title) - lipgloss.Width(status) - 2
	if gap < 1 {
		gap = 1
	}
	return styleHeader.Width(m.width).Render(title + strings.Repeat(" ", gap) + status)
}

func (m Model) renderCards() string {
	s := pipeline.Summarize(m.records)
	card := func(label string, n int, color lipgloss.Color) string {
		value := lipgloss.NewStyle().Bold(true).Foreground(color).Render(strconv.Itoa(n))
		return styleCard.Render(styleCardLabel.Render(label) + "\n" + value)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		card("Active Threats", s.Threats, colorDanger),
		card("Total Events", s.Total, colorPrimary),
		card("Blocked", s.Blocked, colorSuccess),
		card("Warnings", s.Warnings(), colorWarning),
	)
}

func (m Model) renderTable() string {
	var b strings.Builder

	msgWidth := m.width - colTime - colLevel - colSource - colAction - 15
	if msgWidth < 10 {
		msgWidth = 10
	}

	header := fmt.Sprintf("  %-*s │ %-*s │ %-*s │ %-*s │ %s",
		colTime, "Time", colLevel, "Level", colSource, "Source", msgWidth, "Message", "Action")
	b.WriteString(styleTableHeader.Width(m.width).Render(header))
	b.WriteString("\n")

	rows := m.visible()
	if len(rows) == 0 {
		msg := "  No logs to display"
		if m.search.Value() != "" {
			msg = "  No logs match the search"
		}
		b.WriteString(styleMuted().Render(msg))
		b.WriteString("\n")
		return b.String()
	}

	visibleRows := m.height - 16
	if visibleRows < 5 {
		visibleRows = 5
	}
	start := 0
	if m.selected >= visibleRows {
		start = m.selected - visibleRows + 1
	}
	end := start + visibleRows
	if end > len(rows) {
		end = len(rows)
	}

	for i := start; i < end; i++ {
		b.WriteString(m.renderRow(rows[i], msgWidth, i == m.selected))
		b.WriteString("\n")
	}
	if len(rows) > visibleRows {
		b.WriteString(styleMuted().Render(fmt.Sprintf("  Showing %d-%d of %d", start+1, end, len(rows))))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderRow(r model.Record, msgWidth int, selected bool) string {
	ts := r.Timestamp
	if t := r.Time(); !t.IsZero() {
		ts = t.Local().Format("2006-01-02 15:04:05")
	}
	level := LevelBadge(r.Level) + strings.Repeat(" ", max(0, colLevel-len(r.Level)))

	row := fmt.Sprintf("  %-*s │ %s │ %-*s │ %-*s │ %s",
		colTime, truncate(ts, colTime),
		level,
		colSource, truncate(r.Source, colSource),
		msgWidth, truncate(r.Message, msgWidth),
		truncate(r.Action, colAction),
	)
	if selected {
		return styleRowSelected.Width(m.width).Render(row)
	}
	return row
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
