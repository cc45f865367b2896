package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette shared with the rest of the CLI
var (
	Primary     = lipgloss.Color("#8BC34A")
	Accent      = lipgloss.Color("#2196F3")
	Muted       = lipgloss.Color("#6b7785")
	Warning     = lipgloss.Color("#FFC107")
	Destructive = lipgloss.Color("#e53935")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(Primary)
	labelStyle   = lipgloss.NewStyle().Foreground(Accent).Width(20)
	valueStyle   = lipgloss.NewStyle()
	mutedStyle   = lipgloss.NewStyle().Foreground(Muted)
	successStyle = lipgloss.NewStyle().Foreground(Primary)
	warnStyle    = lipgloss.NewStyle().Foreground(Warning)
	errorStyle   = lipgloss.NewStyle().Foreground(Destructive)
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(Accent)
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Muted).
			Padding(0, 1)
)

// kv renders one aligned label/value line.
func kv(label string, value any) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(fmt.Sprint(value)))
}

// table renders rows under a bold header with fixed column widths.
func table(widths []int, header []string, rows [][]string) string {
	render := func(cells []string, style lipgloss.Style) string {
		cols := make([]string, len(cells))
		for i, c := range cells {
			w := 12
			if i < len(widths) {
				w = widths[i]
			}
			cols[i] = style.Width(w).Render(c)
		}
		return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
	}

	lines := []string{render(header, headerStyle)}
	for _, r := range rows {
		lines = append(lines, render(r, valueStyle))
	}
	return strings.Join(lines, "\n")
}
