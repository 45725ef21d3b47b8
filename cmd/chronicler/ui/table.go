// Package ui renders chronicler's terminal output: titled tables and
// status lines styled with lipgloss.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("14")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("8"))

	cellStyle = lipgloss.NewStyle().
			PaddingRight(2)

	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Table is a titled table with a header row.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// Render lays the table out with per-column widths.
func (t Table) Render() string {
	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	var sb strings.Builder
	if t.Title != "" {
		sb.WriteString(titleStyle.Render(t.Title))
		sb.WriteString("\n")
	}
	sb.WriteString(headerStyle.Render(renderRow(t.Headers, widths)))
	sb.WriteString("\n")
	for _, row := range t.Rows {
		sb.WriteString(renderRow(row, widths))
		sb.WriteString("\n")
	}
	return sb.String()
}

func renderRow(cells []string, widths []int) string {
	parts := make([]string, len(widths))
	for i := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		parts[i] = cellStyle.Width(widths[i] + 2).Render(cell)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

// OK renders a success marker with text.
func OK(text string) string {
	return okStyle.Render("✓ " + text)
}

// Fail renders a failure marker with text.
func Fail(text string) string {
	return failStyle.Render("✗ " + text)
}

// Dim renders de-emphasized text.
func Dim(text string) string {
	return dimStyle.Render(text)
}
