package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	okCell = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00"))

	badCell = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000"))
)

// Table represents a table with headers and rows
type Table struct {
	Headers []string
	Rows    [][]string
}

// NewTable creates a new table
func NewTable(headers ...string) *Table {
	return &Table{
		Headers: headers,
		Rows:    make([][]string, 0),
	}
}

// AddRow adds a row to the table
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

func (t *Table) widths() []int {
	colWidths := make([]int, len(t.Headers))
	for i, header := range t.Headers {
		colWidths[i] = lipgloss.Width(header)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(colWidths) && lipgloss.Width(cell) > colWidths[i] {
				colWidths[i] = lipgloss.Width(cell)
			}
		}
	}
	return colWidths
}

// Render renders the table with lipgloss styling. Cells reading "yes" or
// "no" are colored.
func (t *Table) Render() string {
	if len(t.Headers) == 0 {
		return ""
	}
	colWidths := t.widths()

	var sb strings.Builder
	for i, header := range t.Headers {
		sb.WriteString(headerStyle.Render(padRight(header, colWidths[i])))
		if i < len(t.Headers)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("\n")

	for _, row := range t.Rows {
		for i, cell := range row {
			if i >= len(colWidths) {
				break
			}
			padded := padRight(cell, colWidths[i])
			switch cell {
			case "yes":
				padded = okCell.Render(padded)
			case "no":
				padded = badCell.Render(padded)
			}
			sb.WriteString(cellStyle.Render(padded))
			if i < len(row)-1 {
				sb.WriteString(" ")
			}
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// RenderSimple renders a plain ASCII table for non-terminal output.
func (t *Table) RenderSimple() string {
	if len(t.Headers) == 0 {
		return ""
	}
	colWidths := t.widths()

	var sb strings.Builder
	writeRow := func(cells []string) {
		sb.WriteString("|")
		for i := range colWidths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			sb.WriteString(" " + padRight(cell, colWidths[i]) + " |")
		}
		sb.WriteString("\n")
	}

	writeRow(t.Headers)
	sb.WriteString("|")
	for _, width := range colWidths {
		sb.WriteString(strings.Repeat("-", width+2) + "|")
	}
	sb.WriteString("\n")
	for _, row := range t.Rows {
		writeRow(row)
	}

	return sb.String()
}

// Print writes the styled table on a terminal and the plain one otherwise.
func (t *Table) Print() {
	if IsTerminal() {
		fmt.Print(t.Render())
		return
	}
	fmt.Print(t.RenderSimple())
}

// padRight pads a string to the right with spaces
func padRight(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

// YesNo renders a boolean as a table cell.
func YesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
