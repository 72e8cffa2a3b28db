package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const columnGap = "  "

// Table lays out per-host pool rows in aligned columns.
type Table struct {
	headers []string
	rows    [][]string
	title   string
}

func NewTable(headers []string) *Table {
	return &Table{headers: headers}
}

func (t *Table) WithTitle(title string) *Table {
	t.title = title
	return t
}

// AddRow appends a row. Cells beyond the header count are ignored.
func (t *Table) AddRow(row []string) *Table {
	t.rows = append(t.rows, row)
	return t
}

// Render returns "" for a table without rows.
func (t *Table) Render() string {
	if len(t.rows) == 0 {
		return ""
	}

	widths := t.columnWidths()

	var out strings.Builder
	if t.title != "" {
		out.WriteString("\n")
		out.WriteString(titleStyle.Render(t.title))
		out.WriteString("\n\n")
	}

	t.writeLine(&out, widths, t.headers, tableHeaderStyle)

	rule := make([]string, len(widths))
	for i, w := range widths {
		rule[i] = mutedStyle.Render(strings.Repeat("─", w))
	}
	out.WriteString(strings.Join(rule, columnGap))
	out.WriteString("\n")

	for _, row := range t.rows {
		t.writeLine(&out, widths, row, tableCellStyle)
	}

	out.WriteString("\n")
	return out.String()
}

func (t *Table) columnWidths() []int {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}
	return widths
}

func (t *Table) writeLine(out *strings.Builder, widths []int, cells []string, style lipgloss.Style) {
	parts := make([]string, len(widths))
	for i, w := range widths {
		var cell string
		if i < len(cells) {
			cell = cells[i]
		}
		parts[i] = style.Width(w).Render(cell)
	}
	out.WriteString(strings.TrimRight(strings.Join(parts, columnGap), " "))
	out.WriteString("\n")
}
