package output

import (
	"io"
	"strings"
	"unicode/utf8"
)

// Table renders aligned columns for text output.
type Table struct {
	headers  []string
	rows     [][]string
	noHeader bool
}

// NewTable creates a new table with the given headers.
func NewTable(headers ...string) *Table {
	return &Table{headers: headers}
}

// AddRow adds a row to the table. Rows may be ragged.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// SetNoHeader suppresses the header row.
func (t *Table) SetNoHeader(noHeader bool) {
	t.noHeader = noHeader
}

// Render renders the table to the writer. The last column is never padded.
func (t *Table) Render(w io.Writer) error {
	showHeader := !t.noHeader && len(t.headers) > 0
	if !showHeader && len(t.rows) == 0 {
		return nil
	}

	widths := t.widths()
	var sb strings.Builder

	if showHeader {
		writeRow(&sb, t.headers, widths)
		rule := make([]string, len(widths))
		for i, width := range widths {
			rule[i] = strings.Repeat("-", width)
		}
		writeRow(&sb, rule, widths)
	}
	for _, row := range t.rows {
		writeRow(&sb, row, widths)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// String returns the table as a string.
func (t *Table) String() string {
	var sb strings.Builder
	_ = t.Render(&sb)
	return sb.String()
}

// widths returns the display width of every column, counted in runes.
func (t *Table) widths() []int {
	var widths []int
	measure := func(cells []string) {
		for i, cell := range cells {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], utf8.RuneCountInString(cell))
		}
	}
	if !t.noHeader {
		measure(t.headers)
	}
	for _, row := range t.rows {
		measure(row)
	}
	return widths
}

func writeRow(sb *strings.Builder, cells []string, widths []int) {
	for i := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		if i == len(widths)-1 {
			sb.WriteString(cell)
			break
		}
		sb.WriteString(cell)
		sb.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell)+2))
	}
	sb.WriteString("\n")
}
