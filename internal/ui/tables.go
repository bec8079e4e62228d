package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Table creates a formatted table for output
type Table struct {
	headers  []string
	rows     [][]string
	maxWidth int // Maximum total table width
}

// NewTable creates a new table
func NewTable(headers ...string) *Table {
	return &Table{
		headers:  headers,
		rows:     [][]string{},
		maxWidth: 120, // Default max width
	}
}

// SetMaxWidth sets the maximum table width
func (t *Table) SetMaxWidth(width int) {
	t.maxWidth = width
}

// AddRow adds a row to the table
func (t *Table) AddRow(values ...string) {
	row := make([]string, len(t.headers))
	copy(row, values)
	t.rows = append(t.rows, row)
}

// Len returns the number of rows added.
func (t *Table) Len() int {
	return len(t.rows)
}

// Render renders the table to the ui output
func (t *Table) Render() {
	t.RenderTo(out)
}

// RenderTo renders the table to w. Widths are measured in terminal cells so
// CJK titles line up.
func (t *Table) RenderTo(w io.Writer) {
	if len(t.headers) == 0 {
		return
	}

	// Calculate column widths with padding
	widths := columnWidths(t.headers, t.rows)
	totalWidth := 1
	for i := range widths {
		widths[i] += 2              // Padding
		totalWidth += widths[i] + 1 // +1 for separator
	}

	// Adjust if too wide
	if totalWidth > t.maxWidth {
		excess := totalWidth - t.maxWidth
		// Reduce largest columns first
		for excess > 0 {
			maxIdx := 0
			for i := 1; i < len(widths); i++ {
				if widths[i] > widths[maxIdx] {
					maxIdx = i
				}
			}
			if widths[maxIdx] <= 10 {
				break
			}
			widths[maxIdx]--
			excess--
		}
	}

	border := func(left, mid, right string) {
		fmt.Fprint(w, left)
		for i, cw := range widths {
			fmt.Fprint(w, strings.Repeat("─", cw))
			if i < len(widths)-1 {
				fmt.Fprint(w, mid)
			}
		}
		fmt.Fprintln(w, right)
	}
	line := func(values []string) {
		fmt.Fprint(w, "│")
		for i := range t.headers {
			fmt.Fprintf(w, " %s│", pad(truncate(values[i], widths[i]-2), widths[i]-1))
		}
		fmt.Fprintln(w)
	}

	border("┌", "┬", "┐")
	line(t.headers)
	border("├", "┼", "┤")
	for _, row := range t.rows {
		line(row)
	}
	border("└", "┴", "┘")
}

// CompactTable creates a simpler table without borders
func CompactTable(headers []string, rows [][]string) {
	CompactTableTo(out, headers, rows)
}

// CompactTableTo writes a borderless table to w.
func CompactTableTo(w io.Writer, headers []string, rows [][]string) {
	if len(headers) == 0 {
		return
	}

	widths := columnWidths(headers, rows)
	line := func(values []string) {
		for i := range headers {
			val := ""
			if i < len(values) {
				val = values[i]
			}
			if i < len(headers)-1 {
				fmt.Fprint(w, pad(val, widths[i]+2)+"  ")
			} else {
				fmt.Fprint(w, val)
			}
		}
		fmt.Fprintln(w)
	}

	line(headers)
	for i, cw := range widths {
		fmt.Fprint(w, strings.Repeat("─", cw+2))
		if i < len(widths)-1 {
			fmt.Fprint(w, "  ")
		}
	}
	fmt.Fprintln(w)
	for _, row := range rows {
		line(row)
	}
}

func columnWidths(headers []string, rows [][]string) []int {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
		for _, row := range rows {
			if i < len(row) {
				widths[i] = max(widths[i], lipgloss.Width(row[i]))
			}
		}
	}
	return widths
}

// pad right-pads s with spaces to n cells.
func pad(s string, n int) string {
	if gap := n - lipgloss.Width(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}

// truncate truncates a string to maxLen cells with ellipsis
func truncate(s string, maxLen int) string {
	if lipgloss.Width(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return runewidth.Truncate(s, maxLen, "")
	}
	return runewidth.Truncate(s, maxLen, "...")
}
