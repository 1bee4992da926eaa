package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// maxColumnWidth caps a table column so long venue names do not wrap.
const maxColumnWidth = 40

// padToWidth pads or truncates text to a fixed display width.
// Width is measured in display columns, accounting for Unicode characters.
// If width <= 0, returns text unchanged.
// If text is longer than width, truncates with "..." suffix.
func padToWidth(text string, width int) string {
	if width <= 0 {
		return text
	}
	if runewidth.StringWidth(text) > width {
		text = runewidth.Truncate(text, width, "...")
	}
	return runewidth.FillRight(text, width)
}

// printTable writes rows under headers with columns aligned by display
// width. The last column is never padded.
func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], min(runewidth.StringWidth(cell), maxColumnWidth))
			}
		}
	}

	writeRow := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			if i == len(cells)-1 {
				parts[i] = runewidth.Truncate(cell, maxColumnWidth*2, "...")
				continue
			}
			parts[i] = padToWidth(cell, widths[i])
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	writeRow(headers)
	for _, row := range rows {
		writeRow(row)
	}
}
