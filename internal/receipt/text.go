package receipt

import (
	"strings"
	"unicode/utf8"
)

// Text renders the layout as monospace lines joined by newlines.
func (l Layout) Text() string {
	out := make([]string, 0, len(l.Lines))
	for _, line := range l.Lines {
		out = append(out, l.format(line)...)
	}
	return strings.Join(out, "\n")
}

// format returns the printed rows for one line, padded to the layout width.
func (l Layout) format(line Line) []string {
	switch line.Kind {
	case KindRule:
		return []string{strings.Repeat("-", l.Width)}
	case KindBlank:
		return []string{""}
	case KindPair:
		gap := l.Width - utf8.RuneCountInString(line.Left) - utf8.RuneCountInString(line.Right)
		if gap >= 1 {
			return []string{line.Left + strings.Repeat(" ", gap) + line.Right}
		}
		return []string{fit(line.Left, l.Width, AlignLeft), pad(line.Right, l.Width, AlignRight)}
	case KindColumns:
		if row, ok := l.columnRow(line.Cells); ok {
			return []string{row}
		}
		return l.stackedRow(line.Cells)
	default:
		return []string{fit(line.Text, l.Width, line.Align)}
	}
}

// columnRow lays cells out in the table columns. It reports false when a
// cell after the first would touch its neighbour, since those cells hold
// quantities and money and are never cut.
func (l Layout) columnRow(cells []string) (string, bool) {
	var b strings.Builder
	for i, col := range l.Columns {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		if i > 0 && utf8.RuneCountInString(cell) > col.Width-1 {
			return "", false
		}
		b.WriteString(fit(cell, col.Width, col.Align))
	}
	return b.String(), true
}

// stackedRow prints the first cell on its own row, then "qty x rate" on the
// left and the last cell on the right.
func (l Layout) stackedRow(cells []string) []string {
	var rows []string
	if len(cells) > 0 && cells[0] != "" {
		rows = append(rows, fit(cells[0], l.Width, AlignLeft))
	}
	if len(cells) < 2 {
		return rows
	}
	last := cells[len(cells)-1]
	left := "  " + strings.Join(cells[1:len(cells)-1], " x ")
	return append(rows, l.format(Line{Kind: KindPair, Left: left, Right: last})...)
}

// fit pads or truncates s to exactly width runes.
func fit(s string, width int, align Align) string {
	if utf8.RuneCountInString(s) > width {
		return string([]rune(s)[:width])
	}
	return pad(s, width, align)
}

// pad pads s to width runes and leaves longer strings whole.
func pad(s string, width int, align Align) string {
	n := width - utf8.RuneCountInString(s)
	if n <= 0 {
		return s
	}
	switch align {
	case AlignRight:
		return strings.Repeat(" ", n) + s
	case AlignCenter:
		left := n / 2
		return strings.Repeat(" ", left) + s + strings.Repeat(" ", n-left)
	default:
		return s + strings.Repeat(" ", n)
	}
}
