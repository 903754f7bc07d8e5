package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color scheme for table output.
type Theme struct {
	Primary lipgloss.Color // Header color
	Dim     lipgloss.Color // Separator color
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Header lipgloss.Style
	Cell   lipgloss.Style
	Rule   lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Header: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Cell:   lipgloss.NewStyle(),
		Rule:   lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// Tabular is implemented by results that can be rendered as a table.
type Tabular interface {
	Table() Table
}

// Table is a header row plus data rows. Rows shorter than the header are
// padded with empty cells.
type Table struct {
	Headers []string
	Rows    [][]string
}

const columnGap = "  "

// Render lays the table out with columns aligned to their widest cell.
func (t Table) Render(s Styles) string {
	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i := range min(len(row), len(widths)) {
			widths[i] = max(widths[i], lipgloss.Width(row[i]))
		}
	}

	var b strings.Builder
	b.WriteString(renderRow(s.Header, t.Headers, widths))
	rule := make([]string, len(widths))
	for i, w := range widths {
		rule[i] = strings.Repeat("─", w)
	}
	b.WriteString(s.Rule.Render(strings.Join(rule, columnGap)))
	b.WriteByte('\n')
	for _, row := range t.Rows {
		b.WriteString(renderRow(s.Cell, row, widths))
	}
	return b.String()
}

func renderRow(style lipgloss.Style, cells []string, widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		var text string
		if i < len(cells) {
			text = cells[i]
		}
		pad := strings.Repeat(" ", max(0, w-lipgloss.Width(text)))
		parts[i] = style.Render(text) + pad
	}
	return strings.TrimRight(strings.Join(parts, columnGap), " ") + "\n"
}
