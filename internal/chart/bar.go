// Package chart renders aggregate counts as horizontal terminal bar charts.
package chart

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/matsen/pubreview/internal/records"
)

// NoData is rendered in place of an empty chart.
const NoData = "no data"

// Style controls chart colors. The zero value renders plain text.
type Style struct {
	Title lipgloss.Style
	Label lipgloss.Style
	Bar   lipgloss.Style
	Count lipgloss.Style
}

// DefaultStyle is the colored style used by the dashboard and --human output.
func DefaultStyle() Style {
	return Style{
		Title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")),
		Label: lipgloss.NewStyle().Foreground(lipgloss.Color("#A0A0A0")),
		Bar:   lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")),
		Count: lipgloss.NewStyle().Bold(true),
	}
}

// Bars renders counts as one bar per key, scaled so the largest count spans
// width cells. At most maxRows bars are drawn when maxRows > 0.
func Bars(title string, counts []records.Count, width, maxRows int, st Style) string {
	var sb strings.Builder
	sb.WriteString(st.Title.Render(title))
	sb.WriteString("\n")

	if len(counts) == 0 {
		sb.WriteString(st.Label.Render("  " + NoData))
		sb.WriteString("\n")
		return sb.String()
	}

	shown := counts
	if maxRows > 0 && len(shown) > maxRows {
		shown = shown[:maxRows]
	}

	labelWidth, max := 0, 0
	for _, c := range shown {
		if w := lipgloss.Width(c.Key); w > labelWidth {
			labelWidth = w
		}
		if c.N > max {
			max = c.N
		}
	}
	if width < 1 {
		width = 1
	}

	for _, c := range shown {
		n := barLength(c.N, max, width)
		label := c.Key + strings.Repeat(" ", labelWidth-lipgloss.Width(c.Key))
		sb.WriteString("  ")
		sb.WriteString(st.Label.Render(label))
		sb.WriteString(" ")
		sb.WriteString(st.Bar.Render(strings.Repeat("█", n)))
		sb.WriteString(" ")
		sb.WriteString(st.Count.Render(fmt.Sprint(c.N)))
		sb.WriteString("\n")
	}

	if hidden := len(counts) - len(shown); hidden > 0 {
		sb.WriteString(st.Label.Render(fmt.Sprintf("  … %d more", hidden)))
		sb.WriteString("\n")
	}
	return sb.String()
}

// barLength scales n against max; any non-zero count gets at least one cell.
func barLength(n, max, width int) int {
	if max <= 0 || n <= 0 {
		return 0
	}
	l := n * width / max
	if l == 0 {
		l = 1
	}
	return l
}
