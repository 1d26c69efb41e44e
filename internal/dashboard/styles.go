package dashboard

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/matsen/pubreview/internal/chart"
)

// Palette
var (
	Primary     = lipgloss.Color("#7D56F4")
	Accent      = lipgloss.Color("#04B575")
	Muted       = lipgloss.Color("#A0A0A0")
	Warning     = lipgloss.Color("#FFC107")
	Destructive = lipgloss.Color("#E53935")
)

// Styles groups the dashboard's lipgloss styles.
type Styles struct {
	Title    lipgloss.Style
	Metric   lipgloss.Style
	Label    lipgloss.Style
	Panel    lipgloss.Style
	Selected lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Success  lipgloss.Style
	Help     lipgloss.Style
	Chart    chart.Style
	Grid     table.Styles
}

// DefaultStyles returns the dashboard's default styles.
func DefaultStyles() Styles {
	grid := table.DefaultStyles()
	grid.Header = grid.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(Muted).
		BorderBottom(true).
		Bold(true)
	grid.Selected = grid.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(Primary)

	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(Primary).MarginBottom(1),
		Metric:   lipgloss.NewStyle().Bold(true).Foreground(Accent),
		Label:    lipgloss.NewStyle().Foreground(Muted),
		Panel:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(Muted).Padding(0, 1),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(Primary),
		Warning:  lipgloss.NewStyle().Foreground(Warning),
		Error:    lipgloss.NewStyle().Bold(true).Foreground(Destructive),
		Success:  lipgloss.NewStyle().Foreground(Accent),
		Help:     lipgloss.NewStyle().Foreground(Muted),
		Chart:    chart.DefaultStyle(),
		Grid:     grid,
	}
}
