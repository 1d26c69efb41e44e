package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/matsen/pubreview/internal/records"
)

var reportMarkdown bool
var reportTop int

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().BoolVar(&reportMarkdown, "markdown", false, "Print raw Markdown instead of rendering it")
	reportCmd.Flags().IntVarP(&reportTop, "top", "n", 10, "Rows per section (0 for all)")
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render a Markdown review report",
	Long: `Render a review report: headline metrics, the busiest years and most
common languages, and publication counts per member.

The report is rendered for the terminal; use --markdown to get the source,
for example to paste into an issue or a wiki page.

Examples:
  pubreview report
  pubreview report --markdown -n 0 > report.md`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	t := mustLoadTable()
	md := buildReport(t, cfg.DataPath, reportTop)

	if reportMarkdown {
		fmt.Print(md)
		return nil
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		exitWithError(ExitError, "creating renderer: %v", err)
	}
	out, err := renderer.Render(md)
	if err != nil {
		exitWithError(ExitError, "rendering report: %v", err)
	}
	fmt.Print(out)
	return nil
}

// buildReport returns the review report as Markdown. top limits each
// section's rows; 0 shows all.
func buildReport(t records.Table, source string, top int) string {
	var sb strings.Builder
	sum := records.Summarize(t)

	sb.WriteString("# Publication review\n\n")
	fmt.Fprintf(&sb, "Source: `%s`\n\n", source)
	sb.WriteString("| Metric | Value |\n|---|---:|\n")
	fmt.Fprintf(&sb, "| Members matched | %d |\n", sum.Members)
	fmt.Fprintf(&sb, "| Publications | %d |\n", sum.Publications)
	fmt.Fprintf(&sb, "| Unique titles | %d |\n\n", sum.UniqueTitles)

	writeCountSection(&sb, "Publications by year", "Year", records.CountByYear(t), top)
	writeCountSection(&sb, "Most common languages", "Language", records.CountByLanguage(t), top)

	members := listMembers(t, "")
	sb.WriteString("## Members\n\n")
	if len(members) == 0 {
		sb.WriteString("_No members._\n")
		return sb.String()
	}
	sb.WriteString("| Member | Publications |\n|---|---:|\n")
	for i, m := range members {
		if top > 0 && i == top {
			fmt.Fprintf(&sb, "\n_%d more members._\n", len(members)-top)
			break
		}
		fmt.Fprintf(&sb, "| %s | %d |\n", escapeCell(m.MemberID), m.Publications)
	}
	return sb.String()
}

func writeCountSection(sb *strings.Builder, title, heading string, counts []records.Count, top int) {
	fmt.Fprintf(sb, "## %s\n\n", title)
	if len(counts) == 0 {
		sb.WriteString("_No data._\n\n")
		return
	}
	fmt.Fprintf(sb, "| %s | Publications |\n|---|---:|\n", heading)
	for i, c := range counts {
		if top > 0 && i == top {
			fmt.Fprintf(sb, "\n_%d more._\n", len(counts)-top)
			break
		}
		fmt.Fprintf(sb, "| %s | %d |\n", escapeCell(c.Key), c.N)
	}
	sb.WriteString("\n")
}

// escapeCell keeps a value inside one Markdown table cell.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
