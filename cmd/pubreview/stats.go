package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matsen/pubreview/internal/chart"
	"github.com/matsen/pubreview/internal/records"
)

const (
	statsChartWidth = 40
	statsChartRows  = 15
)

func init() {
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show summary metrics and distributions",
	Long: `Show the member count, total publications, and unique titles, together
with publication counts by year and by language.

Only years made entirely of digits are counted. Languages are ranked by
count, most common first.

Examples:
  pubreview stats
  pubreview stats --human`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

// StatsResponse is the JSON output of the stats command.
type StatsResponse struct {
	records.Summary
	ByYear     []records.Count `json:"by_year"`
	ByLanguage []records.Count `json:"by_language"`
}

func runStats(cmd *cobra.Command, args []string) error {
	t := mustLoadTable()
	resp := buildStats(t)

	if !humanOutput {
		return outputJSON(resp)
	}

	fmt.Printf("Members:        %d\n", resp.Members)
	fmt.Printf("Publications:   %d\n", resp.Publications)
	fmt.Printf("Unique titles:  %d\n\n", resp.UniqueTitles)

	st := chart.DefaultStyle()
	fmt.Println(chart.Bars("Publications by year", resp.ByYear, statsChartWidth, statsChartRows, st))
	fmt.Println()
	fmt.Println(chart.Bars("Most common languages", resp.ByLanguage, statsChartWidth, statsChartRows, st))
	return nil
}

func buildStats(t records.Table) StatsResponse {
	return StatsResponse{
		Summary:    records.Summarize(t),
		ByYear:     records.CountByYear(t),
		ByLanguage: records.CountByLanguage(t),
	}
}
