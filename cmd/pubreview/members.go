package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matsen/pubreview/internal/records"
)

func init() {
	rootCmd.AddCommand(membersCmd)
}

var membersCmd = &cobra.Command{
	Use:   "members [term]",
	Short: "List members, optionally filtered by a search term",
	Long: `List the members in the record file with their publication counts.

The term matches case-insensitively as a substring, or as a glob pattern when
it contains *, ? or [.

Examples:
  pubreview members
  pubreview members smith
  pubreview members 'a*' --human`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMembers,
}

// MemberSummary is one member and its publication count.
type MemberSummary struct {
	MemberID     string `json:"member_id"`
	Publications int    `json:"publications"`
}

func runMembers(cmd *cobra.Command, args []string) error {
	t := mustLoadTable()

	var term string
	if len(args) == 1 {
		term = args[0]
	}
	found := listMembers(t, term)

	if !humanOutput {
		return outputJSON(found)
	}
	if len(found) == 0 {
		fmt.Println("No matching members found.")
		return nil
	}
	for _, m := range found {
		fmt.Printf("%-40s %d\n", m.MemberID, m.Publications)
	}
	return nil
}

func listMembers(t records.Table, term string) []MemberSummary {
	names := records.SearchMembers(records.Members(t), term)
	out := make([]MemberSummary, len(names))
	for i, n := range names {
		out[i] = MemberSummary{MemberID: n, Publications: len(records.Filter(t, n))}
	}
	return out
}
