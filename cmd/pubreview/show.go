package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matsen/pubreview/internal/records"
)

var showCSV bool
var showJSONL bool

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().BoolVar(&showCSV, "csv", false, "Output CSV")
	showCmd.Flags().BoolVar(&showJSONL, "jsonl", false, "Output JSONL")
}

var showCmd = &cobra.Command{
	Use:   "show <member>",
	Short: "Show one member's publications",
	Long: `Show the publications recorded for one member, fields in file order.

The JSON output can be edited and passed back to 'pubreview replace'.

Examples:
  pubreview show A
  pubreview show A --csv
  pubreview show A > a.json && $EDITOR a.json && pubreview replace A a.json`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	member := args[0]
	t := mustLoadTable()
	if !hasMember(t, member) {
		exitWithError(ExitError, "member %q not found", member)
	}
	pubs := records.Filter(t, member)

	switch {
	case showCSV:
		return writeCSV(os.Stdout, publicationGrid(pubs))
	case showJSONL:
		var buf bytes.Buffer
		for _, p := range pubs {
			data, err := p.MarshalJSON()
			if err != nil {
				return err
			}
			buf.Write(data)
			buf.WriteByte('\n')
		}
		_, err := os.Stdout.Write(buf.Bytes())
		return err
	case humanOutput:
		fmt.Printf("Publications for %s\n\n", member)
		writeTable(os.Stdout, publicationGrid(pubs))
		return nil
	default:
		return outputJSON(pubs)
	}
}

func hasMember(t records.Table, member string) bool {
	for _, m := range records.Members(t) {
		if m == member {
			return true
		}
	}
	return false
}
