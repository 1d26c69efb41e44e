package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matsen/pubreview/internal/records"
)

func init() {
	rootCmd.AddCommand(replaceCmd)
}

var replaceCmd = &cobra.Command{
	Use:   "replace <member> [file|-]",
	Short: "Replace one member's publications and save",
	Long: `Replace every publication of a member with the publications read from a
file (a JSON array or one object per line) and save the record file.

Reads standard input when the file is omitted or "-". An empty array removes
all of the member's publications but keeps the member in the file.

Examples:
  pubreview replace A edited.json
  pubreview show A | jq 'map(select(.language == "en"))' | pubreview replace A`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runReplace,
}

func runReplace(cmd *cobra.Command, args []string) error {
	member := args[0]

	var in io.Reader = os.Stdin
	if len(args) == 2 && args[1] != "-" {
		f, err := os.Open(args[1])
		if err != nil {
			exitWithError(ExitError, "opening %s: %v", args[1], err)
		}
		defer f.Close()
		in = f
	}

	pubs, err := records.ReadPublications(in)
	if err != nil {
		exitWithError(ExitDataError, "reading publications: %v", err)
	}

	t := mustLoadTable()
	before := len(records.Filter(t, member))
	t = records.Replace(t, member, pubs)

	if err := records.Save(t, cfg.DataPath, recordOptions()...); err != nil {
		code := ExitError
		if errors.Is(err, records.ErrWrite) {
			code = ExitWriteError
		}
		exitWithError(code, "%v", err)
	}
	logger.Info("replaced member publications",
		zap.String("member", member),
		zap.Int("before", before),
		zap.Int("after", len(pubs)))

	if humanOutput {
		fmt.Printf("Replaced %d publications of %s with %d\n", before, member, len(pubs))
		fmt.Println("Changes saved successfully.")
		return nil
	}
	return outputJSON(StatusResponse{
		Status:       "saved",
		Path:         cfg.DataPath,
		MemberID:     member,
		Publications: len(pubs),
	})
}
