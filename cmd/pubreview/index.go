package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matsen/pubreview/internal/index"
	"github.com/matsen/pubreview/internal/records"
)

var indexQueryCSV bool
var indexQueryJSONL bool
var indexSearchLimit int

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexBuildCmd)
	indexCmd.AddCommand(indexQueryCmd)
	indexCmd.AddCommand(indexSearchCmd)

	indexQueryCmd.Flags().BoolVar(&indexQueryCSV, "csv", false, "Output CSV")
	indexQueryCmd.Flags().BoolVar(&indexQueryJSONL, "jsonl", false, "Output JSONL")
	indexSearchCmd.Flags().IntVarP(&indexSearchLimit, "limit", "n", DefaultSearchLimit, "Maximum results")
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Query the record file through a SQLite index",
	Long: `The index is a disposable SQLite copy of the record file for ad hoc SQL
and full-text title search. It is rebuilt automatically whenever the record
file has changed since the last build.

Tables:
  publications(member_id, position, title, year, language, fields_json)
  publications_fts(member_id, position, title)   FTS5 over titles`,
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Rebuild the index from the record file",
	Args:  cobra.NoArgs,
	RunE:  runIndexBuild,
}

var indexQueryCmd = &cobra.Command{
	Use:   "query <sql>",
	Short: "Run a SQL query against the index",
	Long: `Run a SQL query against the index.

Examples:
  pubreview index query "SELECT member_id, COUNT(*) AS n FROM publications GROUP BY member_id"
  pubreview index query "SELECT title, year FROM publications WHERE language = 'en'" --csv`,
	Args: cobra.ExactArgs(1),
	RunE: runIndexQuery,
}

var indexSearchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Full-text search over publication titles",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexSearch,
}

// IndexBuildResponse is the JSON output of index build.
type IndexBuildResponse struct {
	Status  string `json:"status"`
	Path    string `json:"path"`
	Indexed int    `json:"indexed"`
}

func runIndexBuild(cmd *cobra.Command, args []string) error {
	t := mustLoadTable()
	ix := mustOpenIndex()
	defer ix.Close()

	n, err := ix.Rebuild(t, cfg.DataPath)
	if err != nil {
		exitWithError(ExitError, "rebuilding index: %v", err)
	}
	logger.Info("rebuilt index", zap.String("path", ix.Path()), zap.Int("rows", n))

	if humanOutput {
		fmt.Printf("Indexed %d publications into %s\n", n, ix.Path())
		return nil
	}
	return outputJSON(IndexBuildResponse{Status: "rebuilt", Path: ix.Path(), Indexed: n})
}

func runIndexQuery(cmd *cobra.Command, args []string) error {
	ix := mustSyncedIndex()
	defer ix.Close()

	recs, err := ix.Query(args[0])
	if err != nil {
		exitWithError(ExitError, "SQL error: %v", err)
	}

	switch {
	case indexQueryCSV:
		return writeCSV(os.Stdout, recordGrid(recs))
	case indexQueryJSONL:
		enc := json.NewEncoder(os.Stdout)
		for _, r := range recs {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	case humanOutput:
		writeTable(os.Stdout, recordGrid(recs))
		return nil
	default:
		return outputJSON(recs)
	}
}

func runIndexSearch(cmd *cobra.Command, args []string) error {
	ix := mustSyncedIndex()
	defer ix.Close()

	hits, err := ix.Search(args[0], indexSearchLimit)
	if err != nil {
		exitWithError(ExitError, "searching: %v", err)
	}

	if !humanOutput {
		return outputJSON(hits)
	}
	if len(hits) == 0 {
		fmt.Println("No matching publications found.")
		return nil
	}
	for i, h := range hits {
		fmt.Printf("%d. %s\n   %s #%d\n", i+1, truncateString(h.Title, 70), h.MemberID, h.Position)
	}
	return nil
}

// mustOpenIndex opens the configured index, exits on error.
func mustOpenIndex() *index.Index {
	ix, err := index.Open(cfg.IndexPath)
	if err != nil {
		exitWithError(ExitError, "opening index: %v", err)
	}
	return ix
}

// mustSyncedIndex opens the index and rebuilds it if the record file has
// changed since the last build.
func mustSyncedIndex() *index.Index {
	ix := mustOpenIndex()
	if _, err := syncIndex(ix, cfg.DataPath, mustLoadTable); err != nil {
		ix.Close()
		exitWithError(ExitError, "syncing index: %v", err)
	}
	return ix
}

// syncIndex rebuilds ix from load() when it is stale and reports whether it did.
func syncIndex(ix *index.Index, dataPath string, load func() records.Table) (bool, error) {
	stale, err := ix.NeedsSync(dataPath)
	if err != nil {
		return false, err
	}
	if !stale {
		return false, nil
	}
	n, err := ix.Rebuild(load(), dataPath)
	if err != nil {
		return false, err
	}
	logger.Info("index was stale, rebuilt", zap.String("path", ix.Path()), zap.Int("rows", n))
	return true, nil
}

// recordGrid lays out query results with columns sorted by name.
func recordGrid(recs []index.Record) grid {
	var g grid
	if len(recs) == 0 {
		return g
	}
	for col := range recs[0] {
		g.cols = append(g.cols, col)
	}
	sort.Strings(g.cols)
	for _, r := range recs {
		row := make([]string, len(g.cols))
		for i, c := range g.cols {
			if v := r[c]; v != nil {
				row[i] = fmt.Sprintf("%v", v)
			}
		}
		g.rows = append(g.rows, row)
	}
	return g
}
