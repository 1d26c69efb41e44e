// Package main provides the pubreview CLI entry point.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matsen/pubreview/internal/config"
	"github.com/matsen/pubreview/internal/logging"
	"github.com/matsen/pubreview/internal/records"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	humanOutput  bool
	verbose      bool
	dataFlag     string
	memberKeyArg string
	indexFlag    string
)

// cfg and logger are set up in PersistentPreRunE before any command runs.
var (
	cfg    *config.Config
	logger = zap.NewNop()
)

func main() {
	err := rootCmd.Execute()
	_ = logger.Sync()
	if err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pubreview",
	Short: "Review and edit per-member publication search results",
	Long: `pubreview loads a JSONL file of per-member publication search results,
shows summary metrics and charts, and lets you review and edit one member's
publications at a time. Edits are saved back to the same file atomically.

Running pubreview with no subcommand opens the interactive dashboard.
Other commands output JSON by default; use --human for readable output.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	RunE:              runDashboard,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&dataFlag, "data", "", "Record file (default from config, then "+config.DefaultDataFile+")")
	rootCmd.PersistentFlags().StringVar(&memberKeyArg, "member-key", "", "Field naming the member on each line (default "+config.DefaultMemberKey+")")
	rootCmd.PersistentFlags().StringVar(&indexFlag, "index", "", "SQLite query index path")
	rootCmd.Version = Version
}

// setup loads the configuration, applies flag overrides, and builds the logger.
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load()
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	applyFlags(loaded, dataFlag, memberKeyArg, indexFlag)
	if err := loaded.Validate(); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	cfg = loaded

	l, err := logging.New(cfg.LogLevel, verbose)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	logger = l
	return nil
}

// applyFlags overrides configuration with command-line values.
// A new data path moves the default index along with it unless an index
// path is given too.
func applyFlags(c *config.Config, data, memberKey, index string) {
	if data != "" {
		c.DataPath = config.ExpandPath(data)
		c.IndexPath = config.DefaultIndexPath(c.DataPath)
	}
	if memberKey != "" {
		c.MemberKey = memberKey
	}
	if index != "" {
		c.IndexPath = config.ExpandPath(index)
	}
}

// recordOptions returns the load/save options for the configured file.
func recordOptions() []records.Option {
	return []records.Option{
		records.WithMemberKey(cfg.MemberKey),
		records.WithLogger(logger),
	}
}

// mustLoadTable loads the configured record file, exits on error.
func mustLoadTable() records.Table {
	t, err := records.Load(cfg.DataPath, recordOptions()...)
	if err != nil {
		exitWithError(loadExitCode(err), "%s", loadErrorMessage(err, cfg.DataPath))
	}
	logger.Debug("loaded records",
		zap.String("path", cfg.DataPath),
		zap.Int("rows", t.Len()),
		zap.Int("members", len(records.Members(t))))
	return t
}

func loadExitCode(err error) int {
	switch {
	case errors.Is(err, records.ErrNotFound):
		return ExitDataNotFound
	case errors.Is(err, records.ErrParse):
		return ExitDataError
	default:
		return ExitError
	}
}

func loadErrorMessage(err error, path string) string {
	if errors.Is(err, records.ErrNotFound) {
		return fmt.Sprintf("Data file not found: %s", path)
	}
	return err.Error()
}
