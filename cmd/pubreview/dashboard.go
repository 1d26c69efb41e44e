package main

import (
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matsen/pubreview/internal/config"
	"github.com/matsen/pubreview/internal/dashboard"
	"github.com/matsen/pubreview/internal/logging"
	"github.com/matsen/pubreview/internal/records"
)

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Open the interactive dashboard (default)",
	Long: `Open the interactive review dashboard.

Keys:
  /            search members (substring, or glob with * ? [)
  ↑/↓, enter   move and select a member
  ←/→          move between columns of the publication grid
  e            edit the highlighted cell
  a / d        add or delete a publication
  s            save the file and reload
  tab / esc    switch between the member list and the grid
  q            quit

Logs are written to .pubreview/pubreview.log next to the record file.`,
	Args: cobra.NoArgs,
	RunE: runDashboard,
}

func runDashboard(cmd *cobra.Command, args []string) error {
	t := mustLoadTable()

	// The dashboard owns the terminal, so it logs to a file.
	logPath := filepath.Join(filepath.Dir(cfg.DataPath), config.CacheDir, logging.LogFile)
	fileLogger, err := logging.NewFile(logPath, cfg.LogLevel, verbose)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	defer fileLogger.Sync()
	fileLogger.Info("dashboard started",
		zap.String("path", cfg.DataPath),
		zap.Int("rows", t.Len()))

	return dashboard.Run(t, cfg.DataPath, fileLogger, records.WithMemberKey(cfg.MemberKey))
}
