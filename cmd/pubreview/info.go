package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/matsen/pubreview/internal/index"
	"github.com/matsen/pubreview/internal/records"
)

func init() {
	rootCmd.AddCommand(infoCmd)
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the record file and index status",
	Long: `Display the record file's size, modification time, row and member counts,
and whether the query index is in sync with it.

Example:
  pubreview info --human`,
	Args: cobra.NoArgs,
	RunE: runInfo,
}

// InfoResponse is the JSON output of the info command.
type InfoResponse struct {
	DataPath  string    `json:"data_path"`
	DataSize  int64     `json:"data_size"`
	ModTime   time.Time `json:"mod_time"`
	MemberKey string    `json:"member_key"`
	Rows      int       `json:"rows"`
	Members   int       `json:"members"`
	IndexPath string    `json:"index_path"`
	IndexSize int64     `json:"index_size"`
	LastSync  time.Time `json:"last_sync,omitzero"`
	InSync    bool      `json:"in_sync"`
}

func runInfo(cmd *cobra.Command, args []string) error {
	t := mustLoadTable()

	st, err := os.Stat(cfg.DataPath)
	if err != nil {
		exitWithError(ExitError, "stat %s: %v", cfg.DataPath, err)
	}
	info := InfoResponse{
		DataPath:  cfg.DataPath,
		DataSize:  st.Size(),
		ModTime:   st.ModTime(),
		MemberKey: cfg.MemberKey,
		Rows:      t.Len(),
		Members:   len(records.Members(t)),
		IndexPath: cfg.IndexPath,
	}
	if err := fillIndexInfo(&info); err != nil {
		exitWithError(ExitError, "reading index: %v", err)
	}

	if !humanOutput {
		return outputJSON(info)
	}

	fmt.Println("Record file:")
	fmt.Printf("  Path:       %s\n", info.DataPath)
	fmt.Printf("  Size:       %s\n", humanize.Bytes(uint64(info.DataSize)))
	fmt.Printf("  Modified:   %s\n", humanize.Time(info.ModTime))
	fmt.Printf("  Member key: %s\n", info.MemberKey)
	fmt.Printf("  Rows:       %s\n", humanize.Comma(int64(info.Rows)))
	fmt.Printf("  Members:    %s\n", humanize.Comma(int64(info.Members)))

	fmt.Println("\nIndex:")
	fmt.Printf("  Path:       %s\n", info.IndexPath)
	if info.IndexSize == 0 {
		fmt.Println("  Status:     Not built (run 'pubreview index build')")
		return nil
	}
	fmt.Printf("  Size:       %s\n", humanize.Bytes(uint64(info.IndexSize)))
	if !info.LastSync.IsZero() {
		fmt.Printf("  Last sync:  %s\n", humanize.Time(info.LastSync))
	}
	if info.InSync {
		fmt.Println("  Status:     In sync")
	} else {
		fmt.Println("  Status:     Out of sync (rebuilt on next query)")
	}
	return nil
}

// fillIndexInfo reports on an existing index without creating one.
func fillIndexInfo(info *InfoResponse) error {
	st, err := os.Stat(info.IndexPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	info.IndexSize = st.Size()

	ix, err := index.Open(info.IndexPath)
	if err != nil {
		return err
	}
	defer ix.Close()

	if info.LastSync, err = ix.LastSync(); err != nil {
		return err
	}
	stale, err := ix.NeedsSync(info.DataPath)
	if err != nil {
		return err
	}
	info.InSync = !stale
	return nil
}
