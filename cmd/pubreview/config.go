package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/pubreview/internal/config"
)

func init() {
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Get or set configuration values",
	Long: `Get or set configuration values.

With no arguments, shows the effective configuration after the config file,
environment variables, and flags are applied. With a key and value, writes
the value to the global config file.

Usage:
  pubreview config                          # Show all config
  pubreview config data-path                # Get specific value
  pubreview config data-path ~/results.jsonl
  pubreview config member-key "CITR member"

Keys:
  data-path    Record file (JSONL)
  member-key   Field naming the member on each line
  index-path   SQLite query index
  log-level    debug, info, warn, error`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		if humanOutput {
			fmt.Printf("data-path:   %s\n", cfg.DataPath)
			fmt.Printf("member-key:  %s\n", cfg.MemberKey)
			fmt.Printf("index-path:  %s\n", cfg.IndexPath)
			fmt.Printf("log-level:   %s\n", cfg.LogLevel)
			fmt.Printf("\nConfig file: %s\n", config.GlobalConfigPath())
		} else {
			outputJSON(ConfigResponse{
				DataPath:   cfg.DataPath,
				MemberKey:  cfg.MemberKey,
				IndexPath:  cfg.IndexPath,
				LogLevel:   cfg.LogLevel,
				ConfigFile: config.GlobalConfigPath(),
			})
		}
		return nil
	}

	key := normalizeKey(args[0])
	if len(args) == 1 {
		value, ok := configValue(cfg, key)
		if !ok {
			exitWithError(ExitError, "unknown config key: %s", args[0])
		}
		if humanOutput {
			fmt.Println(value)
		} else {
			outputJSON(map[string]string{strings.ReplaceAll(key, "-", "_"): value})
		}
		return nil
	}

	path := config.GlobalConfigPath()
	file, err := config.LoadFile(path)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	if !setConfigValue(file, key, args[1]) {
		exitWithError(ExitError, "unknown config key: %s", args[0])
	}
	check := *file
	if check.MemberKey == "" {
		check.MemberKey = config.DefaultMemberKey
	}
	if err := check.Validate(); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	if err := file.Save(path); err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if humanOutput {
		fmt.Printf("Set %s = %s\n", key, args[1])
	} else {
		outputJSON(UpdateResponse{Status: "updated", Key: key, Value: args[1]})
	}
	return nil
}

// ConfigResponse is the response for the config command with no arguments.
type ConfigResponse struct {
	DataPath   string `json:"data_path"`
	MemberKey  string `json:"member_key"`
	IndexPath  string `json:"index_path"`
	LogLevel   string `json:"log_level"`
	ConfigFile string `json:"config_file"`
}

// UpdateResponse is the response for config set commands.
type UpdateResponse struct {
	Status string `json:"status"`
	Key    string `json:"key"`
	Value  string `json:"value"`
}

// normalizeKey accepts data_path, dataPath, and data-path alike.
func normalizeKey(key string) string {
	key = strings.ToLower(strings.ReplaceAll(key, "_", "-"))
	switch key {
	case "datapath":
		return "data-path"
	case "memberkey":
		return "member-key"
	case "indexpath":
		return "index-path"
	case "loglevel":
		return "log-level"
	}
	return key
}

func configValue(c *config.Config, key string) (string, bool) {
	switch key {
	case "data-path":
		return c.DataPath, true
	case "member-key":
		return c.MemberKey, true
	case "index-path":
		return c.IndexPath, true
	case "log-level":
		return c.LogLevel, true
	}
	return "", false
}

func setConfigValue(c *config.Config, key, value string) bool {
	switch key {
	case "data-path":
		c.DataPath = value
	case "member-key":
		c.MemberKey = value
	case "index-path":
		c.IndexPath = value
	case "log-level":
		c.LogLevel = value
	default:
		return false
	}
	return true
}
