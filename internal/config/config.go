// Package config handles global and environment configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents configuration stored in ~/.config/pubreview/config.yml.
type Config struct {
	DataPath  string `yaml:"data_path,omitempty"`  // Record file (JSONL)
	MemberKey string `yaml:"member_key,omitempty"` // Field naming the member on each line
	IndexPath string `yaml:"index_path,omitempty"` // SQLite query index
	LogLevel  string `yaml:"log_level,omitempty"`  // debug, info, warn, error
}

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "pubreview"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"

	DefaultDataFile  = "libgen_results.jsonl"
	DefaultMemberKey = "member_id"
	DefaultLogLevel  = "warn"
	CacheDir         = ".pubreview"
)

// Environment variables that override the config file.
const (
	EnvDataPath  = "PUBREVIEW_DATA"
	EnvMemberKey = "PUBREVIEW_MEMBER_KEY"
	EnvIndexPath = "PUBREVIEW_INDEX"
	EnvLogLevel  = "PUBREVIEW_LOG_LEVEL"
)

// ValidLogLevels lists the supported log_level values.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// ErrEmptyMemberKey is returned by Validate when member_key is blank.
var ErrEmptyMemberKey = errors.New("member_key must not be empty")

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/pubreview/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// LoadFile reads a YAML config file.
// Returns an empty config (not an error) if the file doesn't exist.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return &Config{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Load builds the effective configuration: the global config file, then
// environment variables (after loading dotenv files, ".env" by default),
// then defaults for anything still unset.
func Load(dotenvFiles ...string) (*Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		// A missing .env is the common case.
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	cfg, err := LoadFile(GlobalConfigPath())
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDataPath); v != "" {
		c.DataPath = v
	}
	if v := os.Getenv(EnvMemberKey); v != "" {
		c.MemberKey = v
	}
	if v := os.Getenv(EnvIndexPath); v != "" {
		c.IndexPath = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

func (c *Config) applyDefaults() {
	if c.DataPath == "" {
		c.DataPath = DefaultDataFile
	}
	c.DataPath = ExpandPath(c.DataPath)
	if c.MemberKey == "" {
		c.MemberKey = DefaultMemberKey
	}
	if c.IndexPath == "" {
		c.IndexPath = DefaultIndexPath(c.DataPath)
	}
	c.IndexPath = ExpandPath(c.IndexPath)
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// Validate checks member_key and log_level.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.MemberKey) == "" {
		return ErrEmptyMemberKey
	}
	if c.LogLevel == "" {
		return nil
	}
	for _, valid := range ValidLogLevels {
		if c.LogLevel == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log_level: %s (valid: %v)", c.LogLevel, ValidLogLevels)
}

// Save writes the config as YAML, creating the parent directory.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// DefaultIndexPath returns the query index location for a record file:
// <dir>/.pubreview/<name>.db next to the record file.
func DefaultIndexPath(dataPath string) string {
	base := filepath.Base(dataPath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(dataPath), CacheDir, name+".db")
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[1:])
}
