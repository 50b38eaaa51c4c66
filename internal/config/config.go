// Package config handles global chronos configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config represents the global chronos configuration file.
type Config struct {
	// Home is the chronos home directory (defaults to ~/.chronos).
	// CHRONOS_HOME and --home override it.
	Home string `toml:"home"`

	// ScriptsDir holds one directory per script. Relative to Home unless absolute.
	ScriptsDir string `toml:"scripts_dir"`

	// EnvsDir holds one execution environment per script. Relative to Home unless absolute.
	EnvsDir string `toml:"envs_dir"`

	// SourceExt is the extension of a script's primary source file.
	SourceExt string `toml:"source_ext"`

	// Artifacts are the generated files rewritten when a script is renamed.
	Artifacts []string `toml:"artifacts"`

	// ArtifactMatch selects how identifiers are matched in artifacts: literal or delimited.
	ArtifactMatch string `toml:"artifact_match"`

	// LogLevel is the minimum level written to stderr: debug, info, warn or error.
	LogLevel string `toml:"log_level"`

	Database DatabaseConfig `toml:"database"`
	Events   EventsConfig   `toml:"events"`
	UI       UIConfig       `toml:"ui"`
}

// DatabaseConfig selects the metadata store.
type DatabaseConfig struct {
	// Driver is sqlite (default) or postgres.
	Driver string `toml:"driver"`

	// DSN is a SQLite file path (relative to Home) or a PostgreSQL connection string.
	DSN string `toml:"dsn"`
}

// EventsConfig controls where rename events go.
type EventsConfig struct {
	// Journal appends every event to <home>/state/events.log. Defaults to true.
	Journal *bool `toml:"journal"`

	// Listen is the address used by `chronos serve`.
	Listen string `toml:"listen"`
}

// UIConfig represents optional CLI theming preferences.
type UIConfig struct {
	// Accent is an optional accent color for CLI output.
	// Supported values are ANSI color codes ("0" to "255") or hex colors ("#RRGGBB").
	Accent string `toml:"accent"`
}

// Load loads the configuration from the default location.
// Returns a default config if the file doesn't exist.
func Load() (*Config, error) {
	configPath := DefaultPath()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return &Config{}, nil
	}

	return LoadFrom(configPath)
}

// LoadFrom loads the configuration from a specific path.
func LoadFrom(path string) (*Config, error) {
	var config Config
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &config, nil
}

// LoadPath loads an explicit config path, or the default location when
// path is empty. A missing explicit file is an error.
func LoadPath(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return Load()
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return LoadFrom(path)
}

// ResolveConfigPath resolves the effective config path from an optional override.
func ResolveConfigPath(explicitConfigPath string) string {
	if strings.TrimSpace(explicitConfigPath) != "" {
		return explicitConfigPath
	}
	return DefaultPath()
}

// DefaultPath returns the default config file path.
// Checks ~/.config/chronos/config.toml first (XDG style),
// then falls back to OS-specific location.
func DefaultPath() string {
	if xdgPath, err := XDGPath(); err == nil {
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath
		}
	}

	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, "chronos", "config.toml")
	}

	return filepath.Join(".", "config.toml")
}

// XDGPath returns the XDG-style config path (~/.config/chronos/config.toml).
func XDGPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "chronos", "config.toml"), nil
}

const defaultConfig = `# Chronos Configuration

# Home directory for scripts, environments and the metadata database.
# CHRONOS_HOME or --home override this.
# home = "~/.chronos"

# Layout under home (absolute paths are used as-is).
# scripts_dir = "scripts"
# envs_dir = "envs"
# source_ext = ".py"

# Generated files rewritten when a script is renamed, and how identifiers
# are matched inside them:
#   literal   - every occurrence
#   delimited - only occurrences not embedded in a longer identifier
# artifacts = ["execute.sh", "install.sh"]
# artifact_match = "literal"

# debug, info, warn or error
# log_level = "warn"

# [database]
# driver = "sqlite"          # or "postgres"
# dsn = "chronos.db"         # file under home, or a postgres:// URL

# [events]
# journal = true             # append events to <home>/state/events.log
# listen = "127.0.0.1:8787"  # address for chronos serve

# Optional UI accent color for headers in terminal output.
# Supports ANSI color codes (0-255) or hex (#RRGGBB).
# [ui]
# accent = "39"
`

// CreateDefaultAt writes the commented default config to path unless a file
// already exists there.
func CreateDefaultAt(path string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(defaultConfig), 0644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return path, nil
}
