package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/aidanlsb/chronos/internal/atomicfile"
)

type persistedConfig struct {
	Home          *string              `toml:"home,omitempty"`
	ScriptsDir    *string              `toml:"scripts_dir,omitempty"`
	EnvsDir       *string              `toml:"envs_dir,omitempty"`
	SourceExt     *string              `toml:"source_ext,omitempty"`
	Artifacts     []string             `toml:"artifacts,omitempty"`
	ArtifactMatch *string              `toml:"artifact_match,omitempty"`
	LogLevel      *string              `toml:"log_level,omitempty"`
	Database      *persistedDatabase   `toml:"database,omitempty"`
	Events        *persistedEvents     `toml:"events,omitempty"`
	UI            *persistedUISettings `toml:"ui,omitempty"`
}

type persistedDatabase struct {
	Driver *string `toml:"driver,omitempty"`
	DSN    *string `toml:"dsn,omitempty"`
}

type persistedEvents struct {
	Journal *bool   `toml:"journal,omitempty"`
	Listen  *string `toml:"listen,omitempty"`
}

type persistedUISettings struct {
	Accent *string `toml:"accent,omitempty"`
}

func nonEmptyPtr(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// SaveTo writes the global config to a specific path atomically.
// Empty settings are omitted so defaults keep applying.
func SaveTo(path string, cfg *Config) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("config path is required")
	}
	if cfg == nil {
		cfg = &Config{}
	}

	out := persistedConfig{
		Home:          nonEmptyPtr(cfg.Home),
		ScriptsDir:    nonEmptyPtr(cfg.ScriptsDir),
		EnvsDir:       nonEmptyPtr(cfg.EnvsDir),
		SourceExt:     nonEmptyPtr(cfg.SourceExt),
		ArtifactMatch: nonEmptyPtr(cfg.ArtifactMatch),
		LogLevel:      nonEmptyPtr(cfg.LogLevel),
	}
	if len(cfg.Artifacts) > 0 {
		out.Artifacts = cfg.Artifacts
	}

	driver, dsn := nonEmptyPtr(cfg.Database.Driver), nonEmptyPtr(cfg.Database.DSN)
	if driver != nil || dsn != nil {
		out.Database = &persistedDatabase{Driver: driver, DSN: dsn}
	}
	listen := nonEmptyPtr(cfg.Events.Listen)
	if cfg.Events.Journal != nil || listen != nil {
		out.Events = &persistedEvents{Journal: cfg.Events.Journal, Listen: listen}
	}
	if accent := nonEmptyPtr(cfg.UI.Accent); accent != nil {
		out.UI = &persistedUISettings{Accent: accent}
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(out); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := atomicfile.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}

	return nil
}
