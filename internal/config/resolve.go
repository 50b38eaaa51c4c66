package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aidanlsb/chronos/internal/metadata"
	"github.com/aidanlsb/chronos/internal/scriptfs"
)

// HomeEnv overrides the configured home directory.
const HomeEnv = "CHRONOS_HOME"

// DefaultListen is the serve address when none is configured.
const DefaultListen = "127.0.0.1:8787"

// Resolved is a validated configuration with every default applied and
// every path made absolute.
type Resolved struct {
	Home          string
	ScriptsDir    string
	EnvsDir       string
	SourceExt     string
	Artifacts     []string
	ArtifactMatch scriptfs.MatchMode
	Driver        metadata.Driver
	DSN           string
	Journal       bool
	Listen        string
	LogLevel      slog.Level
	Accent        string
}

// Validate reports every invalid setting in c.
func (c *Config) Validate() error {
	var errs []error

	if d, err := metadata.ParseDriver(c.Database.Driver); err != nil {
		errs = append(errs, fmt.Errorf("database.driver: %w", err))
	} else if d == metadata.DriverPostgres && strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, errors.New("database.dsn: required for postgres"))
	}
	if _, err := scriptfs.ParseMatchMode(c.ArtifactMatch); err != nil {
		errs = append(errs, fmt.Errorf("artifact_match: %w", err))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if ext := strings.TrimSpace(c.SourceExt); strings.ContainsAny(ext, `/\`) {
		errs = append(errs, fmt.Errorf("source_ext: %q must not contain a path separator", ext))
	}
	for _, a := range c.Artifacts {
		if strings.TrimSpace(a) == "" || strings.ContainsAny(a, `/\`) || a == "." || a == ".." {
			errs = append(errs, fmt.Errorf("artifacts: %q must be a plain file name", a))
		}
	}
	return errors.Join(errs...)
}

// Resolve validates c and applies defaults. homeOverride (from --home) wins
// over CHRONOS_HOME, which wins over the home setting.
func (c *Config) Resolve(homeOverride string) (*Resolved, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	home, err := resolveHome(homeOverride, c.Home)
	if err != nil {
		return nil, err
	}

	r := &Resolved{
		Home:       home,
		ScriptsDir: underHome(home, c.ScriptsDir, "scripts"),
		EnvsDir:    underHome(home, c.EnvsDir, "envs"),
		SourceExt:  strings.TrimSpace(c.SourceExt),
		Artifacts:  append([]string(nil), c.Artifacts...),
		Journal:    c.Events.Journal == nil || *c.Events.Journal,
		Listen:     strings.TrimSpace(c.Events.Listen),
		Accent:     strings.TrimSpace(c.UI.Accent),
	}
	if r.SourceExt == "" {
		r.SourceExt = scriptfs.DefaultSourceExt
	}
	if len(r.Artifacts) == 0 {
		r.Artifacts = append([]string(nil), scriptfs.DefaultArtifacts...)
	}
	if r.Listen == "" {
		r.Listen = DefaultListen
	}
	r.ArtifactMatch, _ = scriptfs.ParseMatchMode(c.ArtifactMatch)
	r.LogLevel, _ = parseLevel(c.LogLevel)
	r.Driver, _ = metadata.ParseDriver(c.Database.Driver)

	r.DSN = strings.TrimSpace(c.Database.DSN)
	if r.Driver == metadata.DriverSQLite {
		r.DSN = underHome(home, r.DSN, "chronos.db")
	}
	return r, nil
}

// Layout returns the script layout described by r.
func (r *Resolved) Layout() scriptfs.Layout {
	return scriptfs.Layout{Root: r.ScriptsDir, SourceExt: r.SourceExt, Artifacts: r.Artifacts}
}

func resolveHome(override, configured string) (string, error) {
	home := strings.TrimSpace(override)
	if home == "" {
		home = strings.TrimSpace(os.Getenv(HomeEnv))
	}
	if home == "" {
		home = strings.TrimSpace(configured)
	}
	if home == "" {
		home = "~/.chronos"
	}

	home, err := expandUser(home)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(home)
	if err != nil {
		return "", fmt.Errorf("failed to resolve home %s: %w", home, err)
	}
	return abs, nil
}

func expandUser(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to expand %s: %w", p, err)
	}
	return filepath.Join(userHome, strings.TrimPrefix(p, "~")), nil
}

// underHome resolves value against home, using def when value is empty.
// Memory and URI style SQLite DSNs pass through untouched.
func underHome(home, value, def string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		value = def
	}
	if value == ":memory:" || strings.HasPrefix(value, "file:") {
		return value
	}
	if expanded, err := expandUser(value); err == nil {
		value = expanded
	}
	if filepath.IsAbs(value) {
		return filepath.Clean(value)
	}
	return filepath.Join(home, filepath.FromSlash(value))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	s = strings.TrimSpace(s)
	if s == "" {
		return slog.LevelWarn, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown level %q", s)
	}
	return level, nil
}
