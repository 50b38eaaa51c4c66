package cli

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/chronos/internal/config"
	"github.com/aidanlsb/chronos/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the chronos config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a commented default config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.ResolveConfigPath(configPath)
		_, statErr := os.Stat(path)
		existed := statErr == nil

		if _, err := config.CreateDefaultAt(path); err != nil {
			return handleError(ErrConfigInvalid, err, "")
		}

		if isJSONOutput() {
			outputSuccess(map[string]interface{}{
				"path":    path,
				"created": !existed,
			}, nil)
			return nil
		}
		if existed {
			fmt.Println(ui.Warning("Config already exists: " + ui.FilePath(path)))
			return nil
		}
		fmt.Println(ui.Success("Created " + ui.FilePath(path)))
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.ResolveConfigPath(configPath)
		_, statErr := os.Stat(path)

		loaded, _, err := loadGlobalConfigWithPath()
		if err != nil {
			return handleError(ErrConfigInvalid, err, "")
		}
		r, err := loaded.Resolve(homeFlag)
		if err != nil {
			return handleError(ErrConfigInvalid, err, "Fix the settings above in "+path)
		}

		data := map[string]interface{}{
			"config_path":    path,
			"exists":         statErr == nil,
			"home":           r.Home,
			"scripts_dir":    r.ScriptsDir,
			"envs_dir":       r.EnvsDir,
			"source_ext":     r.SourceExt,
			"artifacts":      r.Artifacts,
			"artifact_match": string(r.ArtifactMatch),
			"log_level":      strings.ToLower(r.LogLevel.String()),
			"database": map[string]interface{}{
				"driver": string(r.Driver),
				"dsn":    redactDSN(r.DSN),
			},
			"events": map[string]interface{}{
				"journal": r.Journal,
				"listen":  r.Listen,
			},
			"ui": map[string]interface{}{
				"accent": r.Accent,
			},
		}
		if isJSONOutput() {
			outputSuccess(data, nil)
			return nil
		}

		if statErr != nil {
			fmt.Println(ui.Hint("No config file at " + path + "; showing defaults. Run 'chronos config init' to create one."))
		} else {
			fmt.Printf("config: %s\n", ui.FilePath(path))
		}
		table := ui.NewTable(2)
		table.AddRow("home", r.Home)
		table.AddRow("scripts_dir", r.ScriptsDir)
		table.AddRow("envs_dir", r.EnvsDir)
		table.AddRow("source_ext", r.SourceExt)
		table.AddRow("artifacts", strings.Join(r.Artifacts, ", "))
		table.AddRow("artifact_match", string(r.ArtifactMatch))
		table.AddRow("log_level", strings.ToLower(r.LogLevel.String()))
		table.AddRow("database.driver", string(r.Driver))
		table.AddRow("database.dsn", redactDSN(r.DSN))
		table.AddRow("events.journal", fmt.Sprintf("%t", r.Journal))
		table.AddRow("events.listen", r.Listen)
		if r.Accent != "" {
			table.AddRow("ui.accent", r.Accent)
		}
		fmt.Print(table.String())
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one field in config.toml",
	Long: `Set one field in the global config file, creating the file if needed.

Keys:
  home, scripts_dir, envs_dir, source_ext, artifacts (comma separated),
  artifact_match, log_level, database.driver, database.dsn,
  events.journal, events.listen, ui.accent

An empty value clears the field so its default applies again.

Examples:
  chronos config set log_level debug
  chronos config set artifact_match delimited
  chronos config set events.journal false`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.ResolveConfigPath(configPath)
		loaded := &config.Config{}
		if _, err := os.Stat(path); err == nil {
			if loaded, err = config.LoadFrom(path); err != nil {
				return handleError(ErrConfigInvalid, err, "")
			}
		}

		key := strings.ToLower(strings.TrimSpace(args[0]))
		if err := setConfigField(loaded, key, strings.TrimSpace(args[1])); err != nil {
			return handleError(ErrInvalidInput, err, "Run 'chronos config set --help' to see the supported keys")
		}
		if err := loaded.Validate(); err != nil {
			return handleError(ErrConfigInvalid, err, "")
		}
		if err := config.SaveTo(path, loaded); err != nil {
			return handleError(ErrFileWriteError, err, "")
		}

		if isJSONOutput() {
			outputSuccess(map[string]interface{}{
				"path":  path,
				"key":   key,
				"value": strings.TrimSpace(args[1]),
			}, nil)
			return nil
		}
		fmt.Println(ui.Successf("Updated %s in %s", key, ui.FilePath(path)))
		return nil
	},
}

func setConfigField(c *config.Config, key, value string) error {
	switch key {
	case "home":
		c.Home = value
	case "scripts_dir":
		c.ScriptsDir = value
	case "envs_dir":
		c.EnvsDir = value
	case "source_ext":
		c.SourceExt = value
	case "artifacts":
		c.Artifacts = nil
		for _, a := range strings.Split(value, ",") {
			if a = strings.TrimSpace(a); a != "" {
				c.Artifacts = append(c.Artifacts, a)
			}
		}
	case "artifact_match":
		c.ArtifactMatch = value
	case "log_level":
		c.LogLevel = value
	case "database.driver":
		c.Database.Driver = value
	case "database.dsn":
		c.Database.DSN = value
	case "events.journal":
		if value == "" {
			c.Events.Journal = nil
			return nil
		}
		on, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("events.journal: %q is not a boolean", value)
		}
		c.Events.Journal = &on
	case "events.listen":
		c.Events.Listen = value
	case "ui.accent":
		c.UI.Accent = value
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}

// redactDSN hides the password of URL style DSNs.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
