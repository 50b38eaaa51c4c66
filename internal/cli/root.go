// Package cli implements the command-line interface.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/chronos/internal/config"
	"github.com/aidanlsb/chronos/internal/ui"
)

var (
	// Global flags
	configPath string
	homeFlag   string
	verbose    bool

	// Resolved values
	resolvedConfigPath string
	cfg                *config.Config
	resolved           *config.Resolved
	logger             = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "chronos",
	Short: "Chronos - scheduled Python scripts",
	Long: `Chronos runs Python scripts on a schedule, each in its own directory,
virtual environment and metadata record.

Every script is keyed by an identifier derived from its name. Renaming a
script moves all of those together.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.DetectTerminal().ApplyColorProfile()

		// Skip home resolution for commands that don't need it
		switch cmd.Name() {
		case "completion", "help", "version", "uid":
			return nil
		}
		if cmd.Parent() != nil && (cmd.Parent().Name() == "completion" || cmd.Parent().Name() == "config") {
			return nil
		}

		var err error
		cfg, resolvedConfigPath, err = loadGlobalConfigWithPath()
		if err != nil {
			return handleError(ErrConfigInvalid, err, "Run 'chronos config show' to inspect the active config")
		}
		resolved, err = cfg.Resolve(homeFlag)
		if err != nil {
			return handleError(ErrConfigInvalid, err, "Fix the settings above in "+resolvedConfigPath)
		}
		ui.ConfigureTheme(resolved.Accent)

		level := resolved.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		return nil
	},
}

// Execute runs the CLI.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, errReported) {
		fmt.Fprintln(os.Stderr, ui.Error(err.Error()))
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&homeFlag, "home", "", "Chronos home directory (overrides "+config.HomeEnv+" and config)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format (for agent/script use)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Log every rename step to stderr")
}

func loadGlobalConfigWithPath() (*config.Config, string, error) {
	loadedCfg, err := config.LoadPath(configPath)
	if err != nil {
		return nil, "", err
	}
	if loadedCfg == nil {
		loadedCfg = &config.Config{}
	}
	return loadedCfg, config.ResolveConfigPath(configPath), nil
}
