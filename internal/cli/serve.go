package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/chronos/internal/events"
	"github.com/aidanlsb/chronos/internal/metadata"
	"github.com/aidanlsb/chronos/internal/server"
	"github.com/aidanlsb/chronos/internal/ui"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the rename API and event stream over HTTP",
	Long: `Serve the chronos HTTP API.

Endpoints:
  POST /api/scripts/rename   {"old_name": "...", "new_name": "..."}
  GET  /api/events           websocket stream of emitted events
  GET  /healthz, /readyz     liveness and readiness probes

Examples:
  chronos serve
  chronos serve --listen 0.0.0.0:9000`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := serveListen
		if addr == "" {
			addr = resolved.Listen
		}

		hub := events.NewHub(logger)
		defer hub.Close()

		a, err := openApp(hub)
		if err != nil {
			return handleError(ErrDatabaseError, err, "")
		}
		defer a.Close()

		handler := server.New(server.Options{
			Logger:  logger,
			Renamer: a.renamer,
			Events:  hub,
			Checks: []server.Check{
				{Name: "metadata", Check: schemaCheck(a.store)},
				{Name: "scripts", Check: dirCheck(resolved.ScriptsDir)},
			},
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Fprintln(os.Stderr, ui.Hint("chronos serving on http://"+addr))
		if err := server.Run(ctx, logger, server.Config{Addr: addr}, handler); err != nil {
			return handleError(ErrServerFailed, err, "")
		}
		return nil
	},
}

// schemaCheck passes when the metadata store answers with the schema version
// this build writes.
func schemaCheck(store *metadata.Store) func(context.Context) error {
	return func(ctx context.Context) error {
		v, err := store.SchemaVersion(ctx)
		if err != nil {
			return err
		}
		if v != metadata.CurrentSchemaVersion {
			return fmt.Errorf("schema version %d, want %d", v, metadata.CurrentSchemaVersion)
		}
		return nil
	}
}

func dirCheck(dir string) func(context.Context) error {
	return func(context.Context) error {
		info, err := os.Stat(dir)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", dir)
		}
		return nil
	}
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (default from config events.listen)")
	rootCmd.AddCommand(serveCmd)
}
