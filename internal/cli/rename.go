package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/chronos/internal/events"
	"github.com/aidanlsb/chronos/internal/rename"
	"github.com/aidanlsb/chronos/internal/ui"
)

var renamePrintEvents bool

var renameCmd = &cobra.Command{
	Use:   "rename <old-name> <new-name>",
	Short: "Rename a script",
	Long: `Rename a script and everything keyed by its identifier.

The script directory, its source file, generated launchers, its virtual
environment, its metadata row and its execution logs all move to the
identifier derived from the new name. Completed steps are not undone on
failure; use 'chronos intents' to inspect and resume a partial rename.

Examples:
  chronos rename "Backup DB" "Nightly Backup"
  chronos rename backup_db nightly_backup --json`,
	Args: cobra.ExactArgs(2),
	RunE: runRename,
}

func runRename(cmd *cobra.Command, args []string) error {
	recorder := &events.Recorder{}
	buses := []events.Bus{recorder}
	if renamePrintEvents && !isJSONOutput() {
		buses = append(buses, events.NewPrinter(os.Stdout))
	}

	a, err := openApp(buses...)
	if err != nil {
		return handleError(ErrDatabaseError, err, "")
	}
	defer a.Close()

	req := rename.Request{OldName: args[0], NewName: args[1]}
	res, err := a.renamer.Rename(cmd.Context(), req)
	if err != nil {
		return handleRenameError(err)
	}

	outputRenamed(req.OldName, req.NewName, res, recorder)
	return nil
}

func outputRenamed(oldName, newName string, res rename.Result, recorder *events.Recorder) {
	if isJSONOutput() {
		outputSuccess(map[string]interface{}{
			"old_name": oldName,
			"new_name": newName,
			"old_uid":  res.OldUID,
			"new_uid":  res.NewUID,
			"events":   recorder.Names(),
		}, nil)
		return
	}

	fmt.Println(ui.Successf("Renamed %s", newName))
	fmt.Printf("  %s\n", ui.Transition(res.OldUID.String(), res.NewUID.String()))
}

func init() {
	renameCmd.Flags().BoolVar(&renamePrintEvents, "events", false, "Print emitted events")
	rootCmd.AddCommand(renameCmd)
}
