package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/chronos/internal/ui"
	"github.com/aidanlsb/chronos/internal/uid"
)

type uidResult struct {
	Name  string `json:"name"`
	UID   string `json:"uid"`
	Valid bool   `json:"valid"`
}

var uidCmd = &cobra.Command{
	Use:   "uid <name>...",
	Short: "Show the identifier derived from script names",
	Long: `Show the identifier chronos derives from each name.

The identifier names the script directory, its environment and its
metadata row. Names that normalize to nothing have no usable identifier.

Examples:
  chronos uid "Backup Database"
  chronos uid "Résumé Parser" nightly-sync --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		results := make([]uidResult, 0, len(args))
		for _, name := range args {
			id := uid.For(name)
			results = append(results, uidResult{Name: name, UID: id.String(), Valid: id.Valid()})
		}

		if isJSONOutput() {
			outputSuccess(map[string]interface{}{
				"version": uid.Version,
				"uids":    results,
			}, &Meta{Count: len(results)})
			return nil
		}

		table := ui.NewTable(2)
		for _, r := range results {
			id := ui.ID(r.UID)
			if !r.Valid {
				id = ui.Hint("(no usable identifier)")
			}
			table.AddRow(r.Name, id)
		}
		fmt.Print(table.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uidCmd)
}
