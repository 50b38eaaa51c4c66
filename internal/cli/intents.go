package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/chronos/internal/events"
	"github.com/aidanlsb/chronos/internal/intent"
	"github.com/aidanlsb/chronos/internal/lock"
	"github.com/aidanlsb/chronos/internal/rename"
	"github.com/aidanlsb/chronos/internal/ui"
)

type intentSummary struct {
	ID        string   `json:"id"`
	OldName   string   `json:"old_name"`
	NewName   string   `json:"new_name"`
	OldUID    string   `json:"old_uid"`
	NewUID    string   `json:"new_uid"`
	State     string   `json:"state"`
	Steps     []string `json:"steps"`
	Next      string   `json:"next,omitempty"`
	Error     string   `json:"error,omitempty"`
	StartedAt string   `json:"started_at"`
	UpdatedAt string   `json:"updated_at"`
}

func summarizeIntent(rec *intent.Record) intentSummary {
	steps := make([]string, len(rec.Steps))
	for i, s := range rec.Steps {
		steps[i] = string(s)
	}
	next, _ := rec.Next()
	return intentSummary{
		ID:        rec.ID,
		OldName:   rec.OldName,
		NewName:   rec.NewName,
		OldUID:    rec.OldUID.String(),
		NewUID:    rec.NewUID.String(),
		State:     string(rec.State),
		Steps:     steps,
		Next:      string(next),
		Error:     rec.Error,
		StartedAt: rec.StartedAt.Format(time.RFC3339),
		UpdatedAt: rec.UpdatedAt.Format(time.RFC3339),
	}
}

var intentsCmd = &cobra.Command{
	Use:   "intents",
	Short: "Inspect and finish partial renames",
	Long: `A rename records its progress in an intent file before it changes
anything. Intents left behind belong to renames that failed or were
interrupted; they can be resumed from the first incomplete step or
discarded.`,
}

var intentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List unfinished renames",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := intent.NewStore(intent.Dir(resolved.Home)).List()
		if err != nil {
			return handleError(ErrIntentInvalid, err, "")
		}

		summaries := make([]intentSummary, 0, len(records))
		for _, rec := range records {
			summaries = append(summaries, summarizeIntent(rec))
		}

		if isJSONOutput() {
			outputSuccess(map[string]interface{}{"intents": summaries}, &Meta{Count: len(summaries)})
			return nil
		}

		if len(summaries) == 0 {
			fmt.Println("No unfinished renames.")
			return nil
		}

		width := ui.DetectTerminal().Width
		fmt.Printf("%s %s\n", ui.Header("Unfinished renames"), ui.Count(len(summaries), "intent", "intents"))
		for i, rec := range records {
			s := summaries[i]
			fmt.Printf("\n%s  %s  %s %s\n", s.ID, ui.Transition(s.OldUID, s.NewUID), s.State,
				ui.Hint(ui.Progress(len(s.Steps), len(intent.Steps))))
			for _, step := range intent.Steps {
				fmt.Printf("  %s\n", ui.Step(string(step), rec.Done(step)))
			}
			if s.Error != "" {
				fmt.Printf("  %s\n", ui.Error(ui.Fit(s.Error, width-4)))
			}
		}
		return nil
	},
}

var intentsResumeCmd = &cobra.Command{
	Use:   "resume <id>",
	Short: "Resume a partial rename from its first incomplete step",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recorder := &events.Recorder{}
		a, err := openApp(recorder)
		if err != nil {
			return handleError(ErrDatabaseError, err, "")
		}
		defer a.Close()

		rec, err := a.intents.Load(args[0])
		if err != nil {
			return intentLoadError(args[0], err)
		}

		res, err := a.renamer.Resume(cmd.Context(), rec.ID)
		if err != nil {
			return handleRenameError(err)
		}
		outputRenamed(rec.OldName, rec.NewName, res, recorder)
		return nil
	},
}

var intentsDiscardCmd = &cobra.Command{
	Use:   "discard <id>",
	Short: "Forget a partial rename without changing any script",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := intent.NewStore(intent.Dir(resolved.Home))
		rec, err := store.Load(args[0])
		if err != nil {
			return intentLoadError(args[0], err)
		}

		// A rename still holding these identifiers owns its record.
		held, err := lock.New(lock.Dir(resolved.Home)).Acquire(rec.OldUID, rec.NewUID)
		if err != nil {
			if errors.Is(err, lock.ErrLocked) {
				return handleErrorMsg(rename.KindLocked.Code(), fmt.Sprintf("intent %s belongs to a rename in progress", rec.ID), "")
			}
			return handleError(ErrInternal, err, "")
		}
		defer held.Release()

		if err := store.Remove(rec.ID); err != nil {
			return intentLoadError(rec.ID, err)
		}

		if isJSONOutput() {
			outputSuccess(map[string]interface{}{"discarded": summarizeIntent(rec)}, nil)
			return nil
		}
		fmt.Println(ui.Successf("Discarded intent %s", rec.ID))
		return nil
	},
}

func intentLoadError(id string, err error) error {
	if errors.Is(err, intent.ErrNotFound) {
		return handleErrorMsg(ErrIntentNotFound, fmt.Sprintf("intent %s not found", id), "Run 'chronos intents list' to see unfinished renames")
	}
	return handleError(ErrIntentInvalid, err, "")
}

func init() {
	intentsCmd.AddCommand(intentsListCmd)
	intentsCmd.AddCommand(intentsResumeCmd)
	intentsCmd.AddCommand(intentsDiscardCmd)
	rootCmd.AddCommand(intentsCmd)
}
