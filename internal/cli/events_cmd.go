package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/chronos/internal/events"
	"github.com/aidanlsb/chronos/internal/ui"
)

var eventsSince string

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show events recorded in the event journal",
	Long: `Show the events completed renames wrote to the journal
(<home>/state/events.log), oldest first.

--since takes a duration back from now (90m, 24h) or a timestamp
(2025-01-02 or 2025-01-02T15:04:05Z).

Examples:
  chronos events
  chronos events --since 24h
  chronos events --since 2025-01-02 --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		journal := events.NewJournal(events.JournalPath(resolved.Home), logger)

		var (
			list []events.Event
			err  error
		)
		if strings.TrimSpace(eventsSince) != "" {
			since, perr := parseSince(eventsSince, time.Now())
			if perr != nil {
				return handleError(ErrInvalidInput, perr, "Use a duration like 24h or a date like 2025-01-02")
			}
			list, err = journal.ReadSince(since)
		} else {
			list, err = journal.Read()
		}
		if err != nil {
			return handleError(ErrFileReadError, err, "")
		}
		if list == nil {
			list = []events.Event{}
		}

		if isJSONOutput() {
			outputSuccess(map[string]interface{}{
				"journal": journal.Path(),
				"events":  list,
			}, &Meta{Count: len(list)})
			return nil
		}

		if len(list) == 0 {
			fmt.Println(ui.Hint("No events recorded."))
			return nil
		}
		for _, e := range list {
			fmt.Printf("%s  %s\n", ui.Hint(e.Time.Local().Format("2006-01-02 15:04:05")), events.Format(e.Name, e.Payload))
		}
		return nil
	},
}

// parseSince accepts a duration back from now or an absolute time.
func parseSince(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseDuration(s); err == nil {
		if d < 0 {
			return time.Time{}, fmt.Errorf("--since duration %q must not be negative", s)
		}
		return now.Add(-d), nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse --since %q", s)
}

func init() {
	eventsCmd.Flags().StringVar(&eventsSince, "since", "", "Only show events at or after this time or duration ago")
	rootCmd.AddCommand(eventsCmd)
}
