package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/aidanlsb/chronos/internal/events"
	"github.com/aidanlsb/chronos/internal/testutil"
)

func TestEventsCommandReadsJournal(t *testing.T) {
	home := testutil.NewTestHome(t).WithScript("Backup DB").Build()
	runJSON(t, home, "rename", "Backup DB", "Nightly Backup").MustSucceed(t)

	tests := []struct {
		name  string
		args  []string
		count int
	}{
		{"all", nil, 2},
		{"recent duration", []string{"--since", "1h"}, 2},
		{"future date", []string{"--since", "2999-01-01"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := runJSON(t, home, append([]string{"events"}, tt.args...)...).MustSucceed(t)
			list := result.DataList("events")
			if len(list) != tt.count {
				t.Fatalf("events = %v, want %d", list, tt.count)
			}
			if tt.count > 0 {
				last := list[len(list)-1].(map[string]interface{})
				if last["event"] != events.ScriptRenamed {
					t.Fatalf("last event = %+v", last)
				}
			}
		})
	}
}

func TestEventsCommandText(t *testing.T) {
	home := testutil.NewTestHome(t).WithScript("Backup DB").Build()
	cfgPath := homeConfig(t, home)

	out, err := runCLI(t, "--home", home.Path, "--config", cfgPath, "events")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if !strings.Contains(out, "No events recorded.") {
		t.Fatalf("output = %q", out)
	}

	if _, err := runCLI(t, "--home", home.Path, "--config", cfgPath, "rename", "Backup DB", "Nightly Backup"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	out, err = runCLI(t, "--home", home.Path, "--config", cfgPath, "events")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if !strings.Contains(out, "script_renamed new_uid=nightly_backup old_uid=backup_db") {
		t.Fatalf("output = %q", out)
	}
}

func TestEventsCommandRejectsBadSince(t *testing.T) {
	home := testutil.NewTestHome(t).Build()
	runJSON(t, home, "events", "--since", "last tuesday").MustFail(t, ErrInvalidInput)
}

func TestParseSince(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "90m", want: now.Add(-90 * time.Minute)},
		{in: "2025-01-02T15:04:05Z", want: time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)},
		{in: "2025-01-02", want: time.Date(2025, 1, 2, 0, 0, 0, 0, time.Local)},
		{in: "-1h", wantErr: true},
		{in: "yesterday", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseSince(tt.in, now)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseSince(%q) = %v, want error", tt.in, got)
			}
			continue
		}
		if err != nil || !got.Equal(tt.want) {
			t.Errorf("parseSince(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}
