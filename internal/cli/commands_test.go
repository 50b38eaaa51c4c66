package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aidanlsb/chronos/internal/buildinfo"
	"github.com/aidanlsb/chronos/internal/testutil"
)

func TestUIDCommand(t *testing.T) {
	out, err := runCLI(t, "--json", "uid", "Backup Database", "Résumé Parser", "!!!")
	if err != nil {
		t.Fatalf("uid: %v", err)
	}
	result := testutil.ParseCLIResult([]byte(out), 0).MustSucceed(t)

	uids := result.DataList("uids")
	want := []struct {
		uid   string
		valid bool
	}{
		{"backup_database", true},
		{"resume_parser", true},
		{"", false},
	}
	if len(uids) != len(want) {
		t.Fatalf("uids = %v", uids)
	}
	for i, w := range want {
		got := uids[i].(map[string]interface{})
		if got["uid"] != w.uid || got["valid"] != w.valid {
			t.Fatalf("uids[%d] = %+v, want uid=%q valid=%t", i, got, w.uid, w.valid)
		}
	}
}

func TestUIDCommandText(t *testing.T) {
	out, err := runCLI(t, "uid", "nightly-sync")
	if err != nil {
		t.Fatalf("uid: %v", err)
	}
	if !strings.Contains(out, "nightly-sync") || !strings.Contains(out, "nightly_sync") {
		t.Fatalf("output = %q", out)
	}
}

func TestConfigInitCreatesConfigFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "nested", "config.toml")

	out, err := runCLI(t, "--json", "--config", cfgPath, "config", "init")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	result := testutil.ParseCLIResult([]byte(out), 0).MustSucceed(t)
	if result.Data["created"] != true || result.DataString("path") != cfgPath {
		t.Fatalf("data = %+v", result.Data)
	}

	content, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatalf("failed to read created config: %v", err)
	}
	if !strings.Contains(string(content), "# Chronos Configuration") {
		t.Fatalf("expected default config header in file, got:\n%s", string(content))
	}

	out, err = runCLI(t, "--json", "--config", cfgPath, "config", "init")
	if err != nil {
		t.Fatalf("second config init: %v", err)
	}
	if testutil.ParseCLIResult([]byte(out), 0).MustSucceed(t).Data["created"] != false {
		t.Fatalf("existing config should not be recreated: %s", out)
	}
}

func TestConfigShowResolvesHome(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	content := `
scripts_dir = "/srv/chronos/scripts"
artifact_match = "delimited"

[database]
driver = "postgres"
dsn = "postgres://chronos:hunter2@db:5432/chronos"
`
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	home := filepath.Join(dir, "home")

	out, err := runCLI(t, "--json", "--config", cfgPath, "--home", home, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	result := testutil.ParseCLIResult([]byte(out), 0).MustSucceed(t)

	if result.DataString("home") != home {
		t.Fatalf("home = %q, want %q", result.DataString("home"), home)
	}
	if result.DataString("scripts_dir") != filepath.Clean("/srv/chronos/scripts") {
		t.Fatalf("scripts_dir = %q", result.DataString("scripts_dir"))
	}
	if result.DataString("envs_dir") != filepath.Join(home, "envs") {
		t.Fatalf("envs_dir = %q", result.DataString("envs_dir"))
	}
	if result.DataString("artifact_match") != "delimited" || result.DataString("log_level") != "warn" {
		t.Fatalf("data = %+v", result.Data)
	}
	db := result.DataMap("database")
	if db["driver"] != "postgres" {
		t.Fatalf("database = %+v", db)
	}
	if dsn := db["dsn"].(string); strings.Contains(dsn, "hunter2") {
		t.Fatalf("dsn password not redacted: %s", dsn)
	}
}

func TestConfigShowMissingExplicitFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.toml")
	out, err := runCLI(t, "--json", "--config", missing, "config", "show")
	if err == nil {
		t.Fatal("expected error")
	}
	testutil.ParseCLIResult([]byte(out), 1).MustFail(t, ErrConfigInvalid)
}

func TestVersionCommandJSON(t *testing.T) {
	out, err := runCLI(t, "--json", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var resp struct {
		OK   bool           `json:"ok"`
		Data buildinfo.Info `json:"data"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, out)
	}
	if !resp.OK || resp.Data.Version == "" || resp.Data.GoVersion == "" || resp.Data.UIDVersion != 1 {
		t.Fatalf("response = %+v", resp)
	}
}

func TestConfigSet(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCLI(t, "--json", "--config", cfgPath, "config", "set", "log_level", "debug")
	if err != nil {
		t.Fatalf("config set: %v\n%s", err, out)
	}
	result := testutil.ParseCLIResult([]byte(out), 0).MustSucceed(t)
	if result.DataString("key") != "log_level" || result.DataString("value") != "debug" {
		t.Fatalf("data = %+v", result.Data)
	}

	if _, err := runCLI(t, "--json", "--config", cfgPath, "config", "set", "events.journal", "false"); err != nil {
		t.Fatalf("config set journal: %v", err)
	}

	out, err = runCLI(t, "--json", "--config", cfgPath, "--home", t.TempDir(), "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	shown := testutil.ParseCLIResult([]byte(out), 0).MustSucceed(t)
	if shown.DataString("log_level") != "debug" {
		t.Fatalf("log_level = %q", shown.DataString("log_level"))
	}
	if shown.DataMap("events")["journal"] != false {
		t.Fatalf("events = %+v", shown.DataMap("events"))
	}
}

func TestConfigSetRejectsBadInput(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode string
	}{
		{"unknown key", []string{"colour", "red"}, ErrInvalidInput},
		{"bad boolean", []string{"events.journal", "sometimes"}, ErrInvalidInput},
		{"invalid value", []string{"artifact_match", "fuzzy"}, ErrConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgPath := filepath.Join(t.TempDir(), "config.toml")
			args := append([]string{"--json", "--config", cfgPath, "config", "set"}, tt.args...)
			out, err := runCLI(t, args...)
			if err == nil {
				t.Fatal("expected error")
			}
			testutil.ParseCLIResult([]byte(out), 1).MustFail(t, tt.wantCode)
			if _, statErr := os.Stat(cfgPath); !os.IsNotExist(statErr) {
				t.Fatalf("config should not be written, stat err = %v", statErr)
			}
		})
	}
}
