package metadata

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/aidanlsb/chronos/internal/uid"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedScript(t *testing.T, s *Store, id uid.ID, name string, logs int) {
	t.Helper()
	ctx := context.Background()
	if err := s.CreateScript(ctx, Script{UID: id, Name: name, Enabled: true, Schedule: "0 * * * *"}); err != nil {
		t.Fatalf("CreateScript(%s): %v", id, err)
	}
	for i := 0; i < logs; i++ {
		if _, err := s.AppendLog(ctx, Log{Script: id, ExitCode: i, Output: "run"}); err != nil {
			t.Fatalf("AppendLog(%s): %v", id, err)
		}
	}
}

func TestOpenCreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chronos.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()

	v, err := s.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != CurrentSchemaVersion {
		t.Fatalf("schema version = %d, want %d", v, CurrentSchemaVersion)
	}
	if s.Driver() != DriverSQLite {
		t.Fatalf("driver = %q", s.Driver())
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chronos.db")
	for i := 0; i < 3; i++ {
		s, err := OpenSQLite(path)
		if err != nil {
			t.Fatalf("OpenSQLite iteration %d: %v", i, err)
		}
		if i == 0 {
			seedScript(t, s, "alpha", "Alpha", 1)
		}
		s.Close()
	}

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()
	sc, err := s.Script(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("Script: %v", err)
	}
	if sc.Name != "Alpha" {
		t.Fatalf("name = %q", sc.Name)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(Options{Driver: "mysql", DSN: "x"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if _, err := Open(Options{Driver: DriverSQLite}); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}

func TestParseDriver(t *testing.T) {
	for in, want := range map[string]Driver{
		"":           DriverSQLite,
		"sqlite":     DriverSQLite,
		"postgres":   DriverPostgres,
		"PostgreSQL": DriverPostgres,
		"pgx":        DriverPostgres,
	} {
		got, err := ParseDriver(in)
		if err != nil || got != want {
			t.Fatalf("ParseDriver(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseDriver("oracle"); err == nil {
		t.Fatal("expected error")
	}
}

func TestCreateScriptDuplicate(t *testing.T) {
	s := openTestStore(t)
	seedScript(t, s, "alpha", "Alpha", 0)

	err := s.CreateScript(context.Background(), Script{UID: "alpha", Name: "Again"})
	if !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
}

func TestScriptNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Script(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLogsRequireExistingScript(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.AppendLog(context.Background(), Log{Script: "ghost"}); err == nil {
		t.Fatal("expected foreign key violation for log without script")
	}
}

func TestStoreListing(t *testing.T) {
	s := openTestStore(t)
	seedScript(t, s, "beta", "Beta", 0)
	seedScript(t, s, "alpha", "Alpha", 2)

	ctx := context.Background()
	scripts, err := s.Scripts(ctx)
	if err != nil {
		t.Fatalf("Scripts: %v", err)
	}
	if len(scripts) != 2 || scripts[0].UID != "alpha" || scripts[1].UID != "beta" {
		t.Fatalf("Scripts = %+v", scripts)
	}
	if !scripts[0].Enabled || scripts[0].Schedule != "0 * * * *" {
		t.Fatalf("fields not round-tripped: %+v", scripts[0])
	}

	logs, err := s.Logs(ctx, "alpha")
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if len(logs) != 2 || logs[0].ID >= logs[1].ID {
		t.Fatalf("Logs = %+v", logs)
	}
}

func TestCreateScriptKeepsTimestamps(t *testing.T) {
	s := openTestStore(t)
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	if err := s.CreateScript(ctx, Script{UID: "alpha", Name: "Alpha", CreatedAt: created}); err != nil {
		t.Fatalf("CreateScript: %v", err)
	}
	sc, err := s.Script(ctx, "alpha")
	if err != nil {
		t.Fatalf("Script: %v", err)
	}
	if !sc.CreatedAt.Equal(created) || !sc.UpdatedAt.Equal(created) {
		t.Fatalf("timestamps = %v / %v, want %v", sc.CreatedAt, sc.UpdatedAt, created)
	}
}
