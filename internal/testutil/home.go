// Package testutil provides reusable fixtures for chronos tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/aidanlsb/chronos/internal/metadata"
	"github.com/aidanlsb/chronos/internal/uid"
)

// TestHome is a temporary chronos home populated with scripts.
type TestHome struct {
	Path string
	t    *testing.T

	scripts []scriptFixture
	files   map[string]string
}

type scriptFixture struct {
	name      string
	id        uid.ID
	logs      int
	dir       bool
	source    bool
	artifacts bool
	env       bool
	row       bool
}

// ScriptOption adjusts which parts of a script fixture are created.
type ScriptOption func(*scriptFixture)

// WithoutDir skips the script directory (and so its source and artifacts).
func WithoutDir() ScriptOption { return func(f *scriptFixture) { f.dir = false } }

// WithoutSource skips the primary source file.
func WithoutSource() ScriptOption { return func(f *scriptFixture) { f.source = false } }

// WithoutArtifacts skips execute.sh and install.sh.
func WithoutArtifacts() ScriptOption { return func(f *scriptFixture) { f.artifacts = false } }

// WithoutEnv skips the execution environment.
func WithoutEnv() ScriptOption { return func(f *scriptFixture) { f.env = false } }

// WithoutRow skips the scripts row and its logs.
func WithoutRow() ScriptOption { return func(f *scriptFixture) { f.row = false } }

// WithLogs sets how many log rows the script gets.
func WithLogs(n int) ScriptOption { return func(f *scriptFixture) { f.logs = n } }

// NewTestHome creates a new test home builder.
// Call Build() to create the actual directory.
func NewTestHome(t *testing.T) *TestHome {
	t.Helper()
	return &TestHome{t: t, files: make(map[string]string)}
}

// WithScript adds a fully provisioned script called name.
func (h *TestHome) WithScript(name string, opts ...ScriptOption) *TestHome {
	f := scriptFixture{
		name: name, id: uid.For(name), logs: 2,
		dir: true, source: true, artifacts: true, env: true, row: true,
	}
	for _, opt := range opts {
		opt(&f)
	}
	h.scripts = append(h.scripts, f)
	return h
}

// WithFile adds a file relative to the home root.
func (h *TestHome) WithFile(path, content string) *TestHome {
	h.files[path] = content
	return h
}

// Build creates the home directory, its files and the metadata database.
func (h *TestHome) Build() *TestHome {
	h.t.Helper()
	h.Path = h.t.TempDir()

	for path, content := range h.files {
		h.writeFile(path, content, 0644)
	}

	store, err := metadata.OpenSQLite(h.DBPath())
	if err != nil {
		h.t.Fatalf("failed to open metadata store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	for _, f := range h.scripts {
		id := f.id.String()
		if f.dir {
			if err := os.MkdirAll(filepath.Join(h.ScriptsDir(), id), 0755); err != nil {
				h.t.Fatalf("failed to create script dir: %v", err)
			}
		}
		if f.dir && f.source {
			h.writeFile(filepath.Join("scripts", id, id+".py"), fmt.Sprintf("print(%q)\n", f.name), 0644)
		}
		if f.dir && f.artifacts {
			h.writeFile(filepath.Join("scripts", id, "execute.sh"), ExecuteScript(f.id), 0755)
			h.writeFile(filepath.Join("scripts", id, "install.sh"), InstallScript(f.id), 0755)
		}
		if f.env {
			envDir := filepath.Join(h.EnvsDir(), id)
			h.writeFile(filepath.Join("envs", id, "pyvenv.cfg"), "home = /usr/bin\ncommand = python3 -m venv "+envDir+"\n", 0644)
			h.writeFile(filepath.Join("envs", id, "bin", "activate"), "VIRTUAL_ENV=\""+envDir+"\"\nexport VIRTUAL_ENV\n", 0644)
		}
		if f.row {
			if err := store.CreateScript(ctx, metadata.Script{UID: f.id, Name: f.name, Enabled: true}); err != nil {
				h.t.Fatalf("failed to create script row: %v", err)
			}
			for i := 0; i < f.logs; i++ {
				if _, err := store.AppendLog(ctx, metadata.Log{Script: f.id, Output: fmt.Sprintf("run %d", i)}); err != nil {
					h.t.Fatalf("failed to append log: %v", err)
				}
			}
		}
	}
	return h
}

// ExecuteScript returns the launcher content generated for id.
func ExecuteScript(id uid.ID) string {
	return fmt.Sprintf("#!/bin/sh\nsource \"$CHRONOS_HOME/envs/%[1]s/bin/activate\"\npython \"$CHRONOS_HOME/scripts/%[1]s/%[1]s.py\" \"$@\"\n", id)
}

// InstallScript returns the installer content generated for id.
func InstallScript(id uid.ID) string {
	return fmt.Sprintf("#!/bin/sh\n\"$CHRONOS_HOME/envs/%[1]s/bin/pip\" install -r requirements.txt\n", id)
}

// ScriptsDir returns the scripts root.
func (h *TestHome) ScriptsDir() string { return filepath.Join(h.Path, "scripts") }

// EnvsDir returns the environments root.
func (h *TestHome) EnvsDir() string { return filepath.Join(h.Path, "envs") }

// DBPath returns the metadata database path.
func (h *TestHome) DBPath() string { return filepath.Join(h.Path, "chronos.db") }

// OpenStore opens the home's metadata store and closes it with the test.
func (h *TestHome) OpenStore() *metadata.Store {
	h.t.Helper()
	store, err := metadata.OpenSQLite(h.DBPath())
	if err != nil {
		h.t.Fatalf("failed to open metadata store: %v", err)
	}
	h.t.Cleanup(func() { store.Close() })
	return store
}

func (h *TestHome) writeFile(relPath, content string, perm os.FileMode) {
	h.t.Helper()
	fullPath := filepath.Join(h.Path, relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		h.t.Fatalf("failed to create directory for %s: %v", relPath, err)
	}
	if err := os.WriteFile(fullPath, []byte(content), perm); err != nil {
		h.t.Fatalf("failed to write file %s: %v", fullPath, err)
	}
}

// ReadFile reads a file relative to the home root.
func (h *TestHome) ReadFile(relPath string) string {
	h.t.Helper()
	content, err := os.ReadFile(filepath.Join(h.Path, relPath))
	if err != nil {
		h.t.Fatalf("failed to read file %s: %v", relPath, err)
	}
	return string(content)
}

// FileExists checks if a path exists relative to the home root.
func (h *TestHome) FileExists(relPath string) bool {
	h.t.Helper()
	_, err := os.Stat(filepath.Join(h.Path, relPath))
	return err == nil
}
