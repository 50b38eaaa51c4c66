package testutil

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/aidanlsb/chronos/internal/metadata"
	"github.com/aidanlsb/chronos/internal/uid"
)

// AssertFileExists fails the test if the file does not exist.
func (h *TestHome) AssertFileExists(relPath string) {
	h.t.Helper()
	if _, err := os.Stat(filepath.Join(h.Path, relPath)); os.IsNotExist(err) {
		h.t.Errorf("expected file to exist: %s", relPath)
	}
}

// AssertFileNotExists fails the test if the file exists.
func (h *TestHome) AssertFileNotExists(relPath string) {
	h.t.Helper()
	if _, err := os.Stat(filepath.Join(h.Path, relPath)); err == nil {
		h.t.Errorf("expected file to not exist: %s", relPath)
	}
}

// AssertFileContains fails the test if the file does not contain the substring.
func (h *TestHome) AssertFileContains(relPath, substr string) {
	h.t.Helper()
	content := h.ReadFile(relPath)
	if !strings.Contains(content, substr) {
		h.t.Errorf("expected file %s to contain %q, got:\n%s", relPath, substr, content)
	}
}

// AssertFileNotContains fails the test if the file contains the substring.
func (h *TestHome) AssertFileNotContains(relPath, substr string) {
	h.t.Helper()
	content := h.ReadFile(relPath)
	if strings.Contains(content, substr) {
		h.t.Errorf("expected file %s to not contain %q, got:\n%s", relPath, substr, content)
	}
}

// AssertDirExists fails the test if the directory does not exist.
func (h *TestHome) AssertDirExists(relPath string) {
	h.t.Helper()
	info, err := os.Stat(filepath.Join(h.Path, relPath))
	if os.IsNotExist(err) {
		h.t.Errorf("expected directory to exist: %s", relPath)
		return
	}
	if err == nil && !info.IsDir() {
		h.t.Errorf("expected %s to be a directory, but it's a file", relPath)
	}
}

// AssertScriptRow fails the test unless the store has a row for id named name.
func (h *TestHome) AssertScriptRow(store *metadata.Store, id uid.ID, name string) {
	h.t.Helper()
	sc, err := store.Script(context.Background(), id)
	if err != nil {
		h.t.Errorf("expected script row %s: %v", id, err)
		return
	}
	if sc.Name != name {
		h.t.Errorf("script %s name = %q, want %q", id, sc.Name, name)
	}
}

// AssertNoScriptRow fails the test if the store has a row for id.
func (h *TestHome) AssertNoScriptRow(store *metadata.Store, id uid.ID) {
	h.t.Helper()
	if _, err := store.Script(context.Background(), id); !errors.Is(err, metadata.ErrNotFound) {
		h.t.Errorf("expected no script row for %s, got %v", id, err)
	}
}

// AssertLogCount fails the test unless id has exactly n logs.
func (h *TestHome) AssertLogCount(store *metadata.Store, id uid.ID, n int) {
	h.t.Helper()
	logs, err := store.Logs(context.Background(), id)
	if err != nil {
		h.t.Errorf("failed to load logs for %s: %v", id, err)
		return
	}
	if len(logs) != n {
		h.t.Errorf("logs for %s = %d, want %d", id, len(logs), n)
	}
}
