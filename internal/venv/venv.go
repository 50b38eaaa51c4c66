// Package venv manages per-script isolated Python environments stored as
// directories named after the script identifier.
package venv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aidanlsb/chronos/internal/atomicfile"
	"github.com/aidanlsb/chronos/internal/uid"
)

var (
	// ErrNotFound indicates the environment to rename does not exist.
	ErrNotFound = errors.New("environment not found")
	// ErrExists indicates an environment already exists under the target identifier.
	ErrExists = errors.New("environment already exists")
)

// Files larger than this in bin/ are assumed to be binaries.
const maxScriptSize = 1 << 20

// Manager renames environments under Root.
type Manager struct {
	Root string
}

// New returns a manager for environments stored under root.
func New(root string) *Manager {
	return &Manager{Root: root}
}

// Path returns the environment directory for id.
func (m *Manager) Path(id uid.ID) string {
	return filepath.Join(m.Root, id.String())
}

// Exists reports whether an environment exists for id.
func (m *Manager) Exists(id uid.ID) bool {
	st, err := os.Stat(m.Path(id))
	return err == nil && st.IsDir()
}

// Rename moves the environment of oldID to newID.
//
// Virtualenvs embed their absolute location in activation scripts, console
// script shebangs and pyvenv.cfg, so those are rewritten after the directory
// rename to keep the environment usable.
func (m *Manager) Rename(ctx context.Context, oldID, newID uid.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	oldPath, err := filepath.Abs(m.Path(oldID))
	if err != nil {
		return err
	}
	newPath, err := filepath.Abs(m.Path(newID))
	if err != nil {
		return err
	}

	st, err := os.Stat(oldPath)
	if err != nil || !st.IsDir() {
		return fmt.Errorf("rename environment %s: %w", oldID, ErrNotFound)
	}
	if _, err := os.Lstat(newPath); err == nil {
		return fmt.Errorf("rename environment %s: %s: %w", oldID, newID, ErrExists)
	}

	if err := os.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("rename environment %s: %w", oldID, err)
	}

	if err := relink(newPath, oldPath, newPath); err != nil {
		return fmt.Errorf("rewrite environment paths for %s: %w", newID, err)
	}
	return nil
}

// relink rewrites oldPath to newPath in the text files of an environment.
func relink(envDir, oldPath, newPath string) error {
	candidates := []string{filepath.Join(envDir, "pyvenv.cfg")}

	for _, binDir := range []string{"bin", "Scripts"} {
		entries, err := os.ReadDir(filepath.Join(envDir, binDir))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		for _, e := range entries {
			if e.Type().IsRegular() {
				candidates = append(candidates, filepath.Join(envDir, binDir, e.Name()))
			}
		}
	}

	oldB, newB := []byte(oldPath), []byte(newPath)
	for _, path := range candidates {
		ok, err := isTextFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		if !ok {
			continue
		}
		_, err = atomicfile.Rewrite(path, func(b []byte) ([]byte, bool) {
			if !bytes.Contains(b, oldB) {
				return b, false
			}
			return bytes.ReplaceAll(b, oldB, newB), true
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// isTextFile reports whether path looks like a small text file.
func isTextFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return false, err
	}
	if st.Size() > maxScriptSize {
		return false, nil
	}

	head := make([]byte, 8000)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return false, err
	}
	return bytes.IndexByte(head[:n], 0) < 0, nil
}
