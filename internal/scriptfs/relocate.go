package scriptfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aidanlsb/chronos/internal/atomicfile"
	"github.com/aidanlsb/chronos/internal/uid"
)

var (
	// ErrNotFound indicates a required directory or file is missing.
	ErrNotFound = errors.New("does not exist")
	// ErrExists indicates the rename target is already taken.
	ErrExists = errors.New("already exists")
)

// PathError describes which part of the script layout failed and where.
type PathError struct {
	What string // e.g. "old script directory"
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s %v", e.What, e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// Relocator renames a script's directory, source file and artifact contents.
type Relocator struct {
	Layout Layout
	Match  MatchMode
}

// NewRelocator returns a relocator using literal artifact matching.
func NewRelocator(layout Layout) *Relocator {
	return &Relocator{Layout: layout, Match: MatchLiteral}
}

// Relocate moves the script oldID to newID on disk.
//
// Steps run in order and are not rolled back: if the source file is missing
// the directory has already been renamed when the error is returned.
func (r *Relocator) Relocate(oldID, newID uid.ID) error {
	if err := r.RenameDir(oldID, newID); err != nil {
		return err
	}
	if err := r.RenameSource(oldID, newID); err != nil {
		return err
	}
	_, err := r.PatchArtifacts(oldID, newID, nil)
	return err
}

// DirRelocated reports whether the script directory already sits at newID
// with nothing left at oldID.
func (r *Relocator) DirRelocated(oldID, newID uid.ID) bool {
	return !exists(r.Layout.Dir(oldID)) && r.Layout.Exists(newID)
}

// SourceRelocated reports whether the renamed directory holds the new source
// file and no old one.
func (r *Relocator) SourceRelocated(oldID, newID uid.ID) bool {
	dir := r.Layout.Dir(newID)
	return !exists(filepath.Join(dir, r.Layout.SourceName(oldID))) &&
		exists(filepath.Join(dir, r.Layout.SourceName(newID)))
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// RenameDir renames <root>/oldID to <root>/newID with a single rename(2).
func (r *Relocator) RenameDir(oldID, newID uid.ID) error {
	oldDir := r.Layout.Dir(oldID)
	newDir := r.Layout.Dir(newID)

	st, err := os.Stat(oldDir)
	if err != nil {
		if os.IsNotExist(err) {
			return &PathError{What: "old script directory", Path: oldDir, Err: ErrNotFound}
		}
		return &PathError{What: "old script directory", Path: oldDir, Err: err}
	}
	if !st.IsDir() {
		return &PathError{What: "old script directory", Path: oldDir, Err: ErrNotFound}
	}

	if _, err := os.Lstat(newDir); err == nil {
		return &PathError{What: "new script directory", Path: newDir, Err: ErrExists}
	} else if !os.IsNotExist(err) {
		return &PathError{What: "new script directory", Path: newDir, Err: err}
	}

	if err := os.Rename(oldDir, newDir); err != nil {
		return &PathError{What: "script directory", Path: oldDir, Err: err}
	}
	return nil
}

// RenameSource renames the old source file inside the already renamed directory.
func (r *Relocator) RenameSource(oldID, newID uid.ID) error {
	dir := r.Layout.Dir(newID)
	oldFile := filepath.Join(dir, r.Layout.SourceName(oldID))
	newFile := filepath.Join(dir, r.Layout.SourceName(newID))

	st, err := os.Stat(oldFile)
	if err != nil {
		if os.IsNotExist(err) {
			return &PathError{What: "old script source file", Path: oldFile, Err: ErrNotFound}
		}
		return &PathError{What: "old script source file", Path: oldFile, Err: err}
	}
	if !st.Mode().IsRegular() {
		return &PathError{What: "old script source file", Path: oldFile, Err: ErrNotFound}
	}

	if _, err := os.Lstat(newFile); err == nil {
		return &PathError{What: "new script source file", Path: newFile, Err: ErrExists}
	}

	if err := os.Rename(oldFile, newFile); err != nil {
		return &PathError{What: "script source file", Path: oldFile, Err: err}
	}
	return nil
}

// ArtifactGuard is consulted around every artifact rewrite. Replacing oldID
// is not idempotent when newID contains oldID, so a rewrite that may already
// have happened must be recognised rather than repeated.
type ArtifactGuard interface {
	// Rewritten reports whether content is the recorded result of an earlier
	// rewrite of the artifact name.
	Rewritten(name string, content []byte) bool
	// Rewriting records that name is about to be rewritten to content. An
	// error aborts the rewrite.
	Rewriting(name string, content []byte) error
}

// PatchArtifacts rewrites identifier references in the generated artifacts of
// the renamed script. Missing artifacts are skipped, as are artifacts guard
// reports as already rewritten. guard may be nil. It returns the names of the
// artifacts whose content changed.
func (r *Relocator) PatchArtifacts(oldID, newID uid.ID, guard ArtifactGuard) ([]string, error) {
	dir := r.Layout.Dir(newID)

	var patched []string
	for _, name := range r.Layout.Artifacts {
		path := filepath.Join(dir, name)
		st, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return patched, &PathError{What: "artifact", Path: path, Err: err}
		}
		if !st.Mode().IsRegular() {
			continue
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return patched, &PathError{What: "artifact", Path: path, Err: err}
		}
		if guard != nil && guard.Rewritten(name, content) {
			continue
		}
		out, changed := ReplaceIdentifier(content, oldID.String(), newID.String(), r.Match)
		if !changed {
			continue
		}
		if guard != nil {
			if err := guard.Rewriting(name, out); err != nil {
				return patched, &PathError{What: "artifact", Path: path, Err: err}
			}
		}
		if err := atomicfile.WriteFile(path, out, st.Mode().Perm()); err != nil {
			return patched, &PathError{What: "artifact", Path: path, Err: err}
		}
		patched = append(patched, name)
	}
	return patched, nil
}
