// Package scriptfs owns the on-disk layout of scripts and the filesystem half
// of a script rename.
//
// A scripts root holds one directory per identifier:
//
//	<root>/<uid>/<uid><ext>   primary source file
//	<root>/<uid>/execute.sh   generated launcher (optional)
//	<root>/<uid>/install.sh   generated installer (optional)
//
// The generated artifacts embed the identifier literally, so they must be kept
// textually consistent with the directory name.
package scriptfs

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/aidanlsb/chronos/internal/uid"
)

// Default layout values.
const (
	DefaultSourceExt = ".py"
	LauncherFile     = "execute.sh"
	InstallerFile    = "install.sh"
)

// DefaultArtifacts lists the generated files patched during a rename.
var DefaultArtifacts = []string{LauncherFile, InstallerFile}

// Layout resolves script paths under a scripts root.
type Layout struct {
	Root      string
	SourceExt string
	Artifacts []string
}

// NewLayout returns a layout rooted at root with default extension and artifacts.
func NewLayout(root string) Layout {
	return Layout{
		Root:      root,
		SourceExt: DefaultSourceExt,
		Artifacts: append([]string(nil), DefaultArtifacts...),
	}
}

// ext returns the source extension with a leading dot.
func (l Layout) ext() string {
	ext := strings.TrimSpace(l.SourceExt)
	if ext == "" {
		return DefaultSourceExt
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Dir returns the script directory for id.
func (l Layout) Dir(id uid.ID) string {
	return filepath.Join(l.Root, id.String())
}

// SourceName returns the source file name for id, without a directory.
func (l Layout) SourceName(id uid.ID) string {
	return id.String() + l.ext()
}

// SourceFile returns the source file path for id inside its own directory.
func (l Layout) SourceFile(id uid.ID) string {
	return filepath.Join(l.Dir(id), l.SourceName(id))
}

// ArtifactPaths returns the candidate artifact paths for id. Artifacts may or
// may not exist on disk.
func (l Layout) ArtifactPaths(id uid.ID) []string {
	out := make([]string, 0, len(l.Artifacts))
	for _, name := range l.Artifacts {
		out = append(out, filepath.Join(l.Dir(id), name))
	}
	return out
}

// Exists reports whether a script directory exists for id.
func (l Layout) Exists(id uid.ID) bool {
	st, err := os.Stat(l.Dir(id))
	return err == nil && st.IsDir()
}
