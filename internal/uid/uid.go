// Package uid derives the stable script identifier from a human-readable name.
//
// The identifier is the primary key shared by the scripts directory, the
// execution environment and the metadata store, so the derivation must never
// change meaning for an existing name. Any change to the algorithm needs a new
// Version and a migration of every stored identifier.
package uid

import (
	"strings"

	goslug "github.com/gosimple/slug"
	"golang.org/x/text/unicode/norm"
)

// Version is the identifier derivation algorithm version.
const Version = 1

// ID is a script identifier.
type ID string

// String returns the identifier as a plain string.
func (id ID) String() string {
	return string(id)
}

// Valid reports whether id can be used as a directory, environment and row key.
func (id ID) Valid() bool {
	s := string(id)
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, "/\\\x00")
}

// For derives the identifier for name.
//
// Names are NFKC-normalized first so that visually identical names typed with
// different code point sequences map to the same identifier. The slug uses
// underscores instead of dashes so the identifier doubles as a Python module
// name for the script's source file.
//
// Examples:
//   - "Backup Database" -> "backup_database"
//   - "Résumé Parser"   -> "resume_parser"
//   - "nightly-sync"    -> "nightly_sync"
func For(name string) ID {
	name = norm.NFKC.String(strings.TrimSpace(name))
	slugged := goslug.Make(name)
	slugged = strings.ReplaceAll(slugged, "-", "_")
	return ID(strings.Trim(slugged, "_"))
}
