package scriptfs

import (
	"bytes"
	"fmt"
	"strings"
)

// MatchMode selects how identifier occurrences are found in artifacts.
type MatchMode string

const (
	// MatchLiteral replaces every literal occurrence, including substrings of
	// longer tokens.
	MatchLiteral MatchMode = "literal"
	// MatchDelimited only replaces occurrences that are not adjacent to
	// identifier characters.
	MatchDelimited MatchMode = "delimited"
)

// ParseMatchMode parses a configured match mode. Empty means literal.
func ParseMatchMode(s string) (MatchMode, error) {
	switch MatchMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", MatchLiteral:
		return MatchLiteral, nil
	case MatchDelimited:
		return MatchDelimited, nil
	default:
		return "", fmt.Errorf("unknown artifact match mode %q (want %q or %q)", s, MatchLiteral, MatchDelimited)
	}
}

// ReplaceIdentifier replaces occurrences of oldID with newID in a single
// left-to-right pass, so text produced by a replacement is never matched
// again. It reports whether anything changed.
func ReplaceIdentifier(content []byte, oldID, newID string, mode MatchMode) ([]byte, bool) {
	if oldID == "" || oldID == newID {
		return content, false
	}
	if mode != MatchDelimited {
		out := bytes.ReplaceAll(content, []byte(oldID), []byte(newID))
		return out, !bytes.Equal(out, content)
	}

	old := []byte(oldID)
	var buf bytes.Buffer
	buf.Grow(len(content))
	changed := false
	i := 0
	for {
		j := bytes.Index(content[i:], old)
		if j < 0 {
			buf.Write(content[i:])
			break
		}
		start := i + j
		end := start + len(old)
		buf.Write(content[i:start])
		if delimitedAt(content, start, end) {
			buf.WriteString(newID)
			changed = true
		} else {
			buf.Write(old)
		}
		i = end
	}
	if !changed {
		return content, false
	}
	return buf.Bytes(), true
}

func delimitedAt(content []byte, start, end int) bool {
	if start > 0 && isIdentByte(content[start-1]) {
		return false
	}
	if end < len(content) && isIdentByte(content[end]) {
		return false
	}
	return true
}

func isIdentByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}
