package ui

import "fmt"

// Status symbols. Outcomes are marked with symbols, not colors.
const (
	SymbolSuccess = "✓"
	SymbolError   = "✗"
	SymbolWarning = "⚠"
	SymbolArrow   = "→"
	SymbolPending = "·"
)

// Success marks msg as a completed outcome.
func Success(msg string) string {
	return SymbolSuccess + " " + msg
}

// Successf is Success with formatting.
func Successf(format string, args ...interface{}) string {
	return Success(fmt.Sprintf(format, args...))
}

// Error marks msg as a failure.
func Error(msg string) string {
	return SymbolError + " " + msg
}

// Warning marks msg as a warning.
func Warning(msg string) string {
	return SymbolWarning + " " + msg
}

// Header renders a section header.
func Header(msg string) string {
	return Bold.Render(msg)
}

// ID renders a script identifier.
func ID(id string) string {
	return Accent.Render(id)
}

// FilePath renders a file path.
func FilePath(path string) string {
	return Accent.Render(path)
}

// Transition renders "old → new" with both identifiers highlighted.
func Transition(from, to string) string {
	return ID(from) + " " + SymbolArrow + " " + ID(to)
}

// Step renders one step of a multi-step operation as done or pending.
func Step(name string, done bool) string {
	if done {
		return SymbolSuccess + " " + name
	}
	return Muted.Render(SymbolPending + " " + name)
}

// Progress renders "done/total".
func Progress(done, total int) string {
	return fmt.Sprintf("%d/%d", done, total)
}

// Hint renders secondary text.
func Hint(msg string) string {
	return Muted.Render(msg)
}

// Count returns a count badge, e.g. "(3 intents)".
func Count(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("(%d %s)", n, singular)
	}
	return fmt.Sprintf("(%d %s)", n, plural)
}
