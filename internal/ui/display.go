package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// DefaultTermWidth is used when stdout is not a terminal or its size is unknown.
const DefaultTermWidth = 120

// Terminal describes stdout.
type Terminal struct {
	Width int
	TTY   bool
}

// DetectTerminal inspects stdout.
func DetectTerminal() Terminal {
	fd := os.Stdout.Fd()
	t := Terminal{
		Width: DefaultTermWidth,
		TTY:   isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd),
	}
	if t.TTY {
		if w, _, err := term.GetSize(fd); err == nil && w > 0 {
			t.Width = w
		}
	}
	return t
}

// ApplyColorProfile turns styling off unless stdout is a terminal, so piped
// output carries no escape codes.
func (t Terminal) ApplyColorProfile() {
	if !t.TTY {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// Fit shortens s to at most width cells, ending a cut string with "…".
func Fit(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}
