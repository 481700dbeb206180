package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ShouldUseColor reports whether ANSI colors should be written to
// stdout. Environment overrides win over TTY detection.
func ShouldUseColor() bool {
	if on, ok := colorOverride(); ok {
		return on
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// colorOverride checks the conventional color environment knobs, in
// precedence order: NO_COLOR (https://no-color.org, any non-empty
// value disables), then CLICOLOR_FORCE=1 (forces color without a
// TTY), then CLICOLOR=0 (disables).
func colorOverride() (on, ok bool) {
	if os.Getenv("NO_COLOR") != "" {
		return false, true
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) == "1" {
		return true, true
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR")) == "0" {
		return false, true
	}
	return false, false
}
