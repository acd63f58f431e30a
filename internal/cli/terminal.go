// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"io"
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// =============================================================================
// TTY DETECTION
// =============================================================================

// isTerminal reports whether w is a terminal file.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// =============================================================================
// TERMINAL WIDTH DETECTION
// =============================================================================

const (
	// DefaultTerminalWidth is the fallback width when detection fails
	DefaultTerminalWidth = 80

	// MinTerminalWidth is the minimum width we'll use for tables
	MinTerminalWidth = 60

	// MaxTerminalWidth keeps tables readable on very wide terminals
	MaxTerminalWidth = 140
)

// terminalWidth returns the width of w when it is a terminal, clamped to
// [MinTerminalWidth, MaxTerminalWidth], or DefaultTerminalWidth.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return DefaultTerminalWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return DefaultTerminalWidth
	}
	if width < MinTerminalWidth {
		return MinTerminalWidth
	}
	if width > MaxTerminalWidth {
		return MaxTerminalWidth
	}
	return width
}

// =============================================================================
// COLOR OUTPUT CONTROL
// =============================================================================

// colorsEnabled decides whether output to w is styled.
//
// mode is the output.color setting: "always", "never" or "auto". Under auto,
// NO_COLOR (any non-empty value) disables colors, FORCE_COLOR enables them,
// and otherwise w must be a terminal. See https://no-color.org/.
func colorsEnabled(mode string, w io.Writer, getenv func(string) string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if getenv("NO_COLOR") != "" {
		return false
	}
	if getenv("FORCE_COLOR") != "" {
		return true
	}
	return isTerminal(w)
}

// colorProfile returns the termenv profile for w.
// Returns Ascii (no colors) when colors are disabled.
func colorProfile(enabled bool, w io.Writer) termenv.Profile {
	if !enabled {
		return termenv.Ascii
	}
	p := termenv.NewOutput(w).EnvColorProfile()
	if p == termenv.Ascii {
		// Forced on a non-terminal.
		return termenv.ANSI256
	}
	return p
}
