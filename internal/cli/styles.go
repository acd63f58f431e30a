// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Shared styling for tierguard commands.
//
// Styles are built per output stream from a lipgloss renderer, so colors
// follow the stream's TTY state and the output.color setting.

package cli

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Styles is the set of styles used by command output.
type Styles struct {
	Title   lipgloss.Style // command titles, cyan
	Section lipgloss.Style // section headers, bold white
	Label   lipgloss.Style // field labels, light gray, 22 wide
	Value   lipgloss.Style // regular values
	Success lipgloss.Style // OK statuses, green
	Error   lipgloss.Style // failures, red
	Warning lipgloss.Style // cautions, orange
	Dim     lipgloss.Style // secondary information
}

// newStyles builds styles that render for w with the given color profile.
func newStyles(w io.Writer, profile termenv.Profile) Styles {
	r := lipgloss.NewRenderer(w)
	r.SetColorProfile(profile)
	return Styles{
		Title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		Section: r.NewStyle().Bold(true).Foreground(lipgloss.Color("255")).MarginTop(1),
		Label:   r.NewStyle().Foreground(lipgloss.Color("245")).Width(22),
		Value:   r.NewStyle().Foreground(lipgloss.Color("252")),
		Success: r.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		Error:   r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		Warning: r.NewStyle().Foreground(lipgloss.Color("214")),
		Dim:     r.NewStyle().Foreground(lipgloss.Color("242")),
	}
}

// RenderSeparator renders a horizontal separator line of the given width.
func (s Styles) RenderSeparator(width int) string {
	if width <= 0 {
		width = 70
	}
	return s.Dim.Render(strings.Repeat("=", width))
}

// RenderStatus renders a status indicator with appropriate color.
func (s Styles) RenderStatus(status string) string {
	switch strings.ToLower(status) {
	case "ok", "success", "pass", "passed":
		return s.Success.Render("[OK]")
	case "error", "fail", "failed":
		return s.Error.Render("[FAIL]")
	case "warning", "warn":
		return s.Warning.Render("[WARN]")
	default:
		return s.Dim.Render("[" + strings.ToUpper(status) + "]")
	}
}

// RenderField renders "label value" with the label padded.
func (s Styles) RenderField(label, value string) string {
	return s.Label.Render(label) + s.Value.Render(value)
}
