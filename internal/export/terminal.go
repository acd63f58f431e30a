// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/tierguard/internal/model"
	"github.com/jeranaias/tierguard/internal/review"
	"github.com/jeranaias/tierguard/internal/util"
)

// =============================================================================
// TERMINAL SUMMARY
// =============================================================================

// TerminalOptions controls console rendering.
type TerminalOptions struct {
	// Color enables ANSI styling. Callers decide from TTY detection and NO_COLOR.
	Color bool

	// Profile overrides the color profile when Color is set. Zero value
	// (TrueColor) is downgraded to ANSI256.
	Profile termenv.Profile

	// Width of the item table. Default 80.
	Width int

	// ShowReviews renders each item's review content with glamour.
	ShowReviews bool
}

type terminalStyles struct {
	title, label, dim, ok, warn, fail lipgloss.Style
}

func newTerminalStyles(r *lipgloss.Renderer) terminalStyles {
	return terminalStyles{
		title: r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		label: r.NewStyle().Foreground(lipgloss.Color("245")),
		dim:   r.NewStyle().Foreground(lipgloss.Color("242")),
		ok:    r.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		warn:  r.NewStyle().Foreground(lipgloss.Color("214")),
		fail:  r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
}

// Terminal writes a styled run summary to w: one row per item, then totals.
func Terminal(w io.Writer, rep *review.Report, opts TerminalOptions) error {
	if rep == nil {
		return ErrNilReport
	}
	width := opts.Width
	if width <= 0 {
		width = 80
	}

	r := lipgloss.NewRenderer(w)
	if opts.Color {
		p := opts.Profile
		if p == termenv.TrueColor {
			p = termenv.ANSI256
		}
		r.SetColorProfile(p)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	st := newTerminalStyles(r)

	var sb strings.Builder
	sb.WriteString(st.title.Render(fmt.Sprintf("tierguard review (%s)", rep.Strategy)))
	sb.WriteString("\n\n")

	// Fixed columns; the ID column takes what is left.
	const levelW, tiersW, outcomeW, costW = 8, 26, 10, 8
	idW := width - levelW - tiersW - outcomeW - costW - 4
	if idW < 12 {
		idW = 12
	}
	header := strings.Join([]string{
		util.PadWidth("ITEM", idW),
		util.PadWidth("LEVEL", levelW),
		util.PadWidth("TIERS", tiersW),
		util.PadWidth("OUTCOME", outcomeW),
		util.PadWidth("COST", costW),
	}, " ")
	sb.WriteString(st.label.Render(strings.TrimRight(header, " ")))
	sb.WriteString("\n")

	for _, it := range rep.Items {
		outcome := util.PadWidth(string(it.Outcome), outcomeW)
		switch {
		case it.Outcome == model.OutcomeFailed:
			outcome = st.fail.Render(outcome)
		case it.Exhausted || it.Critical > 0:
			outcome = st.warn.Render(outcome)
		default:
			outcome = st.ok.Render(outcome)
		}
		sb.WriteString(strings.Join([]string{
			util.PadWidth(it.ID, idW),
			util.PadWidth(it.Level.String(), levelW),
			util.PadWidth(tierPath(it.Attempts), tiersW),
			outcome,
			util.FormatCost(it.Cost),
		}, " "))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("%s %s of %s baseline, saved %s (%s)\n",
		st.label.Render("Cost:"),
		util.FormatCost(rep.ActualCost),
		util.FormatCost(rep.BaselineCost),
		util.FormatCost(rep.Saved),
		st.ok.Render(util.FormatPercent(rep.SavingsPct))))

	critical := fmt.Sprint(rep.CriticalCount)
	if rep.CriticalCount > 0 {
		critical = st.fail.Render(critical)
	}
	failed := fmt.Sprint(rep.FailedCount)
	if rep.FailedCount > 0 {
		failed = st.fail.Render(failed)
	}
	sb.WriteString(fmt.Sprintf("%s %d  %s %s  %s %d  %s %d\n",
		st.label.Render("Issues:"), rep.IssueCount,
		st.label.Render("Critical:"), critical,
		st.label.Render("Warning:"), rep.WarningCount,
		st.label.Render("Info:"), rep.InfoCount))
	sb.WriteString(fmt.Sprintf("%s %s  %s %d  %s %s\n",
		st.label.Render("Failed:"), failed,
		st.label.Render("Attempts:"), rep.Attempts,
		st.label.Render("Tiers used:"), tiersUsed(rep)))
	if rep.Canceled {
		sb.WriteString(st.warn.Render("Run canceled before completion."))
		sb.WriteString("\n")
	}

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return err
	}

	if !opts.ShowReviews {
		return nil
	}
	for _, it := range rep.Items {
		if strings.TrimSpace(it.Review) == "" {
			continue
		}
		md := fmt.Sprintf("## %s (%s)\n\n%s\n", it.ID, tierName(it.Tier), it.Review)
		out, err := RenderMarkdown(md, width, opts.Color)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(w, out); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// RenderMarkdown renders markdown for the terminal with glamour, wrapped at
// width. Without color the "notty" style is used, which emits no escapes.
func RenderMarkdown(md string, width int, color bool) (string, error) {
	if width <= 0 {
		width = 80
	}
	style := "notty"
	if color {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return out, nil
}
