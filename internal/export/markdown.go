// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"

	"github.com/jeranaias/tierguard/internal/model"
	"github.com/jeranaias/tierguard/internal/review"
	"github.com/jeranaias/tierguard/internal/util"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports reports to Markdown format.
type MarkdownExporter struct {
	title string
}

// NewMarkdownExporter creates a new Markdown exporter. An empty title uses
// DefaultTitle.
func NewMarkdownExporter(title string) *MarkdownExporter {
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	return &MarkdownExporter{title: title}
}

// Export converts a report to Markdown format.
func (e *MarkdownExporter) Export(rep *review.Report) ([]byte, error) {
	if rep == nil {
		return nil, ErrNilReport
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s\n\n", escapeMarkdown(e.title)))

	sb.WriteString(fmt.Sprintf("- **Strategy**: %s\n", rep.Strategy))
	sb.WriteString(fmt.Sprintf("- **Items reviewed**: %d\n", rep.TotalItems))
	sb.WriteString(fmt.Sprintf("- **Backend attempts**: %d\n", rep.Attempts))
	sb.WriteString(fmt.Sprintf("- **Issues found**: %d (%d critical, %d warning, %d info)\n",
		rep.IssueCount, rep.CriticalCount, rep.WarningCount, rep.InfoCount))
	sb.WriteString(fmt.Sprintf("- **Failed items**: %d\n", rep.FailedCount))
	if rep.ExhaustedCount > 0 {
		sb.WriteString(fmt.Sprintf("- **Accepted at the tier cap**: %d\n", rep.ExhaustedCount))
	}
	if rep.Canceled {
		sb.WriteString("- **Status**: canceled before completion\n")
	}
	sb.WriteString("\n")

	e.writeCost(&sb, rep)
	if len(rep.Items) > 0 {
		e.writeItems(&sb, rep)
		e.writeFindings(&sb, rep)
	}

	return []byte(sb.String()), nil
}

func (e *MarkdownExporter) writeCost(sb *strings.Builder, rep *review.Report) {
	sb.WriteString("## Cost\n\n")
	sb.WriteString("| Tier | Calls | Failed | Cost |\n")
	sb.WriteString("|------|------:|-------:|-----:|\n")
	for _, t := range model.AllTiers {
		spend, ok := rep.ByTier[t]
		if !ok {
			continue
		}
		sb.WriteString(fmt.Sprintf("| %s | %d | %d | %s |\n",
			t, spend.Calls, spend.Failed, util.FormatCost(spend.Cost)))
	}
	sb.WriteString(fmt.Sprintf("| **Total** | %d | | **%s** |\n\n", rep.Attempts, util.FormatCost(rep.ActualCost)))

	sb.WriteString(fmt.Sprintf("Baseline (every item at premium): %s. Saved: %s (%s).\n\n",
		util.FormatCost(rep.BaselineCost), util.FormatCost(rep.Saved), util.FormatPercent(rep.SavingsPct)))
}

func (e *MarkdownExporter) writeItems(sb *strings.Builder, rep *review.Report) {
	sb.WriteString("## Items\n\n")
	sb.WriteString("| Item | Level | Score | Tiers | Outcome | Critical | Warning | Info | Cost |\n")
	sb.WriteString("|------|-------|------:|-------|---------|---------:|--------:|-----:|-----:|\n")
	for _, it := range rep.Items {
		outcome := string(it.Outcome)
		if it.Exhausted {
			outcome += " (cap)"
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %.2f | %s | %s | %d | %d | %d | %s |\n",
			escapeCell(it.ID), it.Level, it.Score, tierPath(it.Attempts), outcome,
			it.Critical, it.Warning, it.Info, util.FormatCost(it.Cost)))
	}
	sb.WriteString("\n")
}

func (e *MarkdownExporter) writeFindings(sb *strings.Builder, rep *review.Report) {
	sb.WriteString("## Findings\n\n")
	for i, it := range rep.Items {
		sb.WriteString(fmt.Sprintf("### %s (%s)\n\n", escapeMarkdown(it.ID), tierName(it.Tier)))

		switch {
		case it.Outcome == model.OutcomeFailed:
			sb.WriteString(fmt.Sprintf("**Failed**: %s\n", strings.TrimSpace(it.Error)))
		case strings.TrimSpace(it.Review) == "":
			sb.WriteString("_No review content returned._\n")
		default:
			sb.WriteString(strings.TrimSpace(it.Review))
			sb.WriteString("\n")
		}

		for _, a := range it.Attempts {
			if a.Outcome == model.OutcomeEscalate && a.Reason != "" {
				sb.WriteString(fmt.Sprintf("\n<sub>Escalated from %s: %s</sub>\n", a.Tier, escapeMarkdown(a.Reason)))
			}
		}

		if i < len(rep.Items)-1 {
			sb.WriteString("\n---\n\n")
		}
	}
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// STEP SUMMARY
// =============================================================================

// Summary renders the short markdown written to summary.md for CI step
// summaries. An empty title uses DefaultTitle.
func Summary(rep *review.Report, title string) string {
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s\n\n", title))
	sb.WriteString(fmt.Sprintf("**Items reviewed:** %d\n\n", rep.TotalItems))
	sb.WriteString(fmt.Sprintf("**Issues found:** %d\n\n", rep.IssueCount))
	sb.WriteString(fmt.Sprintf("**Critical:** %d | **Warning:** %d | **Info:** %d\n\n",
		rep.CriticalCount, rep.WarningCount, rep.InfoCount))
	sb.WriteString(fmt.Sprintf("**Failed:** %d | **Exhausted:** %d\n\n", rep.FailedCount, rep.ExhaustedCount))
	sb.WriteString(fmt.Sprintf("**Cost tier used:** %s\n\n", tiersUsed(rep)))
	sb.WriteString(fmt.Sprintf("**Estimated savings:** %s (%s of %s)\n\n",
		util.FormatPercent(rep.SavingsPct), util.FormatCost(rep.Saved), util.FormatCost(rep.BaselineCost)))
	if rep.Canceled {
		sb.WriteString("**Run canceled before completion.**\n\n")
	}
	sb.WriteString("See full report in artifacts.\n")
	return sb.String()
}

// NoItemsSummary is the step summary for a run with nothing to review.
func NoItemsSummary(title string) string {
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	return fmt.Sprintf("## %s\n\nNo changed files detected.\n", title)
}

// ErrorSummary is the step summary written when a command fails.
func ErrorSummary(command string, err error) string {
	return fmt.Sprintf("## tierguard - Error\n\nCommand `%s` failed:\n\n```\n%v\n```\n", command, err)
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes special Markdown characters in plain text.
func escapeMarkdown(s string) string {
	// Only escape characters that would break formatting in titles/headings
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}

// escapeCell makes s safe inside a table cell.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
