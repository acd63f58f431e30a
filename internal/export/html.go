// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"strings"

	"github.com/jeranaias/tierguard/internal/model"
	"github.com/jeranaias/tierguard/internal/review"
	"github.com/jeranaias/tierguard/internal/util"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports reports to a standalone HTML page with embedded CSS.
// Every report value is escaped; review content is shown preformatted.
type HTMLExporter struct {
	title string
}

// NewHTMLExporter creates a new HTML exporter. An empty title uses DefaultTitle.
func NewHTMLExporter(title string) *HTMLExporter {
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	return &HTMLExporter{title: title}
}

// Export converts a report to HTML format.
func (e *HTMLExporter) Export(rep *review.Report) ([]byte, error) {
	if rep == nil {
		return nil, ErrNilReport
	}

	var sb strings.Builder

	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html lang=\"en\">\n")
	sb.WriteString("<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	sb.WriteString(fmt.Sprintf("    <title>%s</title>\n", html.EscapeString(e.title)))
	sb.WriteString("    <meta name=\"generator\" content=\"tierguard\">\n")
	sb.WriteString(reportCSS)
	sb.WriteString("</head>\n")
	sb.WriteString("<body>\n")
	sb.WriteString("    <div class=\"container\">\n")

	sb.WriteString(e.renderHeader(rep))
	sb.WriteString(e.renderItems(rep))
	sb.WriteString(e.renderFindings(rep))

	sb.WriteString("    </div>\n")
	sb.WriteString("</body>\n")
	sb.WriteString("</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

// =============================================================================
// RENDERING FUNCTIONS
// =============================================================================

func (e *HTMLExporter) renderHeader(rep *review.Report) string {
	var sb strings.Builder
	sb.WriteString("        <header class=\"header\">\n")
	sb.WriteString(fmt.Sprintf("            <h1>%s</h1>\n", html.EscapeString(e.title)))
	sb.WriteString("            <div class=\"metadata\">\n")
	meta := []struct{ label, value string }{
		{"Strategy", string(rep.Strategy)},
		{"Items", fmt.Sprint(rep.TotalItems)},
		{"Issues", fmt.Sprint(rep.IssueCount)},
		{"Critical", fmt.Sprint(rep.CriticalCount)},
		{"Failed", fmt.Sprint(rep.FailedCount)},
		{"Cost", util.FormatCost(rep.ActualCost) + " / " + util.FormatCost(rep.BaselineCost)},
		{"Saved", util.FormatPercent(rep.SavingsPct)},
	}
	for _, m := range meta {
		sb.WriteString(fmt.Sprintf("                <span class=\"meta-item\"><strong>%s:</strong> %s</span>\n",
			m.label, html.EscapeString(m.value)))
	}
	if rep.Canceled {
		sb.WriteString("                <span class=\"meta-item canceled\">canceled</span>\n")
	}
	sb.WriteString("            </div>\n")
	sb.WriteString("        </header>\n")
	return sb.String()
}

func (e *HTMLExporter) renderItems(rep *review.Report) string {
	var sb strings.Builder
	sb.WriteString("        <table class=\"items\">\n")
	sb.WriteString("            <tr><th>Item</th><th>Level</th><th>Score</th><th>Tiers</th><th>Outcome</th><th>Critical</th><th>Cost</th></tr>\n")
	for _, it := range rep.Items {
		sb.WriteString(fmt.Sprintf("            <tr class=\"%s\"><td>%s</td><td>%s</td><td>%.2f</td><td>%s</td><td>%s</td><td>%d</td><td>%s</td></tr>\n",
			html.EscapeString(string(it.Outcome)),
			html.EscapeString(it.ID),
			it.Level,
			it.Score,
			html.EscapeString(tierPath(it.Attempts)),
			html.EscapeString(string(it.Outcome)),
			it.Critical,
			util.FormatCost(it.Cost)))
	}
	sb.WriteString("        </table>\n")
	return sb.String()
}

func (e *HTMLExporter) renderFindings(rep *review.Report) string {
	var sb strings.Builder
	sb.WriteString("        <main class=\"findings\">\n")
	for _, it := range rep.Items {
		sb.WriteString("            <section class=\"finding\">\n")
		sb.WriteString(fmt.Sprintf("                <h2>%s <span class=\"tier\">%s</span></h2>\n",
			html.EscapeString(it.ID), html.EscapeString(tierName(it.Tier))))
		if it.Outcome == model.OutcomeFailed {
			sb.WriteString(fmt.Sprintf("                <p class=\"error\">%s</p>\n", html.EscapeString(it.Error)))
		} else {
			sb.WriteString(fmt.Sprintf("                <pre>%s</pre>\n", html.EscapeString(strings.TrimSpace(it.Review))))
		}
		sb.WriteString("            </section>\n")
	}
	sb.WriteString("        </main>\n")
	return sb.String()
}

const reportCSS = `    <style>
        body { background: #1e1e2e; color: #cdd6f4; font-family: -apple-system, "Segoe UI", sans-serif; margin: 0; }
        .container { max-width: 1100px; margin: 0 auto; padding: 24px; }
        .header h1 { margin: 0 0 8px 0; }
        .metadata { display: flex; flex-wrap: wrap; gap: 16px; color: #a6adc8; }
        .canceled { color: #f9e2af; }
        table.items { width: 100%; border-collapse: collapse; margin: 24px 0; }
        table.items th, table.items td { border-bottom: 1px solid #45475a; padding: 6px 8px; text-align: left; }
        tr.failed td { color: #f38ba8; }
        .finding { border-left: 3px solid #89b4fa; padding-left: 12px; margin-bottom: 24px; }
        .tier { font-size: 0.7em; color: #a6e3a1; }
        .error { color: #f38ba8; }
        pre { white-space: pre-wrap; background: #181825; padding: 12px; border-radius: 6px; }
    </style>
`
