// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/tierguard/internal/release"
	"github.com/jeranaias/tierguard/internal/util"
)

// =============================================================================
// RELEASE PREP
// =============================================================================

const (
	ReleaseJSONName     = "release-prep-report.json"
	ReleaseMarkdownName = "release-prep-report.md"
	ReleaseTitle        = "tierguard Release Prep"
)

// ReleaseSummary renders the step summary for a release prep run.
func ReleaseSummary(o *release.Outcome) string {
	changelog := "No"
	if o.Changelog != "" {
		changelog = "Yes"
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s\n\n", ReleaseTitle))
	sb.WriteString(fmt.Sprintf("**Security audit:** %s\n\n", o.SecurityStatus()))
	sb.WriteString(fmt.Sprintf("**Test coverage:** %s\n\n", o.CoverageText()))
	sb.WriteString(fmt.Sprintf("**Changelog generated:** %s\n\n", changelog))
	sb.WriteString(fmt.Sprintf("**Quality gates passed:** %d/%d\n\n", o.Passed, o.Total))
	sb.WriteString(fmt.Sprintf("**Cost tier used:** %s\n\n", tiersUsed(o.Report)))
	sb.WriteString(fmt.Sprintf("**Estimated savings:** %s\n\n", util.FormatPercent(o.Report.SavingsPct)))
	sb.WriteString("See full report in artifacts.\n")
	return sb.String()
}

// ReleaseMarkdown renders the full release prep report: the gates, the
// changelog and every gate review.
func ReleaseMarkdown(o *release.Outcome) ([]byte, error) {
	if o == nil || o.Report == nil {
		return nil, ErrNilReport
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", ReleaseTitle))
	since := o.Since
	if since == "" {
		since = "the first commit"
	}
	sb.WriteString(fmt.Sprintf("Changes since %s. %d/%d gates passed.\n\n", escapeMarkdown(since), o.Passed, o.Total))

	sb.WriteString("## Gates\n\n")
	sb.WriteString("| Gate | Status | Detail |\n")
	sb.WriteString("|------|--------|--------|\n")
	for _, g := range o.Gates {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n", g.Name, g.Status, escapeCell(g.Detail)))
	}
	sb.WriteString("\n")

	if o.Changelog != "" {
		sb.WriteString("## Changelog\n\n")
		sb.WriteString(o.Changelog)
		sb.WriteString("\n\n")
	}

	reviews, err := NewMarkdownExporter("Gate reviews").Export(o.Report)
	if err != nil {
		return nil, err
	}
	// Nest the review report one level under this document.
	sb.WriteString("#")
	sb.Write(reviews)
	return []byte(sb.String()), nil
}

// WriteReleaseArtifacts writes the release prep JSON and markdown reports
// and the step summary into dir.
func WriteReleaseArtifacts(o *release.Outcome, dir string) (*Artifacts, error) {
	if o == nil || o.Report == nil {
		return nil, ErrNilReport
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	raw, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return nil, err
	}
	md, err := ReleaseMarkdown(o)
	if err != nil {
		return nil, err
	}

	out := &Artifacts{
		Dir:      dir,
		JSON:     filepath.Join(dir, ReleaseJSONName),
		Markdown: filepath.Join(dir, ReleaseMarkdownName),
		Summary:  filepath.Join(dir, SummaryName),
	}
	files := []struct {
		path string
		data []byte
	}{
		{out.JSON, append(raw, '\n')},
		{out.Markdown, md},
		{out.Summary, []byte(ReleaseSummary(o))},
	}
	for _, f := range files {
		if err := util.AtomicWriteFile(f.path, f.data, 0644); err != nil {
			return nil, fmt.Errorf("write %s: %w", filepath.Base(f.path), err)
		}
	}
	return out, nil
}
