// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/tierguard/internal/model"
	"github.com/jeranaias/tierguard/internal/review"
	"github.com/jeranaias/tierguard/internal/util"
)

// ErrNilReport is returned when an exporter is handed no report.
var ErrNilReport = errors.New("report is nil")

// Artifact file names written by WriteArtifacts.
const (
	ReportJSONName     = "review-report.json"
	ReportMarkdownName = "review-report.md"
	ReportHTMLName     = "review-report.html"
	SummaryName        = "summary.md"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter defines the interface for report exporters.
type Exporter interface {
	// Export converts a report to the target format and returns the content.
	Export(rep *review.Report) ([]byte, error)

	// FileExtension returns the appropriate file extension (e.g., ".md", ".html").
	FileExtension() string

	// MimeType returns the MIME type for the exported format.
	MimeType() string
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures artifact output.
type Options struct {
	// OutputDir is the directory where files will be saved.
	// Default: current working directory
	OutputDir string

	// Title heads the markdown and HTML reports.
	// Default: "tierguard Code Review"
	Title string

	// HTML also writes review-report.html.
	HTML bool
}

// DefaultTitle heads reports when Options.Title is empty.
const DefaultTitle = "tierguard Code Review"

func (o Options) title() string {
	if strings.TrimSpace(o.Title) == "" {
		return DefaultTitle
	}
	return o.Title
}

func (o Options) dir() string {
	if o.OutputDir == "" {
		return "."
	}
	return o.OutputDir
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// Artifacts lists the files written for one run.
type Artifacts struct {
	Dir      string `json:"dir"`
	JSON     string `json:"json"`
	Markdown string `json:"markdown"`
	HTML     string `json:"html,omitempty"`
	Summary  string `json:"summary"`
}

// WriteArtifacts writes the JSON report, the markdown report, the step
// summary and, when requested, the HTML report into opts.OutputDir.
func WriteArtifacts(rep *review.Report, opts Options) (*Artifacts, error) {
	if rep == nil {
		return nil, ErrNilReport
	}
	dir := opts.dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	type job struct {
		exporter Exporter
		name     string
		dst      *string
	}
	out := &Artifacts{Dir: dir}
	jobs := []job{
		{NewJSONExporter(), ReportJSONName, &out.JSON},
		{NewMarkdownExporter(opts.title()), ReportMarkdownName, &out.Markdown},
	}
	if opts.HTML {
		jobs = append(jobs, job{NewHTMLExporter(opts.title()), ReportHTMLName, &out.HTML})
	}

	for _, job := range jobs {
		path, err := ExportToFile(rep, job.exporter, dir, job.name)
		if err != nil {
			return nil, err
		}
		*job.dst = path
	}

	summaryPath := filepath.Join(dir, SummaryName)
	if err := util.AtomicWriteFile(summaryPath, []byte(Summary(rep, opts.title())), 0644); err != nil {
		return nil, fmt.Errorf("write summary: %w", err)
	}
	out.Summary = summaryPath
	return out, nil
}

// ExportToFile exports a report into dir/name using exporter.
// Returns the output file path or an error.
func ExportToFile(rep *review.Report, exporter Exporter, dir, name string) (string, error) {
	content, err := exporter.Export(rep)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}
	if name == "" {
		name = "review-report" + exporter.FileExtension()
	}
	outputPath := filepath.Join(dir, sanitizeFilename(name))
	if err := util.AtomicWriteFile(outputPath, content, 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return outputPath, nil
}

// WriteSummaryFile writes arbitrary step-summary markdown into dir.
// Used for the no-items and error cases where there is no report.
func WriteSummaryFile(dir, content string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(dir, SummaryName)
	if err := util.AtomicWriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}
	return path, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeFilename removes or replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	runes := []rune(s)
	if len(runes) > 100 {
		runes = runes[:100]
	}

	result := make([]rune, 0, len(runes))
	for _, r := range runes {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			result = append(result, '-')
		case r == ' ' || r == '\t':
			result = append(result, '_')
		case r < 32 || r == 127:
			result = append(result, '-')
		default:
			result = append(result, r)
		}
	}
	if len(result) == 0 {
		return "review-report"
	}
	return string(result)
}

// tierPath renders the tiers an item visited, e.g. "cheap > capable".
func tierPath(attempts []model.Attempt) string {
	if len(attempts) == 0 {
		return "-"
	}
	parts := make([]string, len(attempts))
	for i, a := range attempts {
		parts[i] = a.Tier.String()
	}
	return strings.Join(parts, " > ")
}

// tierName renders an optional tier.
func tierName(t *model.Tier) string {
	if t == nil {
		return "-"
	}
	return t.String()
}

// tiersUsed renders the distinct accepted tiers of a report.
func tiersUsed(rep *review.Report) string {
	tiers := rep.TiersUsed()
	if len(tiers) == 0 {
		return "none"
	}
	names := make([]string, len(tiers))
	for i, t := range tiers {
		names[i] = t.String()
	}
	return strings.Join(names, ", ")
}

// Headline is a one-line result, e.g. "3 issues found in 5 items".
func Headline(rep *review.Report) string {
	if rep == nil {
		return ""
	}
	h := fmt.Sprintf("%d issues found in %d items", rep.IssueCount, rep.TotalItems)
	if rep.FailedCount > 0 {
		h += fmt.Sprintf(" (%d failed)", rep.FailedCount)
	}
	if rep.Canceled {
		h += " (canceled)"
	}
	return h
}
