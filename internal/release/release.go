// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package release

import (
	"context"
	"fmt"
	"strings"

	"github.com/jeranaias/tierguard/internal/model"
	"github.com/jeranaias/tierguard/internal/review"
)

// =============================================================================
// GATES
// =============================================================================

// Gate names. The review gates use them as item IDs.
const (
	GateSecurity  = "security-audit"
	GateQuality   = "code-quality"
	GateChangelog = "changelog"
	GateCoverage  = "test-coverage"
)

// Status is the result of one gate.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Gate is one quality gate's result. Skipped gates do not count toward the
// total.
type Gate struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// changelogTask heads the changelog item so the backend writes notes rather
// than a review.
const changelogTask = "Write release notes for these commits, grouped as Added, Changed and Fixed.\n\n"

// =============================================================================
// PREPARE
// =============================================================================

// Reviewer processes a batch of review items. *review.Coordinator is one.
type Reviewer interface {
	Process(ctx context.Context, items []model.Item) (*review.Report, error)
}

// Input is what a release is prepared from.
type Input struct {
	// Since is the revision the release is measured from. Empty means the
	// whole history.
	Since string

	Diff string
	Log  string

	// Coverage is nil when no profile was given.
	Coverage    *Coverage
	MinCoverage float64
}

// Outcome is the result of a release prep run.
type Outcome struct {
	Since       string         `json:"since,omitempty"`
	Gates       []Gate         `json:"gates"`
	Passed      int            `json:"gates_passed"`
	Total       int            `json:"gates_total"`
	Coverage    *Coverage      `json:"coverage,omitempty"`
	MinCoverage float64        `json:"min_coverage"`
	Changelog   string         `json:"changelog,omitempty"`
	Report      *review.Report `json:"report"`
}

// Prepare routes the review gates through r and evaluates every gate.
func Prepare(ctx context.Context, r Reviewer, in Input) (*Outcome, error) {
	rep, err := r.Process(ctx, gateItems(in))
	if err != nil {
		return nil, err
	}

	o := &Outcome{
		Since:       in.Since,
		Coverage:    in.Coverage,
		MinCoverage: in.MinCoverage,
		Report:      rep,
	}
	for _, name := range []string{GateSecurity, GateQuality, GateChangelog} {
		o.Gates = append(o.Gates, reviewGate(rep, name))
	}
	o.Gates = append(o.Gates, coverageGate(in.Coverage, in.MinCoverage))

	if it, ok := rep.Item(GateChangelog); ok && it.Outcome == model.OutcomeAccepted {
		o.Changelog = strings.TrimSpace(it.Review)
	}
	for _, g := range o.Gates {
		if g.Status == StatusSkipped {
			continue
		}
		o.Total++
		if g.Status == StatusPassed {
			o.Passed++
		}
	}
	return o, nil
}

func gateItems(in Input) []model.Item {
	var items []model.Item
	if strings.TrimSpace(in.Diff) != "" {
		diff := review.CapContent(in.Diff)
		items = append(items,
			model.Item{ID: GateSecurity, Hint: "security", Content: diff},
			model.Item{ID: GateQuality, Hint: "architecture", Content: diff},
		)
	}
	if strings.TrimSpace(in.Log) != "" {
		items = append(items, model.Item{ID: GateChangelog, Hint: "changelog", Content: review.CapContent(changelogTask + in.Log)})
	}
	return items
}

func reviewGate(rep *review.Report, name string) Gate {
	g := Gate{Name: name}
	it, ok := rep.Item(name)
	switch {
	case !ok:
		g.Status = StatusSkipped
		g.Detail = "no changes"
		if name == GateChangelog {
			g.Detail = "no commits"
		}
	case it.Outcome == model.OutcomeFailed:
		g.Status = StatusFailed
		g.Detail = it.Error
	case name == GateChangelog:
		g.Status = StatusPassed
		if strings.TrimSpace(it.Review) == "" {
			g.Status = StatusFailed
			g.Detail = "empty changelog"
		}
	case it.Critical > 0:
		g.Status = StatusFailed
		g.Detail = fmt.Sprintf("%d critical findings", it.Critical)
	default:
		g.Status = StatusPassed
		g.Detail = fmt.Sprintf("%d warnings, %d info", it.Warning, it.Info)
	}
	return g
}

func coverageGate(c *Coverage, minimum float64) Gate {
	g := Gate{Name: GateCoverage}
	if c == nil {
		g.Status = StatusSkipped
		g.Detail = "no coverage profile"
		return g
	}
	g.Detail = fmt.Sprintf("%s of statements, minimum %s", formatPct(c.Percent()), formatPct(minimum))
	g.Status = StatusFailed
	if c.Percent() >= minimum {
		g.Status = StatusPassed
	}
	return g
}

// =============================================================================
// OUTCOME ACCESSORS
// =============================================================================

// Gate returns the gate named name.
func (o *Outcome) Gate(name string) (Gate, bool) {
	for _, g := range o.Gates {
		if g.Name == name {
			return g, true
		}
	}
	return Gate{}, false
}

// FailedGates is the number of gates that ran and did not pass.
func (o *Outcome) FailedGates() int {
	return o.Total - o.Passed
}

// Headline is a one-line result, e.g. "Release prep complete: 3/4 gates passed".
func (o *Outcome) Headline() string {
	return fmt.Sprintf("Release prep complete: %d/%d gates passed", o.Passed, o.Total)
}

// SecurityStatus describes the security audit gate in a few words.
func (o *Outcome) SecurityStatus() string {
	g, ok := o.Gate(GateSecurity)
	if !ok {
		return string(StatusSkipped)
	}
	if g.Status == StatusPassed || g.Detail == "" {
		return string(g.Status)
	}
	return fmt.Sprintf("%s (%s)", g.Status, g.Detail)
}

// CoverageText describes measured coverage, or "not measured".
func (o *Outcome) CoverageText() string {
	if o.Coverage == nil {
		return "not measured"
	}
	return formatPct(o.Coverage.Percent())
}

func formatPct(f float64) string {
	return fmt.Sprintf("%.1f%%", f*100)
}
