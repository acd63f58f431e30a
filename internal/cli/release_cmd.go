// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/tierguard/internal/config"
	"github.com/jeranaias/tierguard/internal/export"
	"github.com/jeranaias/tierguard/internal/release"
	"github.com/jeranaias/tierguard/internal/review"
	"github.com/jeranaias/tierguard/internal/util"
)

// =============================================================================
// RELEASE PREP COMMAND
// =============================================================================

// DefaultMinCoverage is the coverage gate threshold, in percent.
const DefaultMinCoverage = 80.0

var releaseBoolFlags = []string{"dry-run", "no-history", "fail-on-critical"}

// HandleReleasePrep handles the "release-prep" command and returns the exit
// code. Failed gates are reported, not fatal.
//
// Usage:
//
//	tierguard release-prep [--since REV] [--coverage FILE] [--min-coverage PCT]
//	                       [--strategy S] [--max-tier T] [--out DIR] [--dry-run]
func (a *App) HandleReleasePrep(ctx context.Context, args Args) int {
	p := NewArgParser(args.Raw, releaseBoolFlags...)

	cfg, err := a.loadConfig(args)
	if err == nil {
		err = applyRunFlags(cfg, p)
	}
	if err != nil {
		a.annotate(err.Error())
		a.displayError(CmdReleasePrep, args, err, nil)
		return GetExitCode(err)
	}

	data, err := a.runReleasePrep(ctx, p, cfg)
	if err != nil {
		if _, werr := export.WriteSummaryFile(cfg.Output.Dir, export.ErrorSummary("tierguard release-prep", err)); werr != nil {
			a.logger.Warn("could not write error summary", "error", werr)
		}
		a.annotate(err.Error())
		a.displayError(CmdReleasePrep, args, err, nil)
		return GetExitCode(err)
	}

	if args.JSON {
		_ = NewJSONResponse(CmdReleasePrep.String(), data, a.Now()).Print(a.Stdout)
	} else if !args.Quiet {
		a.printRelease(a.Stdout, cfg, data)
	}

	out := ActionOutputs{
		Report:      data.Artifacts.Dir,
		Summary:     data.Summary,
		IssuesFound: data.Outcome.FailedGates(),
		CostSaved:   util.FormatPercent(data.Outcome.Report.SavingsPct),
	}
	if werr := a.writeActionOutputs(out); werr != nil {
		a.logger.Warn("could not write step outputs", "error", werr)
	}
	return ExitSuccess
}

// runReleasePrep collects the changes, runs the gates and writes the
// artifacts.
func (a *App) runReleasePrep(ctx context.Context, p *ArgParser, cfg *config.Config) (*ReleaseData, error) {
	minCoverage, err := parseMinCoverage(p.Flag("min-coverage"))
	if err != nil {
		return nil, err
	}
	var coverage *release.Coverage
	if path := p.Flag("coverage"); path != "" {
		if coverage, err = release.LoadCoverage(path); err != nil {
			return nil, err
		}
	} else if p.HasFlag("coverage") {
		return nil, ErrMissingArgument("--coverage", "tierguard release-prep --coverage cover.out")
	}

	since := p.Flag("since")
	if since == "" {
		if since, err = release.LatestTag(ctx, a.Dir); err != nil {
			return nil, err
		}
	}
	diff, log, err := release.Changes(ctx, a.Dir, since)
	if errors.Is(err, review.ErrBadRevision) {
		return nil, ErrInvalidValue("--since", since, "revision must not start with '-'")
	}
	if err != nil {
		return nil, err
	}

	dryRun := p.BoolFlag("dry-run")
	coord, err := a.newCoordinator(cfg, dryRun)
	if err != nil {
		return nil, err
	}

	startedAt := a.Now()
	outcome, err := release.Prepare(ctx, coord, release.Input{
		Since:       since,
		Diff:        diff,
		Log:         log,
		Coverage:    coverage,
		MinCoverage: minCoverage / 100,
	})
	if err != nil {
		return nil, err
	}

	arts, err := export.WriteReleaseArtifacts(outcome, cfg.Output.Dir)
	if err != nil {
		return nil, err
	}
	return &ReleaseData{
		DryRun:     dryRun,
		DurationMs: a.Now().Sub(startedAt).Milliseconds(),
		Outcome:    outcome,
		Artifacts:  arts,
		Summary:    outcome.Headline(),
	}, nil
}

// parseMinCoverage reads a percentage such as "75" or "75%".
func parseMinCoverage(s string) (float64, error) {
	if s == "" {
		return DefaultMinCoverage, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
	if err != nil || f < 0 || f > 100 {
		return 0, ErrInvalidValue("--min-coverage", s, "must be a percentage between 0 and 100")
	}
	return f, nil
}

func (a *App) printRelease(w io.Writer, cfg *config.Config, data *ReleaseData) {
	st := a.styles(w, cfg.Output.Color)
	o := data.Outcome

	since := o.Since
	if since == "" {
		since = "first commit"
	}
	fmt.Fprintln(w, st.Title.Render(fmt.Sprintf("tierguard release prep (since %s)", since)))
	fmt.Fprintln(w, st.RenderSeparator(terminalWidth(w)))
	for _, g := range o.Gates {
		line := fmt.Sprintf("%s %s", st.RenderStatus(string(g.Status)), util.PadWidth(g.Name, 16))
		if g.Detail != "" {
			line += " " + st.Dim.Render(g.Detail)
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, st.RenderField("Gates", fmt.Sprintf("%d/%d passed", o.Passed, o.Total)))
	fmt.Fprintln(w, st.RenderField("Cost", fmt.Sprintf("%s of %s baseline (%s saved)",
		util.FormatCost(o.Report.ActualCost), util.FormatCost(o.Report.BaselineCost), util.FormatPercent(o.Report.SavingsPct))))
	if data.DryRun {
		fmt.Fprintln(w, st.Warning.Render("Dry run: no backend was called."))
	}
	fmt.Fprintln(w, st.RenderField("Elapsed", formatDurationShort(time.Duration(data.DurationMs)*time.Millisecond)))
	fmt.Fprintln(w, st.RenderField("Artifacts", data.Artifacts.Dir))
}
