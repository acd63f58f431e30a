// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/tierguard/internal/config"
	"github.com/jeranaias/tierguard/internal/escalation"
	"github.com/jeranaias/tierguard/internal/export"
	"github.com/jeranaias/tierguard/internal/model"
	"github.com/jeranaias/tierguard/internal/provider"
	"github.com/jeranaias/tierguard/internal/review"
	"github.com/jeranaias/tierguard/internal/telemetry"
	"github.com/jeranaias/tierguard/internal/util"
)

// =============================================================================
// REVIEW COMMAND
// =============================================================================

// NoItemsMessage is printed when there is nothing to review.
const NoItemsMessage = "No changed files detected."

var reviewBoolFlags = []string{"html", "fail-on-critical", "dry-run", "no-history", "show-reviews"}

// HandleReview handles the "review" command and returns the exit code.
//
// Usage:
//
//	tierguard review [--items FILE | --diff FILE | --git REV] [--strategy S]
//	                 [--max-tier T] [--out DIR] [--fail-on-critical[=false]] [--dry-run]
func (a *App) HandleReview(ctx context.Context, args Args) int {
	p := NewArgParser(args.Raw, reviewBoolFlags...)

	cfg, err := a.loadConfig(args)
	if err == nil {
		err = applyRunFlags(cfg, p)
	}
	if err != nil {
		a.annotate(err.Error())
		a.displayError(CmdReview, args, err, nil)
		return GetExitCode(err)
	}

	data, err := a.runReview(ctx, p, cfg)

	var critical *CriticalFindingsError
	if err != nil && !errors.As(err, &critical) {
		if _, werr := export.WriteSummaryFile(cfg.Output.Dir, export.ErrorSummary("tierguard review", err)); werr != nil {
			a.logger.Warn("could not write error summary", "error", werr)
		}
		a.annotate(err.Error())
		a.displayError(CmdReview, args, err, data)
		return GetExitCode(err)
	}

	if args.JSON {
		resp := NewJSONResponse(CmdReview.String(), data, a.Now())
		if critical != nil {
			resp = NewJSONErrorResponse(CmdReview.String(), critical, data, a.Now())
		}
		_ = resp.Print(a.Stdout)
	} else if data.Report == nil {
		fmt.Fprintln(a.Stdout, NoItemsMessage)
	} else if !args.Quiet {
		a.printReview(a.Stdout, cfg, data, p.BoolFlag("show-reviews"))
	}

	if werr := a.writeActionOutputs(actionOutputs(data)); werr != nil {
		a.logger.Warn("could not write step outputs", "error", werr)
	}

	if critical != nil {
		a.annotate(critical.Error())
		if !args.JSON {
			a.displayError(CmdReview, args, critical, nil)
		}
		return ExitFailure
	}
	return ExitSuccess
}

// runReview loads the items, processes them and writes the artifacts.
// With nothing to review it writes the no-items summary and returns a
// ReviewData without a report.
func (a *App) runReview(ctx context.Context, p *ArgParser, cfg *config.Config) (*ReviewData, error) {
	items, err := a.loadItems(ctx, p)
	if err != nil && !errors.Is(err, review.ErrNoItems) {
		return nil, err
	}
	if len(items) == 0 {
		path, err := export.WriteSummaryFile(cfg.Output.Dir, export.NoItemsSummary(export.DefaultTitle))
		if err != nil {
			return nil, err
		}
		return &ReviewData{
			Summary:   NoItemsMessage,
			Artifacts: &export.Artifacts{Dir: cfg.Output.Dir, Summary: path},
		}, nil
	}

	dryRun := p.BoolFlag("dry-run")
	coord, err := a.newCoordinator(cfg, dryRun)
	if err != nil {
		return nil, err
	}

	startedAt := a.Now()
	rep, err := coord.Process(ctx, items)
	if err != nil {
		return nil, err
	}

	arts, err := export.WriteArtifacts(rep, export.Options{
		OutputDir: cfg.Output.Dir,
		HTML:      p.BoolFlag("html"),
	})
	if err != nil {
		return nil, err
	}

	data := &ReviewData{
		DryRun:     dryRun,
		DurationMs: a.Now().Sub(startedAt).Milliseconds(),
		Report:     rep,
		Artifacts:  arts,
		Summary:    export.Headline(rep),
	}

	if cfg.History.Enabled && !dryRun && !p.BoolFlag("no-history") {
		id, err := a.saveHistory(ctx, cfg, rep, startedAt)
		if err != nil {
			a.logger.Warn("could not save run history", "error", err)
		}
		data.RunID = id
	}

	if cfg.Output.FailOnCritical && rep.CriticalCount > 0 {
		return data, &CriticalFindingsError{Count: rep.CriticalCount}
	}
	return data, nil
}

// newCoordinator builds the run coordinator with the configured backends,
// classifier and instruments.
func (a *App) newCoordinator(cfg *config.Config, dryRun bool) (*review.Coordinator, error) {
	runCfg, err := cfg.RunConfig()
	if err != nil {
		return nil, err
	}
	classifier, err := cfg.Classifier()
	if err != nil {
		return nil, err
	}

	var gen escalation.Generator = provider.DryRun{}
	if !dryRun {
		gen, err = a.NewGenerator(cfg, a.logger)
		if err != nil {
			return nil, err
		}
	}

	instruments, err := a.instruments()
	if err != nil {
		return nil, err
	}

	return review.NewCoordinator(runCfg, gen,
		review.WithClassifier(classifier),
		review.WithInstruments(instruments),
		review.WithLogger(a.logger),
	)
}

// =============================================================================
// ITEMS
// =============================================================================

// loadItems reads work items from --items, --diff or git. Without either
// flag it reviews the diff against --git (default HEAD~1).
func (a *App) loadItems(ctx context.Context, p *ArgParser) ([]model.Item, error) {
	if path := p.Flag("items"); path != "" {
		return review.LoadManifest(path)
	}
	if p.HasFlag("items") {
		return nil, ErrMissingArgument("--items", "tierguard review --items items.yaml")
	}

	if path := p.Flag("diff"); path != "" {
		var r io.Reader = a.Stdin
		if path != "-" {
			f, err := os.Open(path)
			if err != nil {
				return nil, fmt.Errorf("failed to open diff: %w", err)
			}
			defer f.Close()
			r = f
		}
		return review.ItemsFromDiff(r)
	}
	if p.HasFlag("diff") {
		return nil, ErrMissingArgument("--diff", "tierguard review --diff changes.patch")
	}

	rev := p.FlagOrDefault("git", "HEAD~1")
	diff, err := review.GitDiff(ctx, a.Dir, rev)
	if errors.Is(err, review.ErrBadRevision) {
		return nil, ErrInvalidValue("--git", rev, "revision must not start with '-'")
	}
	if errors.Is(err, review.ErrNoItems) {
		a.logger.Info("nothing to compare", "reason", err)
	}
	if err != nil {
		return nil, err
	}
	return review.ItemsFromDiff(strings.NewReader(diff))
}

// =============================================================================
// FLAG OVERRIDES
// =============================================================================

// applyRunFlags applies command-line overrides over the loaded config and
// validates the result.
func applyRunFlags(cfg *config.Config, p *ArgParser) error {
	if s := p.Flag("strategy"); s != "" {
		cfg.Routing.Strategy = s
	}
	if t := p.Flag("max-tier"); t != "" {
		cfg.Routing.MaxTier = t
	}
	if s := p.Flag("policy"); s != "" {
		cfg.Escalation.Policy = s
	}
	if dir := p.Flag("out"); dir != "" {
		cfg.Output.Dir = dir
	}
	if s := p.Flag("concurrency"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return ErrInvalidValue("--concurrency", s, "must be a positive integer")
		}
		cfg.Run.Concurrency = n
	}
	if p.HasFlag("fail-on-critical") {
		cfg.Output.FailOnCritical = p.BoolFlag("fail-on-critical")
	}
	if p.BoolFlag("no-history") {
		cfg.History.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return validateOutputDir(cfg.Output.Dir)
}

// =============================================================================
// OUTPUT
// =============================================================================

func (a *App) printReview(w io.Writer, cfg *config.Config, data *ReviewData, showReviews bool) {
	enabled := colorsEnabled(cfg.Output.Color, w, a.Getenv)
	opts := export.TerminalOptions{
		Color:       enabled,
		Profile:     colorProfile(enabled, w),
		Width:       terminalWidth(w),
		ShowReviews: showReviews,
	}
	if err := export.Terminal(w, data.Report, opts); err != nil {
		a.logger.Warn("could not render summary", "error", err)
		return
	}

	st := a.styles(w, cfg.Output.Color)
	fmt.Fprintln(w)
	if data.DryRun {
		fmt.Fprintln(w, st.Warning.Render("Dry run: no backend was called."))
	}
	fmt.Fprintln(w, st.RenderField("Elapsed", formatDurationShort(time.Duration(data.DurationMs)*time.Millisecond)))
	if data.Artifacts != nil {
		fmt.Fprintln(w, st.RenderField("Artifacts", data.Artifacts.Dir))
	}
	if data.RunID != "" {
		fmt.Fprintln(w, st.RenderField("Run", data.RunID))
	}
}

func actionOutputs(data *ReviewData) ActionOutputs {
	out := ActionOutputs{CostSaved: "N/A"}
	out.Summary = data.Summary
	if data.Artifacts != nil {
		out.Report = data.Artifacts.Dir
	}
	if data.Report != nil {
		out.IssuesFound = data.Report.IssueCount
		out.CostSaved = util.FormatPercent(data.Report.SavingsPct)
	}
	return out
}

// =============================================================================
// HISTORY
// =============================================================================

// saveHistory stores the run and returns its id.
func (a *App) saveHistory(ctx context.Context, cfg *config.Config, rep *review.Report, startedAt time.Time) (string, error) {
	h, err := a.openHistory(cfg)
	if err != nil {
		return "", err
	}
	defer h.Close()

	raw, err := json.Marshal(rep)
	if err != nil {
		return "", err
	}
	rec := &telemetry.RunRecord{
		ID:         telemetry.NewRunID(),
		StartedAt:  startedAt,
		Strategy:   string(rep.Strategy),
		Items:      rep.TotalItems,
		Actual:     rep.ActualCost,
		Baseline:   rep.BaselineCost,
		SavingsPct: rep.SavingsPct,
		Critical:   rep.CriticalCount,
		Failed:     rep.FailedCount,
		Report:     raw,
	}
	if err := h.Save(ctx, rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// openHistory opens the configured history database.
func (a *App) openHistory(cfg *config.Config) (*telemetry.History, error) {
	path := cfg.History.Path
	if path == "" {
		var err error
		if path, err = telemetry.DefaultHistoryPath(); err != nil {
			return nil, err
		}
	}
	return telemetry.OpenHistory(path)
}
