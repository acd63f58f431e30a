// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/tierguard/internal/config"
	"github.com/jeranaias/tierguard/internal/escalation"
	"github.com/jeranaias/tierguard/internal/model"
	"github.com/jeranaias/tierguard/internal/provider"
	"github.com/jeranaias/tierguard/internal/review"
	"github.com/jeranaias/tierguard/internal/telemetry"
	"github.com/jeranaias/tierguard/internal/util"
)

// =============================================================================
// ESTIMATE COMMAND
// =============================================================================

// HandleEstimate handles the "estimate" command: it scores each item and
// projects the best-case cost without calling any backend.
func (a *App) HandleEstimate(ctx context.Context, args Args) error {
	p := NewArgParser(args.Raw)

	cfg, err := a.loadConfig(args)
	if err != nil {
		return err
	}
	if err := applyRunFlags(cfg, p); err != nil {
		return err
	}

	items, err := a.loadItems(ctx, p)
	if err != nil && !errors.Is(err, review.ErrNoItems) {
		return err
	}

	runCfg, err := cfg.RunConfig()
	if err != nil {
		return err
	}
	var gen escalation.Generator = provider.DryRun{}
	coord, err := review.NewCoordinator(runCfg, gen, review.WithLogger(a.logger))
	if err != nil {
		return err
	}

	data := EstimateData{Strategy: runCfg.Strategy, Items: make([]EstimateItem, 0, len(items))}
	for i, sig := range coord.Estimate(items) {
		d := coord.FirstTier(sig)
		data.Items = append(data.Items, EstimateItem{
			ID:      items[i].ID,
			Score:   sig.Score,
			Level:   sig.Level,
			Tier:    d.Tier,
			Factors: sig.Factors,
		})
	}
	data.Projection = coord.Project(items)
	data.SavingsPct = telemetry.SavingsPct(data.Projection.Actual, data.Projection.Baseline)

	if args.JSON {
		return NewJSONResponse(CmdEstimate.String(), data, a.Now()).Print(a.Stdout)
	}
	if len(items) == 0 {
		fmt.Fprintln(a.Stdout, NoItemsMessage)
		return nil
	}
	a.printEstimate(a.Stdout, cfg, data)
	return nil
}

func (a *App) printEstimate(w io.Writer, cfg *config.Config, data EstimateData) {
	st := a.styles(w, cfg.Output.Color)
	width := terminalWidth(w)
	idWidth := max(width-36, 12)

	fmt.Fprintln(w, st.Title.Render(fmt.Sprintf("tierguard estimate (%s)", data.Strategy)))
	fmt.Fprintln(w, st.RenderSeparator(width))
	fmt.Fprintf(w, "%s %-8s %-6s %s\n", util.PadWidth("ITEM", idWidth), "LEVEL", "SCORE", "TIER")
	for _, it := range data.Items {
		fmt.Fprintf(w, "%s %-8s %-6.2f %s\n", util.PadWidth(it.ID, idWidth), it.Level, it.Score, it.Tier)
	}
	fmt.Fprintln(w, st.RenderSeparator(width))

	proj := data.Projection
	var tiers []string
	for _, t := range model.AllTiers {
		if n := proj.ByTier[t]; n > 0 {
			tiers = append(tiers, fmt.Sprintf("%s=%d", t, n))
		}
	}
	fmt.Fprintln(w, st.RenderField("Projected", fmt.Sprintf("%s of %s baseline (%s saved)",
		util.FormatCost(proj.Actual), util.FormatCost(proj.Baseline), util.FormatPercent(data.SavingsPct))))
	fmt.Fprintln(w, st.RenderField("Tiers", strings.Join(tiers, " ")))
	fmt.Fprintln(w, st.RenderField("Tokens", fmt.Sprintf("~%d", proj.Tokens)))
}
