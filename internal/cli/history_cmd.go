// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jeranaias/tierguard/internal/export"
	"github.com/jeranaias/tierguard/internal/review"
	"github.com/jeranaias/tierguard/internal/util"
)

// =============================================================================
// HISTORY COMMAND
// =============================================================================

// HandleHistory handles the "history" command.
//
// Usage:
//
//	tierguard history [list] [--limit N]
//	tierguard history show ID
//	tierguard history trends [--days N]
func (a *App) HandleHistory(ctx context.Context, args Args) error {
	p := NewArgParser(args.Raw)

	cfg, err := a.loadConfig(args)
	if err != nil {
		return err
	}
	h, err := a.openHistory(cfg)
	if err != nil {
		return NewCommandError("history", "open", err)
	}
	defer h.Close()

	st := a.styles(a.Stdout, cfg.Output.Color)

	switch sub := p.Subcommand(); sub {
	case "", "list":
		limit, err := intFlag(p, "limit", 20)
		if err != nil {
			return err
		}
		runs, err := h.List(ctx, limit)
		if err != nil {
			return NewCommandError("history", "list", err)
		}
		if args.JSON {
			return NewJSONResponse("history list", HistoryListData{Runs: runs}, a.Now()).Print(a.Stdout)
		}
		if len(runs) == 0 {
			fmt.Fprintln(a.Stdout, "No runs recorded.")
			return nil
		}
		fmt.Fprintf(a.Stdout, "%-36s  %-16s  %-8s %5s %9s %8s %4s\n",
			"ID", "STARTED", "STRATEGY", "ITEMS", "COST", "SAVED", "CRIT")
		for _, r := range runs {
			fmt.Fprintf(a.Stdout, "%-36s  %-16s  %-8s %5d %9.2f %7.1f%% %4d\n",
				r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Strategy,
				r.Items, r.Actual, r.SavingsPct*100, r.Critical)
		}
		return nil

	case "show":
		id := p.Positional(1)
		if id == "" {
			return ErrMissingArgument("id", "tierguard history show <id>")
		}
		rec, err := h.Get(ctx, id)
		if IsNotFound(err) {
			return ErrInvalidValue("id", id, "no run with this id")
		}
		if err != nil {
			return err
		}
		if args.JSON {
			return NewJSONResponse("history show", rec, a.Now()).Print(a.Stdout)
		}
		var rep review.Report
		if err := json.Unmarshal(rec.Report, &rep); err != nil {
			return NewCommandError("history", "show", fmt.Errorf("stored report is corrupt: %w", err))
		}
		fmt.Fprintln(a.Stdout, st.RenderField("Run", rec.ID))
		fmt.Fprintln(a.Stdout, st.RenderField("Started", rec.StartedAt.Local().Format("2006-01-02 15:04:05")))
		fmt.Fprintln(a.Stdout)
		enabled := colorsEnabled(cfg.Output.Color, a.Stdout, a.Getenv)
		return export.Terminal(a.Stdout, &rep, export.TerminalOptions{
			Color:   enabled,
			Profile: colorProfile(enabled, a.Stdout),
			Width:   terminalWidth(a.Stdout),
		})

	case "trends":
		days, err := intFlag(p, "days", 7)
		if err != nil {
			return err
		}
		trends, err := h.Trends(ctx, days, a.Now())
		if err != nil {
			return NewCommandError("history", "trends", err)
		}
		if args.JSON {
			return NewJSONResponse("history trends", trends, a.Now()).Print(a.Stdout)
		}
		fmt.Fprintln(a.Stdout, st.Title.Render(fmt.Sprintf("Cost trends (last %d days)", trends.Days)))
		fmt.Fprintln(a.Stdout, st.RenderSeparator(41))
		for _, d := range trends.DailyBreakdown {
			fmt.Fprintf(a.Stdout, "%s  runs %3d  items %4d  cost %8.2f  saved %8.2f\n",
				d.Date, d.Runs, d.Items, d.Cost, d.Saved)
		}
		fmt.Fprintln(a.Stdout, st.RenderSeparator(41))
		fmt.Fprintln(a.Stdout, st.RenderField("Runs", strconv.Itoa(trends.Runs)))
		fmt.Fprintln(a.Stdout, st.RenderField("Total cost", util.FormatCost(trends.TotalCost)+" of "+util.FormatCost(trends.TotalBaseline)+" baseline"))
		fmt.Fprintln(a.Stdout, st.RenderField("Saved", fmt.Sprintf("%s (%s)", util.FormatCost(trends.TotalSaved), util.FormatPercent(trends.SavingsPct))))
		return nil

	default:
		return ErrInvalidValue("history subcommand", sub, "expected list, show or trends")
	}
}

// intFlag reads a positive integer flag, or def when absent.
func intFlag(p *ArgParser, name string, def int) (int, error) {
	if !p.HasFlag(name) {
		return def, nil
	}
	n, err := p.FlagInt(name)
	if err != nil || n < 1 {
		return 0, ErrInvalidValue("--"+name, p.Flag(name), "must be a positive integer")
	}
	return n, nil
}
