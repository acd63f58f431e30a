// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package review

import (
	"github.com/jeranaias/tierguard/internal/model"
	"github.com/jeranaias/tierguard/internal/router"
	"github.com/jeranaias/tierguard/internal/telemetry"
)

// =============================================================================
// REPORT
// =============================================================================

// Report is the outcome of a run. It holds no wall-clock data, so identical
// input against a deterministic backend produces an identical Report.
type Report struct {
	TotalItems int             `json:"total_items"`
	Strategy   router.Strategy `json:"strategy"`
	Items      []ItemReport    `json:"items"`

	ActualCost   float64 `json:"actual_cost"`
	BaselineCost float64 `json:"baseline_cost"`
	Saved        float64 `json:"saved"`
	SavingsPct   float64 `json:"savings_pct"`

	Attempts       int `json:"attempts"`
	IssueCount     int `json:"issue_count"`
	CriticalCount  int `json:"critical_count"`
	WarningCount   int `json:"warning_count"`
	InfoCount      int `json:"info_count"`
	FailedCount    int `json:"failed_count"`
	ExhaustedCount int `json:"exhausted_count"`

	ByTier   map[model.Tier]telemetry.TierSpend `json:"by_tier"`
	Canceled bool                               `json:"canceled,omitempty"`
}

// ItemReport is one item's line in the report.
type ItemReport struct {
	ID        string          `json:"id"`
	Tier      *model.Tier     `json:"tier"`
	Outcome   model.Outcome   `json:"outcome"`
	Attempts  []model.Attempt `json:"attempts"`
	Critical  int             `json:"critical"`
	Warning   int             `json:"warning"`
	Info      int             `json:"info"`
	Exhausted bool            `json:"exhausted,omitempty"`
	Score     float64         `json:"score"`
	Level     model.Level     `json:"level"`
	Cost      float64         `json:"cost"`
	Error     string          `json:"error,omitempty"`
	Review    string          `json:"review,omitempty"`
}

func itemReport(r model.Result) ItemReport {
	return ItemReport{
		ID:        r.ItemID,
		Tier:      r.Tier,
		Outcome:   r.Outcome,
		Attempts:  r.Attempts,
		Critical:  r.Critical,
		Warning:   r.Warning,
		Info:      r.Info,
		Exhausted: r.Exhausted,
		Score:     r.Signal.Score,
		Level:     r.Signal.Level,
		Cost:      r.Cost(),
		Error:     r.Error,
		Review:    r.Content,
	}
}

// buildReport assembles the report from ordered results and the final ledger.
func buildReport(strategy router.Strategy, results []model.Result, snap telemetry.Snapshot) *Report {
	rep := &Report{
		TotalItems:   len(results),
		Strategy:     strategy,
		Items:        make([]ItemReport, len(results)),
		ActualCost:   snap.Actual,
		BaselineCost: snap.Baseline,
		Saved:        snap.Saved,
		SavingsPct:   snap.SavingsPct,
		Attempts:     snap.Attempts,
		ByTier:       snap.ByTier,
	}
	for i, r := range results {
		rep.Items[i] = itemReport(r)
		if r.Outcome == model.OutcomeFailed {
			rep.FailedCount++
		} else {
			rep.CriticalCount += r.Critical
			rep.WarningCount += r.Warning
			rep.InfoCount += r.Info
		}
		if r.Exhausted {
			rep.ExhaustedCount++
		}
	}
	rep.IssueCount = rep.CriticalCount + rep.WarningCount + rep.InfoCount
	return rep
}

// TiersUsed returns the distinct tiers that produced accepted results, ascending.
func (r *Report) TiersUsed() []model.Tier {
	seen := make(map[model.Tier]bool)
	for _, it := range r.Items {
		if it.Tier != nil {
			seen[*it.Tier] = true
		}
	}
	var out []model.Tier
	for _, t := range model.AllTiers {
		if seen[t] {
			out = append(out, t)
		}
	}
	return out
}

// Item returns the report line for id.
func (r *Report) Item(id string) (ItemReport, bool) {
	for _, it := range r.Items {
		if it.ID == id {
			return it, true
		}
	}
	return ItemReport{}, false
}
