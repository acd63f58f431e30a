// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jeranaias/tierguard/internal/model"
	"github.com/jeranaias/tierguard/internal/router"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrDuplicateCharge is returned when the same (item, seq) is charged twice.
	ErrDuplicateCharge = errors.New("duplicate charge")

	// ErrUnknownTier is returned when a tier has no entry in the cost table.
	ErrUnknownTier = errors.New("no cost for tier")
)

// =============================================================================
// LEDGER
// =============================================================================

type chargeKey struct {
	item string
	seq  int
}

// TierSpend is the spend attributed to one tier.
type TierSpend struct {
	Calls  int     `json:"calls"`
	Failed int     `json:"failed"`
	Cost   float64 `json:"cost"`
}

// Ledger accumulates actual and baseline spend for a run.
// All methods are safe for concurrent use.
type Ledger struct {
	mu       sync.Mutex
	costs    router.CostTable
	actual   float64
	baseline float64
	attempts int
	charged  map[chargeKey]struct{}
	items    map[string]struct{}
	byTier   map[model.Tier]*TierSpend
}

// NewLedger creates an empty ledger priced by costs.
func NewLedger(costs router.CostTable) (*Ledger, error) {
	if err := costs.Validate(); err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	table := make(router.CostTable, len(costs))
	for t, c := range costs {
		table[t] = c
	}
	return &Ledger{
		costs:   table,
		charged: make(map[chargeKey]struct{}),
		items:   make(map[string]struct{}),
		byTier:  make(map[model.Tier]*TierSpend),
	}, nil
}

// Charge records one attempt and returns its cost.
//
// The tier's unit cost is added to actual spend whatever the outcome; failed
// attempts are also counted per tier. The
// premium cost is added to the baseline only on the item's first charge.
// A repeated (itemID, seq) is rejected with ErrDuplicateCharge and changes
// nothing.
func (l *Ledger) Charge(itemID string, seq int, tier model.Tier, outcome model.Outcome) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cost, ok := l.costs.Cost(tier)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTier, tier)
	}
	key := chargeKey{item: itemID, seq: seq}
	if _, dup := l.charged[key]; dup {
		return 0, fmt.Errorf("%w: item %q seq %d", ErrDuplicateCharge, itemID, seq)
	}
	l.charged[key] = struct{}{}

	if _, seen := l.items[itemID]; !seen {
		l.items[itemID] = struct{}{}
		l.baseline += l.costs.Baseline()
	}

	l.actual += cost
	l.attempts++
	spend, ok := l.byTier[tier]
	if !ok {
		spend = &TierSpend{}
		l.byTier[tier] = spend
	}
	spend.Calls++
	spend.Cost += cost
	if outcome == model.OutcomeFailed {
		spend.Failed++
	}

	return cost, nil
}

// Snapshot is a point-in-time view of the ledger.
type Snapshot struct {
	Actual     float64                  `json:"actual_cost"`
	Baseline   float64                  `json:"baseline_cost"`
	Saved      float64                  `json:"saved"`
	SavingsPct float64                  `json:"savings_pct"`
	Items      int                      `json:"items_charged"`
	Attempts   int                      `json:"attempts"`
	ByTier     map[model.Tier]TierSpend `json:"by_tier"`
}

// Snapshot returns the current totals.
// SavingsPct is (baseline-actual)/baseline, or 0 when nothing was charged.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Snapshot{
		Actual:   l.actual,
		Baseline: l.baseline,
		Saved:    l.baseline - l.actual,
		Items:    len(l.items),
		Attempts: l.attempts,
		ByTier:   make(map[model.Tier]TierSpend, len(l.byTier)),
	}
	s.SavingsPct = SavingsPct(l.actual, l.baseline)
	for t, spend := range l.byTier {
		s.ByTier[t] = *spend
	}
	return s
}

// SavingsPct returns (baseline-actual)/baseline, or 0 for a zero baseline.
func SavingsPct(actual, baseline float64) float64 {
	if baseline == 0 {
		return 0
	}
	return (baseline - actual) / baseline
}
