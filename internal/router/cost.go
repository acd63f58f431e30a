// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/jeranaias/tierguard/internal/model"
)

// ============================================================================
// COST TABLE
// ============================================================================

var (
	// ErrEmptyCostTable is returned when no tier has a cost.
	ErrEmptyCostTable = errors.New("cost table is empty")

	// ErrMissingTierCost is returned when a tier has no cost entry.
	ErrMissingTierCost = errors.New("cost table is missing a tier")

	// ErrUnorderedCosts is returned when a tier costs less than the tier below it
	// or premium is free.
	ErrUnorderedCosts = errors.New("tier costs must be non-decreasing with premium above zero")
)

// CostTable is the unit cost of one call at each tier.
type CostTable map[model.Tier]float64

// DefaultCostTable returns relative unit costs for the three tiers.
func DefaultCostTable() CostTable {
	return CostTable{
		model.TierCheap:   1,
		model.TierCapable: 5,
		model.TierPremium: 20,
	}
}

// Validate requires a finite, non-negative cost for every tier, costs that
// never decrease from cheap to premium, and a positive premium cost.
func (c CostTable) Validate() error {
	if len(c) == 0 {
		return ErrEmptyCostTable
	}
	prev := 0.0
	for i, t := range model.AllTiers {
		v, ok := c[t]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingTierCost, t)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("invalid cost for %s: %v", t, v)
		}
		if i > 0 && v < prev {
			return fmt.Errorf("%w: %s (%v) < %s (%v)", ErrUnorderedCosts, t, v, model.AllTiers[i-1], prev)
		}
		prev = v
	}
	if c[model.TierPremium] <= 0 {
		return fmt.Errorf("%w: premium is %v", ErrUnorderedCosts, c[model.TierPremium])
	}
	return nil
}

// Cost returns the unit cost of t.
func (c CostTable) Cost(t model.Tier) (float64, bool) {
	v, ok := c[t]
	return v, ok
}

// Baseline returns the cost of one premium call.
func (c CostTable) Baseline() float64 {
	return c[model.TierPremium]
}

// ============================================================================
// TOKEN ESTIMATION
// ============================================================================

// EstimateTokens approximates the token count of text.
// Blends a word estimate with the ~4 chars per token rule of thumb.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	chars := len(text)
	return (words + chars/4) / 2
}

// ============================================================================
// PROJECTION
// ============================================================================

// Projection is the best-case cost of a batch: every item accepted at its
// initial tier.
type Projection struct {
	Items    int                `json:"items"`
	Actual   float64            `json:"projected_cost"`
	Baseline float64            `json:"baseline_cost"`
	ByTier   map[model.Tier]int `json:"by_tier"`
	Tokens   int                `json:"estimated_tokens"`
}

// Project computes the best-case cost of routing items with the given signals.
func Project(p *Policy, costs CostTable, items []model.Item, signals []model.Signal, s Strategy) Projection {
	proj := Projection{ByTier: make(map[model.Tier]int)}
	for i, sig := range signals {
		d := p.NextTier(sig, nil, s)
		if d.Done {
			continue
		}
		proj.Items++
		proj.ByTier[d.Tier]++
		proj.Actual += costs[d.Tier]
		proj.Baseline += costs.Baseline()
		if i < len(items) {
			proj.Tokens += EstimateTokens(items[i].Content)
		}
	}
	return proj
}
