// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package router picks the tier for each review item.
//
// Routing happens in two steps:
//
//  1. The estimator turns an item into a bounded complexity signal
//     (score in [0,1] plus a level: trivial, low, medium, high).
//  2. The policy maps that signal, the attempts made so far and the run
//     strategy to either the next tier to call or Done.
//
// # Key Types
//
//   - Estimator: pure, deterministic complexity scoring
//   - Policy: the tier decision function
//   - Strategy: auto, or pinned to one tier
//   - Thresholds: score boundaries between levels
//   - CostTable: unit cost per tier
//
// # Usage
//
//	est := router.NewEstimator(router.DefaultWeights())
//	sig := est.Estimate(item)
//	pol, _ := router.NewPolicy(router.Config{Thresholds: router.DefaultThresholds()})
//	d := pol.NextTier(sig, nil, router.StrategyAuto)
//	if !d.Done {
//	    // call d.Tier
//	}
//
// The policy never returns a tier already present in the attempt history,
// so an item pays for at most one call per tier.
package router
