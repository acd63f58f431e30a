// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
)

// =============================================================================
// TIER TYPE
// =============================================================================

// Tier is a cost/quality class of generation backend.
// Ordered by cost and capability: Cheap < Capable < Premium.
type Tier int

const (
	// TierCheap is the lowest-cost tier, used for trivial and low complexity items.
	TierCheap Tier = iota
	// TierCapable is the balanced tier.
	TierCapable
	// TierPremium is the most capable tier and the cost baseline.
	TierPremium
)

// AllTiers lists every tier in ascending order.
var AllTiers = []Tier{TierCheap, TierCapable, TierPremium}

// String returns the lower-case name of the tier.
func (t Tier) String() string {
	switch t {
	case TierCheap:
		return "cheap"
	case TierCapable:
		return "capable"
	case TierPremium:
		return "premium"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Valid reports whether t is one of the defined tiers.
func (t Tier) Valid() bool {
	return t >= TierCheap && t <= TierPremium
}

// Next returns the tier strictly above t.
// The second return value is false when t is already the highest tier.
func (t Tier) Next() (Tier, bool) {
	if !t.Valid() || t == TierPremium {
		return t, false
	}
	return t + 1, true
}

// ParseTier parses a tier name (case-insensitive).
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cheap":
		return TierCheap, nil
	case "capable":
		return TierCapable, nil
	case "premium":
		return TierPremium, nil
	default:
		return TierCheap, fmt.Errorf("unknown tier %q (valid: cheap, capable, premium)", s)
	}
}

// MarshalText encodes the tier as its name.
func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid tier %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText decodes a tier name.
func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// =============================================================================
// OUTCOME
// =============================================================================

// Outcome is the verdict of one attempt or the final state of a result.
type Outcome string

const (
	// OutcomeAccepted means the response was good enough at that tier.
	OutcomeAccepted Outcome = "accepted"
	// OutcomeEscalate means the response asked for a stronger tier.
	OutcomeEscalate Outcome = "escalate"
	// OutcomeFailed means the call did not produce a usable response.
	OutcomeFailed Outcome = "failed"
)

// Terminal reports whether the outcome ends an item's escalation chain.
func (o Outcome) Terminal() bool {
	return o == OutcomeAccepted || o == OutcomeFailed
}
