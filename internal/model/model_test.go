// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"testing"
)

func TestTierOrdering(t *testing.T) {
	if !(TierCheap < TierCapable && TierCapable < TierPremium) {
		t.Fatal("tiers must be ordered cheap < capable < premium")
	}
	for i, tier := range AllTiers {
		if int(tier) != i {
			t.Errorf("AllTiers[%d] = %v, want order %d", i, tier, i)
		}
	}
}

func TestTierNext(t *testing.T) {
	tests := []struct {
		tier Tier
		want Tier
		ok   bool
	}{
		{TierCheap, TierCapable, true},
		{TierCapable, TierPremium, true},
		{TierPremium, TierPremium, false},
		{Tier(42), Tier(42), false},
	}
	for _, tt := range tests {
		got, ok := tt.tier.Next()
		if got != tt.want || ok != tt.ok {
			t.Errorf("%v.Next() = (%v, %v), want (%v, %v)", tt.tier, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseTier(t *testing.T) {
	for _, tier := range AllTiers {
		got, err := ParseTier(" " + tier.String() + " ")
		if err != nil || got != tier {
			t.Errorf("ParseTier(%q) = (%v, %v)", tier.String(), got, err)
		}
	}
	if _, err := ParseTier("PREMIUM"); err != nil {
		t.Errorf("ParseTier should be case-insensitive: %v", err)
	}
	if _, err := ParseTier("gold"); err == nil {
		t.Error("ParseTier(gold) should fail")
	}
}

func TestTierJSON(t *testing.T) {
	data, err := json.Marshal(map[string]Tier{"t": TierCapable})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"t":"capable"}` {
		t.Errorf("got %s", data)
	}

	var out map[string]Tier
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out["t"] != TierCapable {
		t.Errorf("round trip got %v", out["t"])
	}
}

func TestLevelText(t *testing.T) {
	var sig Signal
	if err := json.Unmarshal([]byte(`{"score":0.9,"level":"high"}`), &sig); err != nil {
		t.Fatal(err)
	}
	if sig.Level != LevelHigh {
		t.Errorf("level = %v, want high", sig.Level)
	}
	if err := json.Unmarshal([]byte(`{"level":"extreme"}`), &sig); err == nil {
		t.Error("unknown level should fail")
	}
}

func TestValidateItems(t *testing.T) {
	if err := ValidateItems([]Item{{ID: "a"}, {ID: "b"}}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateItems([]Item{{ID: "a"}, {ID: "a"}}); err == nil {
		t.Error("duplicate ids should fail")
	}
	if err := ValidateItems([]Item{{ID: "  "}}); err == nil {
		t.Error("blank id should fail")
	}
	if err := ValidateItems(nil); err != nil {
		t.Errorf("empty batch is valid: %v", err)
	}
}

func TestResultCostAndPath(t *testing.T) {
	r := Result{Attempts: []Attempt{
		{Seq: 1, Tier: TierCheap, Cost: 1, Outcome: OutcomeEscalate},
		{Seq: 2, Tier: TierPremium, Cost: 20, Outcome: OutcomeAccepted},
	}}
	if r.Cost() != 21 {
		t.Errorf("Cost() = %v, want 21", r.Cost())
	}
	path := r.TierPath()
	if len(path) != 2 || path[0] != TierCheap || path[1] != TierPremium {
		t.Errorf("TierPath() = %v", path)
	}
}

func TestOutcomeTerminal(t *testing.T) {
	if OutcomeEscalate.Terminal() {
		t.Error("escalate is not terminal")
	}
	if !OutcomeAccepted.Terminal() || !OutcomeFailed.Terminal() {
		t.Error("accepted and failed are terminal")
	}
}
