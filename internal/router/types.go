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
// ERRORS
// ============================================================================

var (
	// ErrUnknownStrategy is returned when a strategy name is not recognized.
	ErrUnknownStrategy = errors.New("unknown tier strategy")

	// ErrBadThresholds is returned when level thresholds are out of order or range.
	ErrBadThresholds = errors.New("invalid complexity thresholds")

	// ErrBadWeights is returned when an estimator weight is negative or not finite.
	ErrBadWeights = errors.New("invalid estimator weights")
)

// ============================================================================
// STRATEGY
// ============================================================================

// Strategy controls how tiers are chosen for a run.
// StrategyAuto defers to the policy; the others pin every item to one tier.
type Strategy string

const (
	StrategyAuto    Strategy = "auto"
	StrategyCheap   Strategy = "cheap"
	StrategyCapable Strategy = "capable"
	StrategyPremium Strategy = "premium"
)

// ParseStrategy parses a strategy name (case-insensitive).
func ParseStrategy(s string) (Strategy, error) {
	st := Strategy(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q (valid: auto, cheap, capable, premium)", ErrUnknownStrategy, s)
	}
	return st, nil
}

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyAuto, StrategyCheap, StrategyCapable, StrategyPremium:
		return true
	}
	return false
}

// Pinned returns the fixed tier for a pinned strategy.
// The second value is false for StrategyAuto.
func (s Strategy) Pinned() (model.Tier, bool) {
	switch s {
	case StrategyCheap:
		return model.TierCheap, true
	case StrategyCapable:
		return model.TierCapable, true
	case StrategyPremium:
		return model.TierPremium, true
	}
	return model.TierCheap, false
}

func (s Strategy) String() string { return string(s) }

// ============================================================================
// THRESHOLDS
// ============================================================================

// Thresholds are the score boundaries between complexity levels.
//
//	score <  Low     -> trivial
//	score <  Medium  -> low
//	score <  High    -> medium
//	otherwise        -> high
type Thresholds struct {
	Low    float64 `json:"low" toml:"low"`
	Medium float64 `json:"medium" toml:"medium"`
	High   float64 `json:"high" toml:"high"`
}

// DefaultThresholds returns the stock level boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{Low: 0.2, Medium: 0.5, High: 0.8}
}

// Validate checks 0 <= low <= medium <= high <= 1.
func (t Thresholds) Validate() error {
	for _, v := range []float64{t.Low, t.Medium, t.High} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("%w: values must be within [0,1], got %+v", ErrBadThresholds, t)
		}
	}
	if t.Low > t.Medium || t.Medium > t.High {
		return fmt.Errorf("%w: need low <= medium <= high, got %+v", ErrBadThresholds, t)
	}
	return nil
}

// Level maps a score to its complexity level.
func (t Thresholds) Level(score float64) model.Level {
	switch {
	case score < t.Low:
		return model.LevelTrivial
	case score < t.Medium:
		return model.LevelLow
	case score < t.High:
		return model.LevelMedium
	default:
		return model.LevelHigh
	}
}

// ============================================================================
// CONFIG
// ============================================================================

// Config configures the policy.
type Config struct {
	Thresholds Thresholds

	// MaxTier caps both the initial tier and escalation. Nil means no cap.
	MaxTier *model.Tier
}

// Validate checks the thresholds and the tier cap.
func (c Config) Validate() error {
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	if c.MaxTier != nil && !c.MaxTier.Valid() {
		return fmt.Errorf("invalid max tier %d", int(*c.MaxTier))
	}
	return nil
}

// ValidateStrategy checks that s is known and reachable under the tier cap.
func (c Config) ValidateStrategy(s Strategy) error {
	if !s.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, string(s))
	}
	if pinned, ok := s.Pinned(); ok && c.MaxTier != nil && pinned > *c.MaxTier {
		return fmt.Errorf("strategy %s exceeds max tier %s", s, *c.MaxTier)
	}
	return nil
}
