// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"fmt"
	"log/slog"

	"github.com/jeranaias/tierguard/internal/model"
)

// ============================================================================
// DECISION
// ============================================================================

// Decision is the policy's answer: call Tier next, or stop.
type Decision struct {
	Tier   model.Tier `json:"tier"`
	Done   bool       `json:"done"`
	Reason string     `json:"reason"`
}

// String formats the decision for logs.
func (d Decision) String() string {
	if d.Done {
		return "done: " + d.Reason
	}
	return fmt.Sprintf("%s: %s", d.Tier, d.Reason)
}

func call(t model.Tier, format string, args ...any) Decision {
	return Decision{Tier: t, Reason: fmt.Sprintf(format, args...)}
}

func done(format string, args ...any) Decision {
	return Decision{Done: true, Reason: fmt.Sprintf(format, args...)}
}

// ============================================================================
// POLICY
// ============================================================================

// Policy is the pure tier decision function. It holds only configuration
// and is safe for concurrent use.
type Policy struct {
	cfg    Config
	logger *slog.Logger
}

// PolicyOption configures a Policy.
type PolicyOption func(*Policy)

// WithLogger sets the logger used for routing audit lines.
func WithLogger(l *slog.Logger) PolicyOption {
	return func(p *Policy) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPolicy validates cfg and returns a policy.
func NewPolicy(cfg Config, opts ...PolicyOption) (*Policy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Policy{cfg: cfg, logger: slog.Default().With("component", "router")}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Thresholds returns the configured level boundaries.
func (p *Policy) Thresholds() Thresholds {
	return p.cfg.Thresholds
}

// InitialTier maps a complexity level to the first tier tried under auto.
// Trivial and low go to cheap, medium to capable, high to premium.
func (p *Policy) InitialTier(level model.Level) model.Tier {
	var t model.Tier
	switch level {
	case model.LevelTrivial, model.LevelLow:
		t = model.TierCheap
	case model.LevelMedium:
		t = model.TierCapable
	default:
		t = model.TierPremium
	}
	return p.capped(t)
}

func (p *Policy) capped(t model.Tier) model.Tier {
	if p.cfg.MaxTier != nil && t > *p.cfg.MaxTier {
		return *p.cfg.MaxTier
	}
	return t
}

// NextTier decides what to call next for an item.
//
// Pinned strategies call their tier once and are then done. Under auto the
// first tier comes from the signal's level; after that, only an escalate
// verdict moves to the tier strictly above the last one. Accepted, failed,
// the top tier or the configured cap all end the chain. A tier that already
// appears in attempts is never returned.
func (p *Policy) NextTier(sig model.Signal, attempts []model.Attempt, s Strategy) Decision {
	d := p.decide(sig, attempts, s)
	p.logger.Debug("ROUTING",
		"strategy", string(s),
		"score", sig.Score,
		"level", sig.Level.String(),
		"attempts", len(attempts),
		"decision", d.String(),
	)
	return d
}

func (p *Policy) decide(sig model.Signal, attempts []model.Attempt, s Strategy) Decision {
	if !wellFormed(attempts) {
		return done("attempt history is not strictly increasing")
	}

	if pinned, ok := s.Pinned(); ok {
		if len(attempts) == 0 {
			return call(pinned, "strategy pinned to %s", pinned)
		}
		return done("pinned strategy allows a single attempt")
	}
	if s != StrategyAuto {
		return done("unknown strategy %q", string(s))
	}

	if len(attempts) == 0 {
		t := p.InitialTier(sig.Level)
		return call(t, "%s complexity (score %.2f) routes to %s", sig.Level, sig.Score, t)
	}

	last := attempts[len(attempts)-1]
	switch last.Outcome {
	case model.OutcomeAccepted:
		return done("accepted at %s", last.Tier)
	case model.OutcomeFailed:
		return done("attempt at %s failed", last.Tier)
	case model.OutcomeEscalate:
	default:
		return done("unrecognized outcome %q", string(last.Outcome))
	}

	next, ok := last.Tier.Next()
	if !ok {
		return done("%s is the highest tier", last.Tier)
	}
	if p.cfg.MaxTier != nil && next > *p.cfg.MaxTier {
		return done("%s is capped at %s", next, *p.cfg.MaxTier)
	}
	for _, a := range attempts {
		if a.Tier == next {
			return done("%s already attempted", next)
		}
	}
	return call(next, "escalating from %s", last.Tier)
}

// wellFormed reports whether attempt tiers are valid and strictly increasing.
func wellFormed(attempts []model.Attempt) bool {
	for i, a := range attempts {
		if !a.Tier.Valid() {
			return false
		}
		if i > 0 && a.Tier <= attempts[i-1].Tier {
			return false
		}
	}
	return true
}
