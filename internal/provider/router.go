// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jeranaias/tierguard/internal/model"
	"github.com/jeranaias/tierguard/internal/router"
)

var (
	// ErrMissingTarget is returned when a tier has no backend and model.
	ErrMissingTarget = errors.New("tier has no target")

	// ErrUnknownBackend is returned when a target names a backend that was not supplied.
	ErrUnknownBackend = errors.New("unknown backend")
)

// Target is where one tier's calls go.
type Target struct {
	Backend string `toml:"backend" json:"backend"`
	Model   string `toml:"model" json:"model"`
}

func (t Target) String() string {
	return t.Backend + "/" + t.Model
}

// =============================================================================
// TIER ROUTER
// =============================================================================

// TierRouter sends each tier to its configured backend and model.
// It implements escalation.Generator and is safe for concurrent use.
type TierRouter struct {
	targets  map[model.Tier]Target
	backends map[string]Backend
	logger   *slog.Logger
}

// NewTierRouter checks that every tier has a target on a supplied backend.
func NewTierRouter(targets map[model.Tier]Target, backends map[string]Backend, logger *slog.Logger) (*TierRouter, error) {
	var errs []error
	for _, t := range model.AllTiers {
		tgt, ok := targets[t]
		if !ok || tgt.Backend == "" || tgt.Model == "" {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingTarget, t))
			continue
		}
		if backends[tgt.Backend] == nil {
			errs = append(errs, fmt.Errorf("%w %q for tier %s", ErrUnknownBackend, tgt.Backend, t))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	copied := make(map[model.Tier]Target, len(targets))
	for k, v := range targets {
		copied[k] = v
	}
	return &TierRouter{
		targets:  copied,
		backends: backends,
		logger:   logger.With("component", "provider"),
	}, nil
}

// Target returns where tier's calls go.
func (r *TierRouter) Target(tier model.Tier) (Target, bool) {
	t, ok := r.targets[tier]
	return t, ok
}

// Generate implements escalation.Generator. Backend errors are wrapped with
// %w so their transient classification survives.
func (r *TierRouter) Generate(ctx context.Context, item model.Item, tier model.Tier) (model.Response, error) {
	tgt, ok := r.targets[tier]
	if !ok {
		return model.Response{}, fmt.Errorf("%w: %s", ErrMissingTarget, tier)
	}

	start := time.Now()
	c, err := r.backends[tgt.Backend].Complete(ctx, tgt.Model, SystemPrompt, BuildPrompt(item, tier))
	if err != nil {
		return model.Response{}, fmt.Errorf("%s: %w", tgt, err)
	}

	resp := ParseResponse(c.Content)
	resp.Model = c.Model
	if resp.Model == "" {
		resp.Model = tgt.Model
	}
	r.logger.Debug("completion",
		"item", item.ID,
		"tier", tier.String(),
		"target", tgt.String(),
		"tokens", c.Tokens,
		"duration", time.Since(start),
	)
	return resp, nil
}

// =============================================================================
// DRY RUN
// =============================================================================

// DryRun is an offline generator that accepts every item at whatever tier it
// is offered. With it a run reports exactly the projected AUTO cost.
type DryRun struct{}

// Generate implements escalation.Generator.
func (DryRun) Generate(ctx context.Context, item model.Item, tier model.Tier) (model.Response, error) {
	if err := ctx.Err(); err != nil {
		return model.Response{}, err
	}
	return model.Response{
		Content:    fmt.Sprintf("dry run: %s would be reviewed at %s (~%d tokens)", item.ID, tier, router.EstimateTokens(item.Content)),
		Confidence: model.ConfidenceUnknown,
		Model:      "dry-run",
	}, nil
}
