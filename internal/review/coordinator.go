// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package review

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/jeranaias/tierguard/internal/escalation"
	"github.com/jeranaias/tierguard/internal/model"
	"github.com/jeranaias/tierguard/internal/router"
	"github.com/jeranaias/tierguard/internal/telemetry"
)

// =============================================================================
// COORDINATOR
// =============================================================================

// Coordinator runs batches of items. A Coordinator may run several batches;
// each Process call gets its own ledger.
type Coordinator struct {
	cfg        Config
	generator  escalation.Generator
	classifier escalation.Classifier
	instr      *telemetry.Instruments
	logger     *slog.Logger

	estimator *router.Estimator
	policy    *router.Policy
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClassifier sets the response classifier used by every controller.
func WithClassifier(cl escalation.Classifier) Option {
	return func(c *Coordinator) { c.classifier = cl }
}

// WithInstruments sets tracing and metrics hooks.
func WithInstruments(in *telemetry.Instruments) Option {
	return func(c *Coordinator) { c.instr = in }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCoordinator validates cfg and returns a coordinator.
// Configuration problems are returned as *ConfigError before any work starts.
func NewCoordinator(cfg Config, gen escalation.Generator, opts ...Option) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if gen == nil {
		return nil, fmt.Errorf("review: generator is required")
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	c := &Coordinator{
		cfg:       cfg,
		generator: gen,
		logger:    slog.Default().With("component", "review"),
	}
	for _, opt := range opts {
		opt(c)
	}

	pol, err := router.NewPolicy(cfg.Router, router.WithLogger(c.logger))
	if err != nil {
		return nil, err
	}
	c.policy = pol
	c.estimator = router.NewEstimator(cfg.Weights).WithThresholds(cfg.Router.Thresholds)
	return c, nil
}

// Config returns the validated configuration.
func (c *Coordinator) Config() Config {
	return c.cfg
}

// Estimate returns each item's complexity signal without calling the backend.
func (c *Coordinator) Estimate(items []model.Item) []model.Signal {
	out := make([]model.Signal, len(items))
	for i, it := range items {
		out[i] = c.estimator.Estimate(it)
	}
	return out
}

// FirstTier returns the tier an item with sig is sent to first under the
// configured strategy.
func (c *Coordinator) FirstTier(sig model.Signal) router.Decision {
	return c.policy.NextTier(sig, nil, c.cfg.Strategy)
}

// Project returns the best-case cost of items under the configured strategy.
func (c *Coordinator) Project(items []model.Item) router.Projection {
	return router.Project(c.policy, c.cfg.Costs, items, c.Estimate(items), c.cfg.Strategy)
}

// Process runs every item and returns the report.
//
// Invalid items (empty or duplicate IDs) are rejected before any call is
// made. Per-item failures, panics included, are recorded in the report and
// never returned as an error. When ctx is canceled, items not yet started
// are reported as failed and the report is marked canceled.
func (c *Coordinator) Process(ctx context.Context, items []model.Item) (*Report, error) {
	if err := model.ValidateItems(items); err != nil {
		return nil, fmt.Errorf("invalid items: %w", err)
	}

	ledger, err := telemetry.NewLedger(c.cfg.Costs)
	if err != nil {
		return nil, err
	}
	opts := []escalation.Option{
		escalation.WithOptions(c.cfg.Call),
		escalation.WithLogger(c.logger),
	}
	if c.classifier != nil {
		opts = append(opts, escalation.WithClassifier(c.classifier))
	}
	if c.instr != nil {
		opts = append(opts, escalation.WithInstruments(c.instr))
	}
	ctrl, err := escalation.NewController(c.estimator, c.policy, c.generator, ledger, opts...)
	if err != nil {
		return nil, err
	}

	c.logger.Info("run started", "items", len(items), "strategy", string(c.cfg.Strategy), "concurrency", c.cfg.Concurrency)

	results := make([]model.Result, len(items))
	var (
		wg        sync.WaitGroup
		stopped   atomic.Bool
		semaphore = make(chan struct{}, c.cfg.Concurrency)
	)

	for i := range items {
		if !acquire(ctx, semaphore) {
			stopped.Store(true)
			for j := i; j < len(items); j++ {
				results[j] = c.canceledResult(items[j], ctx.Err())
			}
			break
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-semaphore }()
			results[i] = c.runItem(ctx, ctrl, items[i])
		}(i)
	}
	wg.Wait()

	rep := buildReport(c.cfg.Strategy, results, ledger.Snapshot())
	rep.Canceled = stopped.Load() || ctx.Err() != nil

	c.logger.Info("run finished",
		"items", rep.TotalItems,
		"failed", rep.FailedCount,
		"critical", rep.CriticalCount,
		"actual", rep.ActualCost,
		"baseline", rep.BaselineCost,
		"savings_pct", rep.SavingsPct,
	)
	return rep, nil
}

// runItem runs one item, turning a panic into a failed result.
func (c *Coordinator) runItem(ctx context.Context, ctrl *escalation.Controller, item model.Item) (res model.Result) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("item panicked", "item", item.ID, "panic", r, "stack", string(debug.Stack()))
			res = model.Result{
				ItemID:   item.ID,
				Outcome:  model.OutcomeFailed,
				Attempts: []model.Attempt{},
				Signal:   c.estimator.Estimate(item),
				Error:    fmt.Sprintf("panic: %v", r),
			}
		}
	}()
	return ctrl.Run(ctx, item, c.cfg.Strategy)
}

// acquire takes a worker slot, or reports false once ctx is done.
func acquire(ctx context.Context, semaphore chan struct{}) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case semaphore <- struct{}{}:
		if ctx.Err() != nil {
			<-semaphore
			return false
		}
		return true
	case <-ctx.Done():
		return false
	}
}

// canceledResult reports an item that never started. It still carries the
// item's signal so the report shows its real score and level.
func (c *Coordinator) canceledResult(item model.Item, err error) model.Result {
	return model.Result{
		ItemID:   item.ID,
		Outcome:  model.OutcomeFailed,
		Attempts: []model.Attempt{},
		Signal:   c.estimator.Estimate(item),
		Error:    fmt.Sprintf("%v: %v", escalation.ErrCanceled, err),
	}
}
