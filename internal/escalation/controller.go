// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package escalation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jeranaias/tierguard/internal/model"
	"github.com/jeranaias/tierguard/internal/router"
	"github.com/jeranaias/tierguard/internal/telemetry"
)

// Default call settings.
const (
	DefaultTimeout      = 60 * time.Second
	DefaultMaxRetries   = 2
	DefaultRetryBackoff = 500 * time.Millisecond
	DefaultMaxBackoff   = 8 * time.Second
)

// ErrCanceled is recorded on items whose processing was stopped by cancellation.
var ErrCanceled = errors.New("canceled")

// =============================================================================
// OPTIONS
// =============================================================================

// Options tune per-call behavior.
type Options struct {
	// Timeout bounds each generator call. Zero means DefaultTimeout.
	Timeout time.Duration

	// MaxRetries is the number of same-tier retries after a transient failure.
	MaxRetries int

	// RetryBackoff is the delay before the first retry; it doubles each time
	// up to MaxBackoff.
	RetryBackoff time.Duration
	MaxBackoff   time.Duration
}

// DefaultOptions returns the stock call settings.
func DefaultOptions() Options {
	return Options{
		Timeout:      DefaultTimeout,
		MaxRetries:   DefaultMaxRetries,
		RetryBackoff: DefaultRetryBackoff,
		MaxBackoff:   DefaultMaxBackoff,
	}
}

// backoff returns the delay before retry n (1-based).
func (o Options) backoff(n int) time.Duration {
	if o.RetryBackoff <= 0 || n <= 0 {
		return 0
	}
	delay := o.RetryBackoff * time.Duration(1<<uint(n-1))
	if o.MaxBackoff > 0 && delay > o.MaxBackoff {
		delay = o.MaxBackoff
	}
	return delay
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller runs items through the tier policy. It is safe for concurrent
// use; per-item state lives on the stack of Run.
type Controller struct {
	estimator  *router.Estimator
	policy     *router.Policy
	generator  Generator
	classifier Classifier
	ledger     *telemetry.Ledger
	instr      *telemetry.Instruments
	opts       Options
	logger     *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithOptions sets the call settings.
func WithOptions(o Options) Option {
	return func(c *Controller) { c.opts = o }
}

// WithClassifier replaces the default MarkerClassifier.
func WithClassifier(cl Classifier) Option {
	return func(c *Controller) {
		if cl != nil {
			c.classifier = cl
		}
	}
}

// WithInstruments sets the tracing and metrics hooks.
func WithInstruments(in *telemetry.Instruments) Option {
	return func(c *Controller) {
		if in != nil {
			c.instr = in
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewController wires a controller. The ledger is shared by every
// controller of a run.
func NewController(est *router.Estimator, pol *router.Policy, gen Generator, ledger *telemetry.Ledger, opts ...Option) (*Controller, error) {
	if est == nil || pol == nil || gen == nil || ledger == nil {
		return nil, errors.New("escalation: estimator, policy, generator and ledger are required")
	}
	c := &Controller{
		estimator:  est,
		policy:     pol,
		generator:  gen,
		classifier: MarkerClassifier{},
		ledger:     ledger,
		opts:       DefaultOptions(),
		logger:     slog.Default().With("component", "escalation"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.instr == nil {
		in, err := telemetry.NewInstruments()
		if err != nil {
			return nil, err
		}
		c.instr = in
	}
	if c.opts.Timeout <= 0 {
		c.opts.Timeout = DefaultTimeout
	}
	if c.opts.MaxRetries < 0 {
		c.opts.MaxRetries = 0
	}
	return c, nil
}

// =============================================================================
// STATE MACHINE
// =============================================================================

type state int

const (
	stateEstimating state = iota
	stateCalling
	stateAccepted
	stateFailed
)

func (s state) String() string {
	switch s {
	case stateEstimating:
		return "estimating"
	case stateCalling:
		return "calling"
	case stateAccepted:
		return "accepted"
	case stateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// run is the per-item state.
type run struct {
	item     model.Item
	strategy router.Strategy
	signal   model.Signal
	tier     model.Tier
	attempts []model.Attempt
	last     model.Response
	err      error
}

// Run processes one item to completion and returns its result.
// Per-item failures are reported in the result, never as an error.
func (c *Controller) Run(ctx context.Context, item model.Item, strategy router.Strategy) model.Result {
	ctx, span := c.instr.StartItem(ctx, item)
	defer span.End()

	r := &run{item: item, strategy: strategy}
	st := stateEstimating
	for {
		switch st {
		case stateEstimating:
			st = c.estimate(ctx, r)
		case stateCalling:
			st = c.call(ctx, r)
		case stateAccepted, stateFailed:
			return c.finish(r, st)
		}
	}
}

func (c *Controller) estimate(ctx context.Context, r *run) state {
	r.signal = c.estimator.Estimate(r.item)
	if err := ctx.Err(); err != nil {
		r.err = fmt.Errorf("%w: %v", ErrCanceled, err)
		return stateFailed
	}
	d := c.policy.NextTier(r.signal, nil, r.strategy)
	if d.Done {
		r.err = fmt.Errorf("no tier selected: %s", d.Reason)
		return stateFailed
	}
	r.tier = d.Tier
	c.logger.Info("item routed",
		"item", r.item.ID,
		"score", r.signal.Score,
		"level", r.signal.Level.String(),
		"tier", d.Tier.String(),
		"reason", d.Reason,
	)
	return stateCalling
}

func (c *Controller) call(ctx context.Context, r *run) state {
	if err := ctx.Err(); err != nil {
		r.err = fmt.Errorf("%w: %v", ErrCanceled, err)
		return stateFailed
	}

	a, resp, err := c.attempt(ctx, r, len(r.attempts)+1, r.tier)
	r.attempts = append(r.attempts, a)
	r.last = resp
	r.err = err

	d := c.policy.NextTier(r.signal, r.attempts, r.strategy)
	if !d.Done {
		if ctx.Err() != nil {
			r.err = fmt.Errorf("%w: %v", ErrCanceled, ctx.Err())
			return stateFailed
		}
		c.logger.Info("escalating", "item", r.item.ID, "from", r.tier.String(), "to", d.Tier.String(), "reason", a.Reason)
		r.tier = d.Tier
		return stateCalling
	}

	switch a.Outcome {
	case model.OutcomeAccepted, model.OutcomeEscalate:
		return stateAccepted
	default:
		return stateFailed
	}
}

func (c *Controller) finish(r *run, st state) model.Result {
	res := model.Result{
		ItemID:   r.item.ID,
		Attempts: r.attempts,
		Signal:   r.signal,
	}
	if res.Attempts == nil {
		res.Attempts = []model.Attempt{}
	}

	if st == stateAccepted {
		last := r.attempts[len(r.attempts)-1]
		tier := last.Tier
		res.Outcome = model.OutcomeAccepted
		res.Tier = &tier
		res.Content = r.last.Content
		res.Critical = r.last.Critical
		res.Warning = r.last.Warning
		res.Info = r.last.Info
		res.Exhausted = last.Outcome == model.OutcomeEscalate
	} else {
		res.Outcome = model.OutcomeFailed
		if r.err != nil {
			res.Error = r.err.Error()
		} else {
			res.Error = "failed"
		}
	}

	c.logger.Info("item finished",
		"item", res.ItemID,
		"outcome", string(res.Outcome),
		"attempts", len(res.Attempts),
		"cost", res.Cost(),
		"exhausted", res.Exhausted,
	)
	return res
}

// =============================================================================
// ATTEMPT
// =============================================================================

// attempt makes one tier attempt, retrying transient failures on the same
// tier, and charges the ledger once.
func (c *Controller) attempt(ctx context.Context, r *run, seq int, tier model.Tier) (model.Attempt, model.Response, error) {
	actx, span := c.instr.StartAttempt(ctx, seq, tier)
	a := model.Attempt{Seq: seq, Tier: tier}

	var resp model.Response
	var err error
	for {
		resp, err = c.generate(actx, r.item, tier)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %v", ErrCanceled, ctx.Err())
			break
		}
		if !IsTransient(err) || a.Retries >= c.opts.MaxRetries {
			break
		}
		a.Retries++
		c.instr.Retry(actx, tier)
		delay := c.opts.backoff(a.Retries)
		c.logger.Warn("transient failure, retrying",
			"item", r.item.ID, "tier", tier.String(), "retry", a.Retries, "delay", delay, "error", err)
		if !sleep(ctx, delay) {
			err = fmt.Errorf("%w: %v", ErrCanceled, ctx.Err())
			break
		}
	}

	if err == nil {
		verdict, cerr := c.classifier.Classify(actx, Input{Item: r.item, Tier: tier, Signal: r.signal, Response: resp})
		if cerr != nil {
			err = fmt.Errorf("classify: %w", cerr)
		} else {
			a.Outcome = verdict.Outcome()
			a.Reason = verdict.Reason
		}
	}
	if err != nil {
		a.Outcome = model.OutcomeFailed
		a.Error = err.Error()
	}

	cost, cerr := c.ledger.Charge(r.item.ID, seq, tier, a.Outcome)
	if cerr != nil {
		c.logger.Error("ledger charge rejected", "item", r.item.ID, "seq", seq, "error", cerr)
	}
	a.Cost = cost

	c.instr.EndAttempt(actx, span, a, err)
	c.logger.Info("attempt",
		"item", r.item.ID,
		"seq", seq,
		"tier", tier.String(),
		"outcome", string(a.Outcome),
		"retries", a.Retries,
		"cost", cost,
	)
	return a, resp, err
}

type callResult struct {
	resp model.Response
	err  error
}

// generate makes a single call under the per-call timeout. A generator that
// ignores ctx is abandoned when the deadline passes; its goroutine exits
// whenever the call eventually returns.
func (c *Controller) generate(ctx context.Context, item model.Item, tier model.Tier) (model.Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	done := make(chan callResult, 1)
	go func() {
		resp, err := c.generator.Generate(callCtx, item, tier)
		done <- callResult{resp: resp, err: err}
	}()

	var resp model.Response
	var err error
	select {
	case r := <-done:
		resp, err = r.resp, r.err
	case <-callCtx.Done():
		err = callCtx.Err()
	}
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return resp, fmt.Errorf("call timed out after %v: %w", c.opts.Timeout, context.DeadlineExceeded)
	}
	return resp, err
}

// sleep waits for d or until ctx is done. It reports whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
