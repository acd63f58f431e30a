// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package escalation

import (
	"context"
	"errors"
	"fmt"
	"net"

	"golang.org/x/time/rate"

	"github.com/jeranaias/tierguard/internal/model"
)

// =============================================================================
// GENERATOR
// =============================================================================

// Generator produces a review for an item at a tier.
// Implementations should honor ctx cancellation and deadlines. The controller
// stops waiting at the deadline either way, but a call that ignores ctx keeps
// its goroutine until it returns.
type Generator interface {
	Generate(ctx context.Context, item model.Item, tier model.Tier) (model.Response, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, item model.Item, tier model.Tier) (model.Response, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, item model.Item, tier model.Tier) (model.Response, error) {
	return f(ctx, item, tier)
}

// =============================================================================
// TRANSIENT ERRORS
// =============================================================================

// transientError marks an error as safe to retry on the same tier.
type transientError struct {
	err error
}

func (e *transientError) Error() string   { return e.err.Error() }
func (e *transientError) Unwrap() error   { return e.err }
func (e *transientError) Transient() bool { return true }

// Transient wraps err so IsTransient reports true for it.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err is worth retrying on the same tier.
//
// Deadlines, network timeouts and any error in the chain exposing
// Transient() bool == true qualify. Cancellation never does.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Transient() bool }
	if errors.As(err, &t) {
		return t.Transient()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// =============================================================================
// RATE LIMITING
// =============================================================================

type rateLimited struct {
	next    Generator
	limiter *rate.Limiter
}

// RateLimited wraps g so calls wait for a token from limiter.
// Failing to get a token before ctx ends is returned as ctx's error.
func RateLimited(g Generator, limiter *rate.Limiter) Generator {
	if limiter == nil {
		return g
	}
	return &rateLimited{next: g, limiter: limiter}
}

// NewLimiter returns a limiter for rps requests per second, or nil when rps <= 0.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

func (r *rateLimited) Generate(ctx context.Context, item model.Item, tier model.Tier) (model.Response, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.Response{}, ctxErr
		}
		// Wait refuses early when the deadline is shorter than the wait.
		return model.Response{}, Transient(fmt.Errorf("rate limit wait: %w", err))
	}
	return r.next.Generate(ctx, item, tier)
}
