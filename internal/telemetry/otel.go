// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jeranaias/tierguard/internal/model"
)

const instrumentationName = "github.com/jeranaias/tierguard"

// =============================================================================
// INSTRUMENTS
// =============================================================================

// Instruments bundles the tracer and counters used while routing items.
// With no SDK installed the global providers are no-ops.
type Instruments struct {
	tracer   trace.Tracer
	attempts metric.Int64Counter
	retries  metric.Int64Counter
	spend    metric.Float64Counter
}

// InstrumentsOption configures Instruments.
type InstrumentsOption func(*instrumentsConfig)

type instrumentsConfig struct {
	tp trace.TracerProvider
	mp metric.MeterProvider
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) InstrumentsOption {
	return func(c *instrumentsConfig) { c.tp = tp }
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) InstrumentsOption {
	return func(c *instrumentsConfig) { c.mp = mp }
}

// NewInstruments creates the tracer and counters.
func NewInstruments(opts ...InstrumentsOption) (*Instruments, error) {
	cfg := instrumentsConfig{tp: otel.GetTracerProvider(), mp: otel.GetMeterProvider()}
	for _, opt := range opts {
		opt(&cfg)
	}

	meter := cfg.mp.Meter(instrumentationName)
	attempts, err := meter.Int64Counter("tierguard.attempts",
		metric.WithDescription("Tier attempts by tier and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create attempts counter: %w", err)
	}
	retries, err := meter.Int64Counter("tierguard.retries",
		metric.WithDescription("Transient same-tier retries"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retries counter: %w", err)
	}
	spend, err := meter.Float64Counter("tierguard.spend",
		metric.WithDescription("Charged cost in table units"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create spend counter: %w", err)
	}

	return &Instruments{
		tracer:   cfg.tp.Tracer(instrumentationName),
		attempts: attempts,
		retries:  retries,
		spend:    spend,
	}, nil
}

// StartItem opens the span covering one item's escalation chain.
func (in *Instruments) StartItem(ctx context.Context, item model.Item) (context.Context, trace.Span) {
	return in.tracer.Start(ctx, "tierguard.item",
		trace.WithAttributes(attribute.String("item.id", item.ID)),
	)
}

// StartAttempt opens the span for one tier attempt.
func (in *Instruments) StartAttempt(ctx context.Context, seq int, tier model.Tier) (context.Context, trace.Span) {
	return in.tracer.Start(ctx, "tierguard.attempt",
		trace.WithAttributes(
			attribute.Int("attempt.seq", seq),
			attribute.String("attempt.tier", tier.String()),
		),
	)
}

// EndAttempt records the attempt's outcome on its span and counters.
func (in *Instruments) EndAttempt(ctx context.Context, span trace.Span, a model.Attempt, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("tier", a.Tier.String()),
		attribute.String("outcome", string(a.Outcome)),
	}
	span.SetAttributes(
		attribute.String("attempt.outcome", string(a.Outcome)),
		attribute.Int("attempt.retries", a.Retries),
		attribute.Float64("attempt.cost", a.Cost),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	in.attempts.Add(ctx, 1, metric.WithAttributes(attrs...))
	in.spend.Add(ctx, a.Cost, metric.WithAttributes(attribute.String("tier", a.Tier.String())))
}

// Retry counts one transient retry.
func (in *Instruments) Retry(ctx context.Context, tier model.Tier) {
	in.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", tier.String())))
}
