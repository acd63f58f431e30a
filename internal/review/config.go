// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package review

import (
	"fmt"
	"strings"

	"github.com/jeranaias/tierguard/internal/escalation"
	"github.com/jeranaias/tierguard/internal/router"
)

// DefaultConcurrency is the worker pool size when none is configured.
const DefaultConcurrency = 4

// Config is everything a run needs besides the items and the backend.
type Config struct {
	Strategy    router.Strategy
	Router      router.Config
	Weights     router.Weights
	Costs       router.CostTable
	Call        escalation.Options
	Concurrency int
}

// DefaultConfig returns an auto-strategy configuration with stock values.
func DefaultConfig() Config {
	return Config{
		Strategy:    router.StrategyAuto,
		Router:      router.Config{Thresholds: router.DefaultThresholds()},
		Weights:     router.DefaultWeights(),
		Costs:       router.DefaultCostTable(),
		Call:        escalation.DefaultOptions(),
		Concurrency: DefaultConcurrency,
	}
}

// ConfigError lists every problem found in a Config.
type ConfigError struct {
	Problems []error
}

func (e *ConfigError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return "invalid run configuration: " + strings.Join(msgs, "; ")
}

// Unwrap exposes the individual problems to errors.Is and errors.As.
func (e *ConfigError) Unwrap() []error {
	return e.Problems
}

// Validate checks the strategy, thresholds, weights, cost table and pool size.
func (c Config) Validate() error {
	var problems []error
	if err := c.Router.ValidateStrategy(c.Strategy); err != nil {
		problems = append(problems, err)
	}
	if err := c.Router.Validate(); err != nil {
		problems = append(problems, err)
	}
	if err := c.Weights.Validate(); err != nil {
		problems = append(problems, err)
	}
	if err := c.Costs.Validate(); err != nil {
		problems = append(problems, err)
	}
	if c.Concurrency < 0 {
		problems = append(problems, fmt.Errorf("concurrency must not be negative, got %d", c.Concurrency))
	}
	if c.Call.MaxRetries < 0 {
		problems = append(problems, fmt.Errorf("max retries must not be negative, got %d", c.Call.MaxRetries))
	}
	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}
