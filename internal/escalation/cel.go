// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package escalation

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// =============================================================================
// CEL CLASSIFIER
// =============================================================================

// CELClassifier escalates when a CEL expression evaluates to true.
//
// The expression sees these variables:
//
//	response  map: content, marker, confidence, critical, warning, info, model
//	item      map: id, hint, path
//	signal    map: score, level
//	tier      string: cheap, capable, premium
//
// Example: `response.critical > 0 && tier != "premium"`.
type CELClassifier struct {
	env        *cel.Env
	expression string

	mu       sync.RWMutex
	prgCache map[string]cel.Program
}

// NewCELClassifier compiles expression and returns the classifier.
// Compilation errors and non-boolean expressions are reported here rather
// than on first use.
func NewCELClassifier(expression string) (*CELClassifier, error) {
	env, err := cel.NewEnv(
		cel.Variable("response", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("item", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("signal", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("tier", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	c := &CELClassifier{
		env:        env,
		expression: expression,
		prgCache:   make(map[string]cel.Program),
	}
	if _, err := c.program(expression); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *CELClassifier) program(expression string) (cel.Program, error) {
	c.mu.RLock()
	prg, hit := c.prgCache[expression]
	c.mu.RUnlock()
	if hit {
		return prg, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if prg, hit = c.prgCache[expression]; hit {
		return prg, nil
	}
	ast, issues := c.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compile error: %w", issues.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("CEL expression must be boolean, got %s", out)
	}
	p, err := c.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("CEL program error: %w", err)
	}
	c.prgCache[expression] = p
	return p, nil
}

// Classify implements Classifier.
func (c *CELClassifier) Classify(_ context.Context, in Input) (Verdict, error) {
	prg, err := c.program(c.expression)
	if err != nil {
		return Verdict{}, err
	}

	activation := map[string]any{
		"response": map[string]any{
			"content":    in.Response.Content,
			"marker":     in.Response.EscalationMarker,
			"confidence": in.Response.Confidence,
			"critical":   int64(in.Response.Critical),
			"warning":    int64(in.Response.Warning),
			"info":       int64(in.Response.Info),
			"model":      in.Response.Model,
		},
		"item": map[string]string{
			"id":   in.Item.ID,
			"hint": in.Item.NormalizedHint(),
			"path": in.Item.Path,
		},
		"signal": map[string]any{
			"score": in.Signal.Score,
			"level": in.Signal.Level.String(),
		},
		"tier": in.Tier.String(),
	}

	out, _, err := prg.Eval(activation)
	if err != nil {
		return Verdict{}, fmt.Errorf("CEL eval error: %w", err)
	}
	escalate, ok := out.Value().(bool)
	if !ok {
		return Verdict{}, fmt.Errorf("CEL result not boolean")
	}
	if escalate {
		return Escalate("policy expression matched: %s", c.expression), nil
	}
	return Accept(), nil
}
