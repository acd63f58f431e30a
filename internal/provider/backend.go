// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"

	"github.com/jeranaias/tierguard/internal/cloud"
	"github.com/jeranaias/tierguard/internal/ollama"
)

// Backend names used in configuration.
const (
	BackendOllama = "ollama"
	BackendCloud  = "cloud"
)

// Completion is a backend's raw answer.
type Completion struct {
	Content string
	Model   string
	Tokens  int
}

// Backend is one chat service. Implementations make a single request per
// call and leave retries to the caller.
type Backend interface {
	Complete(ctx context.Context, model, system, prompt string) (Completion, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, model, system, prompt string) (Completion, error)

// Complete calls f.
func (f BackendFunc) Complete(ctx context.Context, model, system, prompt string) (Completion, error) {
	return f(ctx, model, system, prompt)
}

// =============================================================================
// ADAPTERS
// =============================================================================

// Cloud adapts an OpenRouter client.
func Cloud(c *cloud.Client) Backend {
	return BackendFunc(func(ctx context.Context, model, system, prompt string) (Completion, error) {
		resp, err := c.Chat(ctx, model, []cloud.ChatMessage{
			cloud.NewSystemMessage(system),
			cloud.NewUserMessage(prompt),
		})
		if err != nil {
			return Completion{}, err
		}
		return Completion{Content: resp.GetContent(), Model: resp.Model, Tokens: resp.Usage.TotalTokens}, nil
	})
}

// Ollama adapts a local Ollama client.
func Ollama(c *ollama.Client) Backend {
	return BackendFunc(func(ctx context.Context, model, system, prompt string) (Completion, error) {
		resp, err := c.Chat(ctx, model, []ollama.Message{
			ollama.NewSystemMessage(system),
			ollama.NewUserMessage(prompt),
		})
		if err != nil {
			return Completion{}, err
		}
		return Completion{
			Content: resp.Message.Content,
			Model:   resp.Model,
			Tokens:  resp.PromptEvalCount + resp.EvalCount,
		}, nil
	})
}
