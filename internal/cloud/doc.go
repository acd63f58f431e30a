// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud is the OpenRouter backend.
//
// OpenRouter fronts many hosted models behind one chat completions API, so a
// single client can serve every tier: the tier only decides which model name
// goes into the request.
//
// # Key Types
//
//   - Client: HTTP client for the chat completions and models endpoints
//   - ChatMessage, ChatRequest, ChatResponse: wire types
//   - APIError: non-200 responses, with Transient() for the retry logic
//
// # Usage
//
//	client := cloud.NewClient(apiKey).WithSiteName("tierguard")
//	resp, err := client.Chat(ctx, "anthropic/claude-3.5-haiku", []cloud.ChatMessage{
//	    cloud.NewSystemMessage(system),
//	    cloud.NewUserMessage(prompt),
//	})
//
// The client makes exactly one request per call. Retries belong to the
// caller, which uses Transient() to decide whether a failure is worth
// repeating on the same model.
//
// # Security
//
// API keys are never logged; use KeyFingerprint or APIKeyMasked for display.
package cloud
