// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama is the local backend: a small client for the Ollama
// /api/chat and /api/tags endpoints.
//
// A local model is the natural home for the cheap tier, where a review costs
// nothing but GPU time. Requests are non-streaming; a review is only useful
// once it is complete.
//
// # Key Types
//
//   - Client: HTTP client for the Ollama API
//   - Message, ChatRequest, ChatResponse: wire types
//   - ClientError: categorized failure with Transient() for retry decisions
package ollama
