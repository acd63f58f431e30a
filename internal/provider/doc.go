// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider turns the chat backends into a tier-aware generator.
//
// A TierRouter maps each tier to a backend and a model, builds the review
// prompt, and parses the reply's trailer lines into a model.Response. The
// escalation controller sees only that generator; it never learns which
// vendor served a tier.
//
// # Response trailers
//
// Backends are asked to end their review with up to three lines:
//
//	ESCALATE: <reason>     ask for a stronger reviewer
//	CONFIDENCE: <0..1>     self-reported confidence
//	CRITICAL: <n>          number of critical findings
//
// Trailer lines are stripped from the review content.
package provider
