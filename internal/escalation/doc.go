// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package escalation drives one review item through its tier attempts.
//
// The Controller is an explicit state machine:
//
//	Estimating -> Calling(tier) -> Accepted
//	                  |   ^
//	                  v   | escalate
//	               Failed
//
// Each Calling state runs the Generator under a per-call timeout. Transient
// errors (timeouts, network failures, rate limits, 5xx) are retried on the
// same tier with exponential backoff and folded into a single attempt. Other
// errors fail the attempt at once. A successful response is judged by the
// Classifier, and the Policy decides whether to escalate.
//
// Every attempt is charged to the ledger exactly once, failed ones included.
package escalation
