// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry provides cost accounting and run analytics for tierguard.
//
// # Key Types
//
//   - Ledger: per-run actual and baseline spend, one charge per attempt
//   - History: SQLite store of past runs with daily trends
//   - Instruments: OpenTelemetry tracer and meters for attempts
//
// # Baseline
//
// The baseline is what the run would have cost if every item had been sent
// to the premium tier exactly once. Savings are reported as a fraction of
// that baseline.
package telemetry
