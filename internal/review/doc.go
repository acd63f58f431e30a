// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package review runs a batch of review items through the tier router.
//
// The Coordinator validates its configuration up front, then hands items to
// a bounded worker pool. Each worker runs one item through an escalation
// controller; all controllers of a run share one cost ledger. Results are
// kept in input order and the ledger is read only after every worker has
// returned, so the Report is identical for identical input and backend
// behavior.
//
// Items come from a YAML or JSON manifest (LoadManifest) or from a unified
// diff split per file (ItemsFromDiff).
package review
