// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by the routing engine:
// tiers, review items, attempts, and per-item results.
//
// All types here are plain values. Items are immutable once created and
// results are assembled by the escalation controller and never mutated after
// they are handed to the run coordinator.
package model
