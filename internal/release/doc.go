// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package release prepares a release by running quality gates over the
// changes since the last tag.
//
// The security audit, code quality and changelog gates are review items
// routed through the same tier router as a normal review, so they share its
// cost accounting. The test coverage gate reads a Go coverage profile and
// needs no backend.
package release
