// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the tierguard command line.
//
// An App carries the process environment (streams, environment lookup,
// clock, working directory and backend factory) so every command can run
// against fakes in tests. Run parses argv, dispatches to a handler and maps
// the handler's error to an exit code.
//
// # Commands
//
//   - review: load items, run them through the coordinator, write the report
//     artifacts and GitHub Actions outputs, record the run in history
//   - release-prep: run the security, quality, changelog and coverage gates
//     over the changes since the latest tag
//   - estimate: score items and project cost without calling a backend
//   - config: show, get, set, init, reset and path
//   - history: list, show and trends over stored runs
//   - doctor: reachability of Ollama and OpenRouter, tier models, history
//   - version, help
//
// # Exit codes
//
// 0 on success, 1 when a run fails or reports critical findings (unless
// --fail-on-critical=false), 2 on configuration and usage errors.
//
// All commands accept --json and then print a JSONResponse envelope on
// stdout. Logs always go to stderr.
package cli
