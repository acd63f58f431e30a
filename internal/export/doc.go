// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders review reports.
//
// # Key Types
//
//   - Exporter: converts a report to bytes in one format
//   - Options: artifact directory and optional formats
//   - TerminalOptions: color and width for console output
//
// # Supported Formats
//
//   - JSON: machine-readable, deterministic for identical reports
//   - Markdown: per-item table, tier spend and findings
//   - HTML: standalone page for browsing the report
//   - Summary: the short step-summary markdown for CI
//
// # Usage
//
//	paths, err := export.WriteArtifacts(report, export.Options{OutputDir: "out"})
//	if err != nil {
//	    return err
//	}
//	export.Terminal(os.Stdout, report, export.TerminalOptions{})
package export
