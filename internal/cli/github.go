// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jeranaias/tierguard/internal/util"
)

// =============================================================================
// GITHUB ACTIONS
// =============================================================================

// ActionOutputs are the step outputs written for a workflow.
type ActionOutputs struct {
	Report      string
	Summary     string
	IssuesFound int
	CostSaved   string
}

// writeActionOutputs appends the step outputs to the file named by
// GITHUB_OUTPUT. It does nothing outside a workflow.
func (a *App) writeActionOutputs(out ActionOutputs) error {
	path := a.Getenv("GITHUB_OUTPUT")
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open GITHUB_OUTPUT: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	fmt.Fprintf(&b, "report=%s\n", oneLine(out.Report))
	fmt.Fprintf(&b, "summary=%s\n", oneLine(out.Summary))
	fmt.Fprintf(&b, "issues_found=%d\n", out.IssuesFound)
	fmt.Fprintf(&b, "cost_saved=%s\n", oneLine(out.CostSaved))
	if _, err := io.WriteString(f, b.String()); err != nil {
		return fmt.Errorf("failed to write GITHUB_OUTPUT: %w", err)
	}
	return nil
}

// annotate prints a workflow error annotation when running in Actions.
func (a *App) annotate(msg string) {
	if a.Getenv("GITHUB_ACTIONS") != "true" {
		return
	}
	fmt.Fprintf(a.Stderr, "::error::%s\n", util.FirstLine(msg))
}

func oneLine(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
