// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// helpers.go - shared helpers for the command handlers.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// formatDurationShort formats a short duration string.
func formatDurationShort(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}

// validateOutputDir rejects an artifact directory that names an existing
// file. A missing directory is fine; it is created on write.
func validateOutputDir(dir string) error {
	if dir == "" {
		return ErrInvalidValue("output.dir", dir, "must not be empty")
	}
	info, err := os.Stat(filepath.Clean(dir))
	if err == nil && !info.IsDir() {
		return ErrInvalidValue("output.dir", dir, "exists and is not a directory")
	}
	return nil
}
