// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
)

// =============================================================================
// REVIEW ITEM
// =============================================================================

// Item is one unit of review work: a diff, a file, or a change description.
type Item struct {
	// ID uniquely identifies the item within a run.
	ID string `json:"id" yaml:"id"`

	// Content is the text sent to the backend (diff hunk or file body).
	Content string `json:"content" yaml:"content"`

	// Hint is an optional category such as "security" or "performance".
	Hint string `json:"hint,omitempty" yaml:"hint,omitempty"`

	// Path is the file the content came from, when known.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// NormalizedHint returns the hint lower-cased and trimmed.
func (it Item) NormalizedHint() string {
	return strings.ToLower(strings.TrimSpace(it.Hint))
}

// ValidateItems checks that every item has a non-empty ID and that IDs are unique.
func ValidateItems(items []Item) error {
	seen := make(map[string]struct{}, len(items))
	for i, it := range items {
		id := strings.TrimSpace(it.ID)
		if id == "" {
			return fmt.Errorf("item %d: empty id", i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("item %d: duplicate id %q", i, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// =============================================================================
// COMPLEXITY SIGNAL
// =============================================================================

// Level is the categorical complexity of an item.
type Level int

const (
	// LevelTrivial is a cosmetic change (typos, formatting).
	LevelTrivial Level = iota
	// LevelLow is a small self-contained change.
	LevelLow
	// LevelMedium needs real reasoning about behavior.
	LevelMedium
	// LevelHigh is large or security-sensitive.
	LevelHigh
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelTrivial:
		return "trivial"
	case LevelLow:
		return "low"
	case LevelMedium:
		return "medium"
	case LevelHigh:
		return "high"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// MarshalText encodes the level as its name.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes a level name, so stored reports read back.
func (l *Level) UnmarshalText(b []byte) error {
	for _, lv := range []Level{LevelTrivial, LevelLow, LevelMedium, LevelHigh} {
		if strings.EqualFold(string(b), lv.String()) {
			*l = lv
			return nil
		}
	}
	return fmt.Errorf("unknown complexity level %q", string(b))
}

// Factors records what contributed to a complexity score.
type Factors struct {
	Lines          int      `json:"lines"`
	Files          int      `json:"files"`
	Keywords       []string `json:"keywords,omitempty"`
	SensitivePaths []string `json:"sensitive_paths,omitempty"`
	Hint           string   `json:"hint,omitempty"`
	Diff           bool     `json:"diff"`
}

// Signal is the bounded complexity estimate for one item.
type Signal struct {
	Score   float64 `json:"score"`
	Level   Level   `json:"level"`
	Factors Factors `json:"factors"`
}
