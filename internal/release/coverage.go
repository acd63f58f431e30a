// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package release

import (
	"fmt"

	"golang.org/x/tools/cover"
)

// Coverage is the statement coverage read from a `go test -coverprofile`
// file.
type Coverage struct {
	Files      int `json:"files"`
	Statements int `json:"statements"`
	Covered    int `json:"covered"`
}

// Percent returns covered statements as a fraction in [0,1]. A profile with
// no statements is 0.
func (c Coverage) Percent() float64 {
	if c.Statements == 0 {
		return 0
	}
	return float64(c.Covered) / float64(c.Statements)
}

// LoadCoverage reads a coverage profile. Blocks repeated across profiles
// of the same file are merged by the parser.
func LoadCoverage(path string) (*Coverage, error) {
	profiles, err := cover.ParseProfiles(path)
	if err != nil {
		return nil, fmt.Errorf("coverage profile: %w", err)
	}
	c := &Coverage{Files: len(profiles)}
	for _, p := range profiles {
		for _, b := range p.Blocks {
			c.Statements += b.NumStmt
			if b.Count > 0 {
				c.Covered += b.NumStmt
			}
		}
	}
	return c, nil
}
