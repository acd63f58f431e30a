// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"fmt"
	"math"
	"path"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/tierguard/internal/model"
)

// ============================================================================
// ESTIMATOR WEIGHTS
// ============================================================================

// Weights are the per-factor contributions used by the estimator.
// Every weight is non-negative, which keeps the score monotonic in each
// factor: more lines, more files, more keyword hits or a heavier hint can
// only raise it.
type Weights struct {
	// Size contributes up to Size as lines approach SizeLines.
	Size      float64 `json:"size" toml:"size"`
	SizeLines int     `json:"size_lines" toml:"size_lines"`

	// Files contributes up to Files as touched files approach FilesMax.
	Files    float64 `json:"files" toml:"files"`
	FilesMax int     `json:"files_max" toml:"files_max"`

	// Each distinct security keyword adds Keyword, capped at KeywordCap.
	Keyword    float64 `json:"keyword" toml:"keyword"`
	KeywordCap float64 `json:"keyword_cap" toml:"keyword_cap"`

	// Each sensitive path adds Path, capped at PathCap.
	Path    float64 `json:"path" toml:"path"`
	PathCap float64 `json:"path_cap" toml:"path_cap"`

	// Hints maps a normalized hint to its weight. Unknown hints weigh 0.
	Hints map[string]float64 `json:"hints" toml:"hints"`
}

// DefaultWeights returns the stock estimator weights.
func DefaultWeights() Weights {
	return Weights{
		Size:       0.35,
		SizeLines:  400,
		Files:      0.15,
		FilesMax:   10,
		Keyword:    0.1,
		KeywordCap: 0.3,
		Path:       0.1,
		PathCap:    0.2,
		Hints: map[string]float64{
			"security":           0.8,
			"security-sensitive": 0.8,
			"critical":           0.6,
			"architecture":       0.4,
			"performance":        0.3,
		},
	}
}

// Validate rejects negative or non-finite weights and empty denominators.
func (w Weights) Validate() error {
	check := func(name string, v float64) error {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: %s = %v", ErrBadWeights, name, v)
		}
		return nil
	}
	for name, v := range map[string]float64{
		"size": w.Size, "files": w.Files, "keyword": w.Keyword,
		"keyword_cap": w.KeywordCap, "path": w.Path, "path_cap": w.PathCap,
	} {
		if err := check(name, v); err != nil {
			return err
		}
	}
	for hint, v := range w.Hints {
		if err := check("hints."+hint, v); err != nil {
			return err
		}
	}
	if w.SizeLines <= 0 || w.FilesMax <= 0 {
		return fmt.Errorf("%w: size_lines and files_max must be positive", ErrBadWeights)
	}
	return nil
}

// securityKeywords are matched against NFKC-normalized, lower-cased content.
var securityKeywords = []string{
	"auth", "password", "token", "crypto", "secret",
	"sql", "exec", "bypass", "permission", "sanitize",
}

// sensitivePathParts mark files whose changes deserve a stronger reviewer.
var sensitivePathParts = []string{
	"auth", "security", "crypto", "secret", "password", "token",
	"permission", "rbac", "admin", "login", "session", "migration",
	".env", "credentials",
}

// ============================================================================
// ESTIMATOR
// ============================================================================

// Estimator scores review items. It is safe for concurrent use.
type Estimator struct {
	weights    Weights
	thresholds Thresholds
}

// NewEstimator creates an estimator using the default thresholds.
func NewEstimator(w Weights) *Estimator {
	return &Estimator{weights: w, thresholds: DefaultThresholds()}
}

// WithThresholds returns a copy of e that uses t for level mapping.
func (e *Estimator) WithThresholds(t Thresholds) *Estimator {
	cp := *e
	cp.thresholds = t
	return &cp
}

// MinimumSignal is the signal for degenerate input: score 0, trivial.
func MinimumSignal() model.Signal {
	return model.Signal{Score: 0, Level: model.LevelTrivial}
}

// Estimate computes the complexity signal for an item.
// It never fails: empty, binary or invalid UTF-8 content yields MinimumSignal.
func (e *Estimator) Estimate(item model.Item) model.Signal {
	content := item.Content
	if strings.TrimSpace(content) == "" || !utf8.ValidString(content) || strings.ContainsRune(content, 0) {
		return MinimumSignal()
	}

	normalized := strings.ToLower(norm.NFKC.String(content))
	hint := item.NormalizedHint()

	f := model.Factors{Hint: hint}
	var paths []string

	if files, preamble, ok := parseDiff(content); ok {
		f.Diff = true
		f.Files = len(files)
		f.Lines = countLines(preamble)
		for _, file := range files {
			name := file.NewName
			if file.IsDelete || name == "" {
				name = file.OldName
			}
			paths = append(paths, name)
			for _, frag := range file.TextFragments {
				f.Lines += int(frag.LinesAdded + frag.LinesDeleted)
			}
		}
	} else {
		f.Files = 1
		f.Lines = countLines(content)
	}
	if item.Path != "" {
		paths = append(paths, item.Path)
	}

	for _, kw := range securityKeywords {
		if strings.Contains(normalized, kw) {
			f.Keywords = append(f.Keywords, kw)
		}
	}
	f.SensitivePaths = sensitivePaths(paths)

	score := e.score(f)
	return model.Signal{
		Score:   score,
		Level:   e.thresholds.Level(score),
		Factors: f,
	}
}

// score sums the factor contributions and clamps to [0,1].
func (e *Estimator) score(f model.Factors) float64 {
	w := e.weights
	sizeLines := w.SizeLines
	if sizeLines <= 0 {
		sizeLines = 1
	}
	filesMax := w.FilesMax
	if filesMax <= 0 {
		filesMax = 1
	}

	total := math.Min(float64(f.Lines)/float64(sizeLines), 1) * w.Size
	total += math.Min(float64(f.Files)/float64(filesMax), 1) * w.Files
	total += math.Min(float64(len(f.Keywords))*w.Keyword, w.KeywordCap)
	total += math.Min(float64(len(f.SensitivePaths))*w.Path, w.PathCap)
	total += w.Hints[f.Hint]

	return math.Max(0, math.Min(total, 1))
}

// parseDiff returns the files of a unified diff and the text before the
// first file header, or false if content is not a diff. Files parsed before
// a malformed section are kept so appending text never drops earlier files.
func parseDiff(content string) ([]*gitdiff.File, string, bool) {
	if !strings.Contains(content, "@@") && !strings.Contains(content, "diff --git") {
		return nil, "", false
	}
	files, preamble, _ := gitdiff.Parse(strings.NewReader(content))
	if len(files) == 0 {
		return nil, "", false
	}
	return files, preamble, true
}

func countLines(s string) int {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

// sensitivePaths returns the sorted distinct paths that look security relevant.
func sensitivePaths(paths []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range paths {
		lower := strings.ToLower(path.Clean(strings.ReplaceAll(p, "\\", "/")))
		for _, part := range sensitivePathParts {
			if strings.Contains(lower, part) {
				if _, ok := seen[p]; !ok {
					seen[p] = struct{}{}
					out = append(out, p)
				}
				break
			}
		}
	}
	sort.Strings(out)
	return out
}
