// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package review

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/tierguard/internal/model"
)

// MaxItemSize caps the content of one item, read from disk or cut from a diff.
const MaxItemSize = 1 << 20

// ErrNoItems is returned when a source yields nothing to review.
var ErrNoItems = errors.New("no items to review")

// =============================================================================
// MANIFEST
// =============================================================================

// manifest accepts either a bare list of items or {items: [...]}.
type manifest struct {
	Items []model.Item `json:"items" yaml:"items"`
}

// LoadManifest reads items from a YAML or JSON file.
// Items with no content are read from their path, relative to the manifest.
func LoadManifest(path string) ([]model.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	items, err := ParseManifest(data, strings.EqualFold(filepath.Ext(path), ".json"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	base := filepath.Dir(path)
	for i := range items {
		if items[i].Content != "" || items[i].Path == "" {
			continue
		}
		p := items[i].Path
		if !filepath.IsAbs(p) {
			p = filepath.Join(base, p)
		}
		content, err := readLimited(p)
		if err != nil {
			return nil, fmt.Errorf("item %q: %w", items[i].ID, err)
		}
		items[i].Content = content
	}
	if err := model.ValidateItems(items); err != nil {
		return nil, err
	}
	return items, nil
}

// ParseManifest decodes manifest bytes. JSON is decoded strictly; anything
// else is treated as YAML.
func ParseManifest(data []byte, isJSON bool) ([]model.Item, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, ErrNoItems
	}

	var list []model.Item
	var wrapped manifest
	if isJSON {
		if strings.HasPrefix(trimmed, "[") {
			if err := json.Unmarshal(data, &list); err != nil {
				return nil, fmt.Errorf("invalid JSON manifest: %w", err)
			}
			return list, nil
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("invalid JSON manifest: %w", err)
		}
		return wrapped.Items, nil
	}

	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	if err := yaml.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("invalid YAML manifest: %w", err)
	}
	return wrapped.Items, nil
}

func readLimited(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, MaxItemSize+1))
	if err != nil {
		return "", err
	}
	if len(data) > MaxItemSize {
		return "", fmt.Errorf("%s exceeds %d bytes", path, MaxItemSize)
	}
	return string(data), nil
}

// =============================================================================
// DIFF
// =============================================================================

// ItemsFromDiff splits a unified diff into one item per file. The item ID
// and path are the file's name; the content is that file's part of the diff,
// cut to MaxItemSize.
func ItemsFromDiff(r io.Reader) ([]model.Item, error) {
	chunks, err := splitDiff(r)
	if err != nil {
		return nil, err
	}

	var items []model.Item
	seen := make(map[string]int)
	for _, chunk := range chunks {
		files, _, err := gitdiff.Parse(strings.NewReader(chunk))
		if len(files) == 0 {
			if err != nil {
				return nil, fmt.Errorf("parsing diff: %w", err)
			}
			continue
		}
		name := fileName(files[0])
		id := name
		if n := seen[name]; n > 0 {
			id = fmt.Sprintf("%s#%d", name, n+1)
		}
		seen[name]++
		items = append(items, model.Item{ID: id, Path: name, Content: CapContent(chunk)})
	}
	return items, nil
}

func fileName(f *gitdiff.File) string {
	if f.IsDelete || f.NewName == "" {
		return f.OldName
	}
	return f.NewName
}

// splitDiff cuts raw diff text at each "diff --git" header. Text without
// such headers is returned as a single chunk. Lines may be any length.
func splitDiff(r io.Reader) ([]string, error) {
	br := bufio.NewReader(r)

	var chunks []string
	var cur strings.Builder
	flush := func() {
		if strings.TrimSpace(cur.String()) != "" {
			chunks = append(chunks, cur.String())
		}
		cur.Reset()
	}
	for {
		line, err := br.ReadString('\n')
		if strings.HasPrefix(line, "diff --git ") {
			flush()
		}
		cur.WriteString(line)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading diff: %w", err)
		}
	}
	flush()
	return chunks, nil
}

// CapContent cuts content larger than MaxItemSize at the last line break that
// fits and notes how much was dropped.
func CapContent(content string) string {
	if len(content) <= MaxItemSize {
		return content
	}
	cut := content[:MaxItemSize]
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		cut = cut[:i+1]
	}
	return cut + fmt.Sprintf("[truncated: %d bytes omitted]\n", len(content)-len(cut))
}

// =============================================================================
// GIT
// =============================================================================

// ErrBadRevision is returned for a revision that git would read as an option.
var ErrBadRevision = errors.New("invalid revision")

// GitDiff runs `git diff <rev>` in dir and returns the raw output. A
// revision that does not resolve, such as HEAD~1 in a single-commit clone,
// yields ErrNoItems: there is no earlier state to compare against.
func GitDiff(ctx context.Context, dir, rev string) (string, error) {
	if rev == "" {
		rev = "HEAD~1"
	}
	if strings.HasPrefix(rev, "-") {
		return "", fmt.Errorf("%w: %q", ErrBadRevision, rev)
	}
	ok, err := revisionExists(ctx, dir, rev)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: revision %s does not resolve", ErrNoItems, rev)
	}
	return Git(ctx, dir, "diff", rev, "--")
}

// revisionExists reports whether rev names a commit in dir's repository.
func revisionExists(ctx context.Context, dir, rev string) (bool, error) {
	_, err := Git(ctx, dir, "rev-parse", "--verify", "--quiet", rev+"^{commit}")
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, err
}

// Git runs git with args in dir and returns stdout. Failures carry git's
// stderr and wrap the *exec.ExitError.
func Git(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		name := "git " + args[0]
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return "", fmt.Errorf("%s: %s: %w", name, strings.TrimSpace(string(exitErr.Stderr)), err)
		}
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return string(out), nil
}
