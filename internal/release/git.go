// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package release

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jeranaias/tierguard/internal/review"
)

// logFormat is one commit per line: short hash and subject.
const logFormat = "--format=%h %s"

// LatestTag returns the newest tag reachable from HEAD, or "" when the
// repository has none.
func LatestTag(ctx context.Context, dir string) (string, error) {
	if _, err := review.Git(ctx, dir, "rev-parse", "--git-dir"); err != nil {
		return "", err
	}
	out, err := review.Git(ctx, dir, "describe", "--tags", "--abbrev=0")
	if err != nil {
		return "", nil
	}
	return strings.TrimSpace(out), nil
}

// Changes returns the diff and the commit log since the revision since.
// An empty since covers the whole history.
func Changes(ctx context.Context, dir, since string) (diff, log string, err error) {
	if since == "" {
		return allChanges(ctx, dir)
	}

	diff, err = review.GitDiff(ctx, dir, since)
	if errors.Is(err, review.ErrNoItems) {
		return "", "", fmt.Errorf("revision %s does not resolve", since)
	}
	if err != nil {
		return "", "", err
	}
	log, err = review.Git(ctx, dir, "log", "--no-merges", logFormat, since+"..HEAD", "--")
	if err != nil {
		return "", "", err
	}
	return diff, log, nil
}

// allChanges diffs HEAD against the empty tree.
func allChanges(ctx context.Context, dir string) (diff, log string, err error) {
	tree, err := review.Git(ctx, dir, "hash-object", "-t", "tree", os.DevNull)
	if err != nil {
		return "", "", err
	}
	diff, err = review.Git(ctx, dir, "diff", strings.TrimSpace(tree), "HEAD", "--")
	if err != nil {
		return "", "", err
	}
	log, err = review.Git(ctx, dir, "log", "--no-merges", logFormat, "--")
	if err != nil {
		return "", "", err
	}
	return diff, log, nil
}
