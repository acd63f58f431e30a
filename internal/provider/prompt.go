// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jeranaias/tierguard/internal/model"
)

// SystemPrompt is sent with every review request.
const SystemPrompt = `You are a senior code reviewer. Review the change for correctness, security and maintainability.
Be concise. List findings as bullet points, most severe first. Mark a finding as CRITICAL only if it must be fixed before merge.`

// Trailer keys.
const (
	trailerEscalate   = "ESCALATE:"
	trailerConfidence = "CONFIDENCE:"
	trailerCritical   = "CRITICAL:"
	trailerWarning    = "WARNING:"
	trailerInfo       = "INFO:"
)

var trailerKeys = []string{trailerEscalate, trailerConfidence, trailerCritical, trailerWarning, trailerInfo}

// BuildPrompt renders the review request for item at tier. Below the top
// tier the backend is told how to ask for a stronger reviewer.
func BuildPrompt(item model.Item, tier model.Tier) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Review item: %s\n", item.ID)
	if item.Path != "" && item.Path != item.ID {
		fmt.Fprintf(&b, "Path: %s\n", item.Path)
	}
	if hint := item.NormalizedHint(); hint != "" {
		fmt.Fprintf(&b, "Reviewer note: this change is flagged %q.\n", hint)
	}
	b.WriteString("\n```\n")
	b.WriteString(item.Content)
	if !strings.HasSuffix(item.Content, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString("```\n\n")

	b.WriteString("End your review with these lines:\n")
	fmt.Fprintf(&b, "%s <number of critical findings>\n", trailerCritical)
	fmt.Fprintf(&b, "%s <number of warnings>\n", trailerWarning)
	fmt.Fprintf(&b, "%s <number of informational notes>\n", trailerInfo)
	fmt.Fprintf(&b, "%s <your confidence in this review, 0 to 1>\n", trailerConfidence)
	if _, ok := tier.Next(); ok {
		fmt.Fprintf(&b, "If this change is beyond what you can review reliably, add a line %s <reason> instead of guessing.\n", trailerEscalate)
	}
	return b.String()
}

// ParseResponse splits a backend reply into review content and trailer
// signals. A CONFIDENCE or severity count line whose value does not parse is
// kept as content and the signal keeps its default.
func ParseResponse(text string) model.Response {
	resp := model.Response{Confidence: model.ConfidenceUnknown}

	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		key, value, ok := trailer(line)
		if !ok {
			kept = append(kept, line)
			continue
		}
		switch key {
		case trailerEscalate:
			if !isNone(value) {
				if value == "" {
					value = "no reason given"
				}
				resp.EscalationMarker = value
			}
		case trailerConfidence:
			if c, ok := parseConfidence(value); ok {
				resp.Confidence = c
			} else {
				kept = append(kept, line)
			}
		case trailerCritical, trailerWarning, trailerInfo:
			// "CRITICAL: SQL injection in ..." is a finding, not a count.
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				kept = append(kept, line)
				continue
			}
			switch key {
			case trailerCritical:
				resp.Critical = n
			case trailerWarning:
				resp.Warning = n
			default:
				resp.Info = n
			}
		}
	}
	resp.Content = strings.TrimSpace(strings.Join(kept, "\n"))
	return resp
}

// trailer recognizes a trailer line, tolerating markdown emphasis and list
// bullets around the key.
func trailer(line string) (key, value string, ok bool) {
	s := strings.TrimSpace(line)
	s = strings.TrimLeft(s, "-*> ")
	s = strings.TrimPrefix(s, "**")
	for _, k := range trailerKeys {
		if hasPrefixFold(s, k) {
			v := strings.TrimSpace(s[len(k):])
			v = strings.Trim(v, "*` ")
			return k, v, true
		}
		// **KEY**: value
		bare := strings.TrimSuffix(k, ":")
		if hasPrefixFold(s, bare+"**:") {
			v := strings.TrimSpace(s[len(bare)+3:])
			return k, strings.Trim(v, "*` "), true
		}
	}
	return "", "", false
}

// hasPrefixFold is a case-insensitive HasPrefix that compares s byte for
// byte against the ASCII key, so the key length is a valid offset into s.
func hasPrefixFold(s, key string) bool {
	return len(s) >= len(key) && strings.EqualFold(s[:len(key)], key)
}

func isNone(v string) bool {
	switch strings.ToLower(v) {
	case "none", "no", "false", "n/a":
		return true
	}
	return false
}

// parseConfidence accepts 0.85, .85 or 85%.
func parseConfidence(v string) (float64, bool) {
	pct := strings.HasSuffix(v, "%")
	v = strings.TrimSuffix(v, "%")
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	if pct {
		f /= 100
	}
	if f < 0 || f > 1 {
		return 0, false
	}
	return f, true
}
