// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// BACKEND RESPONSE
// =============================================================================

// ConfidenceUnknown marks a response that did not report a confidence.
const ConfidenceUnknown = -1.0

// Response is what a generation backend returns for one call.
type Response struct {
	// Content is the review text.
	Content string

	// EscalationMarker is non-empty when the backend asked for a stronger tier.
	// The value is the stated reason.
	EscalationMarker string

	// Confidence is the self-reported confidence in [0,1], or ConfidenceUnknown.
	Confidence float64

	// Critical, Warning and Info are the finding counts reported by severity.
	Critical int
	Warning  int
	Info     int

	// Model is the concrete model that served the call, if known.
	Model string
}

// =============================================================================
// ATTEMPT AND RESULT
// =============================================================================

// Attempt records one tier visited for an item.
// Transient retries on the same tier are folded into Retries; an item never
// has two attempts at the same tier.
type Attempt struct {
	Seq     int     `json:"seq"`
	Tier    Tier    `json:"tier"`
	Cost    float64 `json:"cost"`
	Outcome Outcome `json:"outcome"`
	Retries int     `json:"retries,omitempty"`
	Reason  string  `json:"reason,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// Result is the final state of one item after the controller is done with it.
type Result struct {
	ItemID  string  `json:"id"`
	Outcome Outcome `json:"outcome"`

	// Tier is the tier that produced the accepted content. Nil when failed.
	Tier *Tier `json:"tier"`

	Content  string `json:"content,omitempty"`
	Critical int    `json:"critical"`
	Warning  int    `json:"warning"`
	Info     int    `json:"info"`

	// Exhausted is set when the last response still asked to escalate but no
	// higher tier was allowed.
	Exhausted bool `json:"exhausted,omitempty"`

	Attempts []Attempt `json:"attempts"`
	Signal   Signal    `json:"signal"`
	Error    string    `json:"error,omitempty"`
}

// Cost returns the summed cost of every attempt.
func (r Result) Cost() float64 {
	var total float64
	for _, a := range r.Attempts {
		total += a.Cost
	}
	return total
}

// TierPath returns the tiers visited in order.
func (r Result) TierPath() []Tier {
	path := make([]Tier, len(r.Attempts))
	for i, a := range r.Attempts {
		path[i] = a.Tier
	}
	return path
}
