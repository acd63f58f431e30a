// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package escalation

import (
	"context"
	"fmt"

	"github.com/jeranaias/tierguard/internal/model"
)

// =============================================================================
// CLASSIFIER
// =============================================================================

// Verdict is a classifier's judgement of one response: accept it, or ask for
// a stronger tier.
type Verdict struct {
	Escalate bool
	Reason   string
}

// Outcome maps the verdict onto an attempt outcome.
func (v Verdict) Outcome() model.Outcome {
	if v.Escalate {
		return model.OutcomeEscalate
	}
	return model.OutcomeAccepted
}

// Accept returns an accepting verdict.
func Accept() Verdict { return Verdict{} }

// Escalate returns an escalating verdict with a reason.
func Escalate(format string, args ...any) Verdict {
	return Verdict{Escalate: true, Reason: fmt.Sprintf(format, args...)}
}

// Input is everything a classifier may look at.
type Input struct {
	Item     model.Item
	Tier     model.Tier
	Signal   model.Signal
	Response model.Response
}

// Classifier judges a successful response.
// An error fails the attempt; it is not retried.
type Classifier interface {
	Classify(ctx context.Context, in Input) (Verdict, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, in Input) (Verdict, error)

// Classify calls f.
func (f ClassifierFunc) Classify(ctx context.Context, in Input) (Verdict, error) {
	return f(ctx, in)
}

// =============================================================================
// MARKER CLASSIFIER
// =============================================================================

// MarkerClassifier escalates on explicit backend signals:
//   - an escalation marker in the response
//   - a reported confidence below MinConfidence
//   - critical findings below the premium tier, when EscalateOnCritical is set
type MarkerClassifier struct {
	MinConfidence      float64
	EscalateOnCritical bool
}

// Classify implements Classifier.
func (m MarkerClassifier) Classify(_ context.Context, in Input) (Verdict, error) {
	r := in.Response
	if r.EscalationMarker != "" {
		return Escalate("backend requested escalation: %s", r.EscalationMarker), nil
	}
	if r.Confidence >= 0 && r.Confidence < m.MinConfidence {
		return Escalate("confidence %.2f below %.2f", r.Confidence, m.MinConfidence), nil
	}
	if m.EscalateOnCritical && r.Critical > 0 && in.Tier < model.TierPremium {
		return Escalate("%d critical findings at %s", r.Critical, in.Tier), nil
	}
	return Accept(), nil
}

// =============================================================================
// CHAIN
// =============================================================================

type chain []Classifier

// Chain combines classifiers: the first escalating verdict wins, and an error
// from any classifier is returned.
func Chain(classifiers ...Classifier) Classifier {
	var c chain
	for _, cl := range classifiers {
		if cl != nil {
			c = append(c, cl)
		}
	}
	return c
}

func (c chain) Classify(ctx context.Context, in Input) (Verdict, error) {
	for _, cl := range c {
		v, err := cl.Classify(ctx, in)
		if err != nil {
			return Verdict{}, err
		}
		if v.Escalate {
			return v, nil
		}
	}
	return Accept(), nil
}
