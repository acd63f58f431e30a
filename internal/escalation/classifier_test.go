// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package escalation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/tierguard/internal/model"
)

func input(tier model.Tier, resp model.Response) Input {
	return Input{Item: model.Item{ID: "x", Hint: "Security"}, Tier: tier, Response: resp}
}

func TestMarkerClassifier(t *testing.T) {
	m := MarkerClassifier{MinConfidence: 0.6, EscalateOnCritical: true}
	tests := []struct {
		name string
		tier model.Tier
		resp model.Response
		want bool
	}{
		{"clean", model.TierCheap, model.Response{Confidence: model.ConfidenceUnknown}, false},
		{"marker", model.TierCheap, model.Response{EscalationMarker: "complex", Confidence: model.ConfidenceUnknown}, true},
		{"low confidence", model.TierCapable, model.Response{Confidence: 0.3}, true},
		{"enough confidence", model.TierCapable, model.Response{Confidence: 0.9}, false},
		{"critical below premium", model.TierCapable, model.Response{Critical: 2, Confidence: model.ConfidenceUnknown}, true},
		{"critical at premium", model.TierPremium, model.Response{Critical: 2, Confidence: model.ConfidenceUnknown}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := m.Classify(context.Background(), input(tt.tier, tt.resp))
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.Escalate)
			if tt.want {
				assert.NotEmpty(t, v.Reason)
				assert.Equal(t, model.OutcomeEscalate, v.Outcome())
			} else {
				assert.Equal(t, model.OutcomeAccepted, v.Outcome())
			}
		})
	}
}

func TestMarkerClassifierCriticalDisabled(t *testing.T) {
	v, err := MarkerClassifier{}.Classify(context.Background(),
		input(model.TierCheap, model.Response{Critical: 3, Confidence: model.ConfidenceUnknown}))
	require.NoError(t, err)
	assert.False(t, v.Escalate)
}

func TestChain(t *testing.T) {
	accept := ClassifierFunc(func(context.Context, Input) (Verdict, error) { return Accept(), nil })
	up := ClassifierFunc(func(context.Context, Input) (Verdict, error) { return Escalate("second"), nil })
	boom := ClassifierFunc(func(context.Context, Input) (Verdict, error) { return Verdict{}, errors.New("boom") })

	v, err := Chain(accept, nil, up).Classify(context.Background(), Input{})
	require.NoError(t, err)
	assert.True(t, v.Escalate)
	assert.Equal(t, "second", v.Reason)

	v, err = Chain(accept).Classify(context.Background(), Input{})
	require.NoError(t, err)
	assert.False(t, v.Escalate)

	_, err = Chain(accept, boom, up).Classify(context.Background(), Input{})
	assert.Error(t, err)
}

// ============================================================================
// CEL
// ============================================================================

func TestCELClassifier(t *testing.T) {
	c, err := NewCELClassifier(`response.critical > 0 && tier != "premium"`)
	require.NoError(t, err)

	v, err := c.Classify(context.Background(), input(model.TierCheap, model.Response{Critical: 1}))
	require.NoError(t, err)
	assert.True(t, v.Escalate)
	assert.Contains(t, v.Reason, "response.critical")

	v, err = c.Classify(context.Background(), input(model.TierPremium, model.Response{Critical: 1}))
	require.NoError(t, err)
	assert.False(t, v.Escalate)
}

func TestCELClassifierSeesSeverityCounts(t *testing.T) {
	c, err := NewCELClassifier(`response.warning + response.info > 3`)
	require.NoError(t, err)

	v, err := c.Classify(context.Background(), input(model.TierCheap, model.Response{Warning: 2, Info: 2}))
	require.NoError(t, err)
	assert.True(t, v.Escalate)

	v, err = c.Classify(context.Background(), input(model.TierCheap, model.Response{Warning: 1}))
	require.NoError(t, err)
	assert.False(t, v.Escalate)
}

func TestCELClassifierSeesItemAndSignal(t *testing.T) {
	c, err := NewCELClassifier(`item.hint == "security" && signal.score < 0.5`)
	require.NoError(t, err)

	in := input(model.TierCheap, model.Response{})
	in.Signal = model.Signal{Score: 0.3}
	v, err := c.Classify(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, v.Escalate)
}

func TestCELClassifierConfidence(t *testing.T) {
	c, err := NewCELClassifier(`response.confidence >= 0.0 && response.confidence < 0.5`)
	require.NoError(t, err)

	v, err := c.Classify(context.Background(), input(model.TierCheap, model.Response{Confidence: 0.2}))
	require.NoError(t, err)
	assert.True(t, v.Escalate)

	v, err = c.Classify(context.Background(), input(model.TierCheap, model.Response{Confidence: model.ConfidenceUnknown}))
	require.NoError(t, err)
	assert.False(t, v.Escalate)
}

func TestCELClassifierRejectsBadExpressions(t *testing.T) {
	_, err := NewCELClassifier(`response.critical >`)
	assert.Error(t, err)

	_, err = NewCELClassifier(`"not a bool"`)
	assert.Error(t, err)

	_, err = NewCELClassifier(`unknown_var == 1`)
	assert.Error(t, err)
}

func TestCELClassifierConcurrent(t *testing.T) {
	c, err := NewCELClassifier(`response.marker != ""`)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp := model.Response{}
			if i%2 == 0 {
				resp.EscalationMarker = "x"
			}
			v, err := c.Classify(context.Background(), input(model.TierCheap, resp))
			assert.NoError(t, err)
			assert.Equal(t, i%2 == 0, v.Escalate)
		}(i)
	}
	wg.Wait()
}
