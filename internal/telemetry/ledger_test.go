// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/tierguard/internal/model"
	"github.com/jeranaias/tierguard/internal/router"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := NewLedger(router.DefaultCostTable())
	require.NoError(t, err)
	return l
}

func TestLedgerScenarioAuto(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.Charge("a", 1, model.TierCheap, model.OutcomeAccepted)
	require.NoError(t, err)
	_, err = l.Charge("b", 1, model.TierPremium, model.OutcomeAccepted)
	require.NoError(t, err)

	s := l.Snapshot()
	assert.Equal(t, 21.0, s.Actual)
	assert.Equal(t, 40.0, s.Baseline)
	assert.InDelta(t, 0.475, s.SavingsPct, 1e-9)
	assert.Equal(t, 2, s.Items)
	assert.Equal(t, 2, s.Attempts)
	assert.Equal(t, TierSpend{Calls: 1, Cost: 1}, s.ByTier[model.TierCheap])
}

func TestLedgerScenarioPremium(t *testing.T) {
	l := newTestLedger(t)
	for _, id := range []string{"a", "b"} {
		_, err := l.Charge(id, 1, model.TierPremium, model.OutcomeAccepted)
		require.NoError(t, err)
	}
	s := l.Snapshot()
	assert.Equal(t, s.Baseline, s.Actual)
	assert.Equal(t, 0.0, s.SavingsPct)
}

func TestLedgerBaselineOncePerItem(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.Charge("a", 1, model.TierCheap, model.OutcomeEscalate)
	require.NoError(t, err)
	_, err = l.Charge("a", 2, model.TierCapable, model.OutcomeEscalate)
	require.NoError(t, err)
	_, err = l.Charge("a", 3, model.TierPremium, model.OutcomeAccepted)
	require.NoError(t, err)

	s := l.Snapshot()
	assert.Equal(t, 26.0, s.Actual)
	assert.Equal(t, 20.0, s.Baseline)
	assert.Less(t, s.SavingsPct, 0.0, "visiting every tier costs more than one premium call")
	assert.LessOrEqual(t, s.SavingsPct, 1.0)
}

func TestLedgerRejectsDuplicate(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.Charge("a", 1, model.TierCheap, model.OutcomeFailed)
	require.NoError(t, err)

	_, err = l.Charge("a", 1, model.TierCheap, model.OutcomeFailed)
	assert.ErrorIs(t, err, ErrDuplicateCharge)

	s := l.Snapshot()
	assert.Equal(t, 1.0, s.Actual)
	assert.Equal(t, 1, s.Attempts)
	assert.Equal(t, 1, s.ByTier[model.TierCheap].Failed)
}

func TestLedgerUnknownTier(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.Charge("a", 1, model.Tier(7), model.OutcomeAccepted)
	assert.ErrorIs(t, err, ErrUnknownTier)
	assert.Equal(t, 0, l.Snapshot().Items)
}

func TestLedgerEmpty(t *testing.T) {
	s := newTestLedger(t).Snapshot()
	assert.Equal(t, 0.0, s.SavingsPct)
	assert.Equal(t, 0.0, s.Baseline)
}

func TestNewLedgerValidatesTable(t *testing.T) {
	_, err := NewLedger(router.CostTable{})
	assert.ErrorIs(t, err, router.ErrEmptyCostTable)

	// A free premium tier would make the baseline zero while actual spend grows.
	_, err = NewLedger(router.CostTable{model.TierCheap: 1, model.TierCapable: 5, model.TierPremium: 0})
	assert.ErrorIs(t, err, router.ErrUnorderedCosts)
}

func TestLedgerConcurrentCharges(t *testing.T) {
	l := newTestLedger(t)
	const workers = 16
	const perWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := fmt.Sprintf("w%d-%d", w, i)
				_, _ = l.Charge(id, 1, model.TierCheap, model.OutcomeAccepted)
				// every duplicate must be rejected
				_, _ = l.Charge(id, 1, model.TierCheap, model.OutcomeAccepted)
			}
		}(w)
	}
	wg.Wait()

	s := l.Snapshot()
	assert.Equal(t, workers*perWorker, s.Attempts)
	assert.Equal(t, float64(workers*perWorker), s.Actual)
	assert.Equal(t, float64(workers*perWorker*20), s.Baseline)
}

func TestSavingsPct(t *testing.T) {
	assert.Equal(t, 0.0, SavingsPct(0, 0))
	assert.Equal(t, 0.0, SavingsPct(5, 5))
	assert.Equal(t, 1.0, SavingsPct(0, 10))
	assert.InDelta(t, 0.5, SavingsPct(5, 10), 1e-9)
}
