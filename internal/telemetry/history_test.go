// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestHistory(t *testing.T) *History {
	t.Helper()
	h, err := OpenHistory(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func TestHistorySaveAndGet(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()

	rec := &RunRecord{
		Strategy:   "auto",
		Items:      2,
		Actual:     21,
		Baseline:   40,
		SavingsPct: 0.475,
		Critical:   1,
		Report:     json.RawMessage(`{"total_items":2}`),
	}
	require.NoError(t, h.Save(ctx, rec))
	require.NotEmpty(t, rec.ID)

	got, err := h.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "auto", got.Strategy)
	assert.Equal(t, 21.0, got.Actual)
	assert.Equal(t, 1, got.Critical)
	assert.JSONEq(t, `{"total_items":2}`, string(got.Report))

	_, err = h.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestHistoryListNewestFirst(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, h.Save(ctx, &RunRecord{
			ID:        NewRunID(),
			StartedAt: base.Add(time.Duration(i) * time.Hour),
			Strategy:  "auto",
			Items:     i + 1,
		}))
	}

	runs, err := h.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 3, runs[0].Items)
	assert.Equal(t, 2, runs[1].Items)
	assert.Empty(t, runs[0].Report)
}

func TestHistoryTrends(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

	save := func(at time.Time, actual, baseline float64) {
		require.NoError(t, h.Save(ctx, &RunRecord{StartedAt: at, Strategy: "auto", Items: 1, Actual: actual, Baseline: baseline}))
	}
	save(now.Add(-1*time.Hour), 5, 20)
	save(now.Add(-2*time.Hour), 1, 20)
	save(now.AddDate(0, 0, -2), 20, 20)
	save(now.AddDate(0, 0, -30), 100, 100) // outside window

	trends, err := h.Trends(ctx, 7, now)
	require.NoError(t, err)
	assert.Equal(t, 3, trends.Runs)
	assert.Equal(t, 26.0, trends.TotalCost)
	assert.Equal(t, 60.0, trends.TotalBaseline)
	assert.Equal(t, 34.0, trends.TotalSaved)
	require.Len(t, trends.DailyBreakdown, 2)
	assert.Equal(t, "2026-03-08", trends.DailyBreakdown[0].Date)
	assert.Equal(t, "2026-03-10", trends.DailyBreakdown[1].Date)
	assert.Equal(t, 2, trends.DailyBreakdown[1].Runs)
}

func TestHistoryInMemory(t *testing.T) {
	h, err := OpenHistory(":memory:")
	require.NoError(t, err)
	defer h.Close()
	require.NoError(t, h.Save(context.Background(), &RunRecord{Strategy: "premium"}))
	runs, err := h.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
