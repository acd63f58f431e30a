// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// ErrRunNotFound is returned by Get when no run has the given ID.
var ErrRunNotFound = errors.New("run not found")

const historySchema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  INTEGER NOT NULL,
	strategy    TEXT NOT NULL,
	items       INTEGER NOT NULL,
	actual      REAL NOT NULL,
	baseline    REAL NOT NULL,
	savings_pct REAL NOT NULL,
	critical    INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	report      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`

// =============================================================================
// RUN HISTORY
// =============================================================================

// RunRecord is one stored run.
type RunRecord struct {
	ID         string          `json:"id"`
	StartedAt  time.Time       `json:"started_at"`
	Strategy   string          `json:"strategy"`
	Items      int             `json:"items"`
	Actual     float64         `json:"actual_cost"`
	Baseline   float64         `json:"baseline_cost"`
	SavingsPct float64         `json:"savings_pct"`
	Critical   int             `json:"critical"`
	Failed     int             `json:"failed"`
	Report     json.RawMessage `json:"report,omitempty"`
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// History persists run records in SQLite.
type History struct {
	db *sql.DB
}

// DefaultHistoryPath returns ~/.tierguard/history.db.
func DefaultHistoryPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".tierguard", "history.db"), nil
}

// OpenHistory opens (creating if needed) the history database at path.
// Use ":memory:" for a throwaway store.
func OpenHistory(path string) (*History, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps :memory: shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{"PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL"}
	if path == ":memory:" {
		pragmas = pragmas[1:]
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &History{db: db}, nil
}

// Close releases the database.
func (h *History) Close() error {
	return h.db.Close()
}

// Save stores rec. An empty ID is filled with a new run ID.
func (h *History) Save(ctx context.Context, rec *RunRecord) error {
	if rec.ID == "" {
		rec.ID = NewRunID()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}
	report := string(rec.Report)
	if report == "" {
		report = "{}"
	}
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, strategy, items, actual, baseline, savings_pct, critical, failed, report)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.StartedAt.UnixNano(), rec.Strategy, rec.Items, rec.Actual, rec.Baseline,
		rec.SavingsPct, rec.Critical, rec.Failed, report,
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", rec.ID, err)
	}
	return nil
}

// List returns up to limit runs, newest first. The report body is omitted.
func (h *History) List(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, started_at, strategy, items, actual, baseline, savings_pct, critical, failed
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var started int64
		if err := rows.Scan(&rec.ID, &started, &rec.Strategy, &rec.Items, &rec.Actual,
			&rec.Baseline, &rec.SavingsPct, &rec.Critical, &rec.Failed); err != nil {
			return nil, err
		}
		rec.StartedAt = time.Unix(0, started)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Get returns one run including its report.
func (h *History) Get(ctx context.Context, id string) (*RunRecord, error) {
	var rec RunRecord
	var started int64
	var report string
	err := h.db.QueryRowContext(ctx,
		`SELECT id, started_at, strategy, items, actual, baseline, savings_pct, critical, failed, report
		 FROM runs WHERE id = ?`, id).
		Scan(&rec.ID, &started, &rec.Strategy, &rec.Items, &rec.Actual, &rec.Baseline,
			&rec.SavingsPct, &rec.Critical, &rec.Failed, &report)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	rec.StartedAt = time.Unix(0, started)
	rec.Report = json.RawMessage(report)
	return &rec, nil
}

// =============================================================================
// TRENDS
// =============================================================================

// CostTrends aggregates stored runs over a window of days.
type CostTrends struct {
	Days           int         `json:"days"`
	Runs           int         `json:"runs"`
	TotalCost      float64     `json:"total_cost"`
	TotalBaseline  float64     `json:"total_baseline"`
	TotalSaved     float64     `json:"total_saved"`
	SavingsPct     float64     `json:"savings_pct"`
	DailyBreakdown []DailyCost `json:"daily_breakdown"`
}

// DailyCost is one day of the trend window.
type DailyCost struct {
	Date     string  `json:"date"`
	Cost     float64 `json:"cost"`
	Saved    float64 `json:"saved"`
	Runs     int     `json:"runs"`
	Items    int     `json:"items"`
	Critical int     `json:"critical"`
}

// Trends returns the daily breakdown of runs started within days of now.
func (h *History) Trends(ctx context.Context, days int, now time.Time) (*CostTrends, error) {
	if days <= 0 {
		days = 7
	}
	from := now.AddDate(0, 0, -days)

	rows, err := h.db.QueryContext(ctx,
		`SELECT started_at, items, actual, baseline, critical FROM runs
		 WHERE started_at >= ? AND started_at <= ?`, from.UnixNano(), now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to query trends: %w", err)
	}
	defer rows.Close()

	trends := &CostTrends{Days: days, DailyBreakdown: make([]DailyCost, 0)}
	daily := make(map[string]*DailyCost)
	for rows.Next() {
		var started int64
		var items, critical int
		var actual, baseline float64
		if err := rows.Scan(&started, &items, &actual, &baseline, &critical); err != nil {
			return nil, err
		}
		key := time.Unix(0, started).UTC().Format("2006-01-02")
		d, ok := daily[key]
		if !ok {
			d = &DailyCost{Date: key}
			daily[key] = d
		}
		d.Cost += actual
		d.Saved += baseline - actual
		d.Runs++
		d.Items += items
		d.Critical += critical

		trends.Runs++
		trends.TotalCost += actual
		trends.TotalBaseline += baseline
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	trends.TotalSaved = trends.TotalBaseline - trends.TotalCost
	trends.SavingsPct = SavingsPct(trends.TotalCost, trends.TotalBaseline)
	for _, d := range daily {
		trends.DailyBreakdown = append(trends.DailyBreakdown, *d)
	}
	sort.Slice(trends.DailyBreakdown, func(i, j int) bool {
		return trends.DailyBreakdown[i].Date < trends.DailyBreakdown[j].Date
	})
	return trends, nil
}
