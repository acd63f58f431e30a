// json_output.go - JSON output envelope for CI and scripting.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jeranaias/tierguard/internal/export"
	"github.com/jeranaias/tierguard/internal/model"
	"github.com/jeranaias/tierguard/internal/release"
	"github.com/jeranaias/tierguard/internal/review"
	"github.com/jeranaias/tierguard/internal/router"
	"github.com/jeranaias/tierguard/internal/telemetry"
)

// JSONResponse is the standardized response format for all CLI commands.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data any `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// Timestamp is the ISO8601 timestamp when the response was generated
	Timestamp string `json:"timestamp"`

	// Command is the command that was executed
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data any, now time.Time) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: now.UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a new error JSON response. data may carry a
// partial result, such as a report whose run reported critical findings.
func NewJSONErrorResponse(command string, err error, data any, now time.Time) *JSONResponse {
	errStr := err.Error()
	return &JSONResponse{
		Success:   false,
		Data:      data,
		Error:     &errStr,
		Timestamp: now.UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print writes the indented JSON response to w.
func (r *JSONResponse) Print(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// String returns the JSON response as a string.
func (r *JSONResponse) String() string {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":"failed to marshal response: %s","timestamp":"%s"}`,
			err.Error(), r.Timestamp)
	}
	return string(data)
}

// =============================================================================
// COMMAND-SPECIFIC DATA STRUCTURES
// =============================================================================

// ReviewData is returned by the review command.
type ReviewData struct {
	RunID      string            `json:"run_id,omitempty"`
	DryRun     bool              `json:"dry_run,omitempty"`
	DurationMs int64             `json:"duration_ms"`
	Report     *review.Report    `json:"report"`
	Artifacts  *export.Artifacts `json:"artifacts,omitempty"`
	Summary    string            `json:"summary"`
}

// ReleaseData is returned by the release-prep command.
type ReleaseData struct {
	DryRun     bool              `json:"dry_run,omitempty"`
	DurationMs int64             `json:"duration_ms"`
	Outcome    *release.Outcome  `json:"outcome"`
	Artifacts  *export.Artifacts `json:"artifacts,omitempty"`
	Summary    string            `json:"summary"`
}

// EstimateData is returned by the estimate command.
type EstimateData struct {
	Strategy   router.Strategy   `json:"strategy"`
	Items      []EstimateItem    `json:"items"`
	Projection router.Projection `json:"projection"`
	SavingsPct float64           `json:"savings_pct"`
}

// EstimateItem is one item's signal and starting tier.
type EstimateItem struct {
	ID      string        `json:"id"`
	Score   float64       `json:"score"`
	Level   model.Level   `json:"level"`
	Tier    model.Tier    `json:"tier"`
	Factors model.Factors `json:"factors"`
}

// HistoryListData is returned by history list.
type HistoryListData struct {
	Runs []telemetry.RunRecord `json:"runs"`
}

// VersionData represents the data returned by the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version,omitempty"`
}

// ConfigPathData is returned by config path.
type ConfigPathData struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
}
