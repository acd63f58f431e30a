// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"

	"github.com/jeranaias/tierguard/internal/review"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports reports as indented JSON. Map keys are sorted by the
// encoder and the report holds no wall-clock data, so identical reports
// export byte for byte the same.
type JSONExporter struct{}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter() *JSONExporter {
	return &JSONExporter{}
}

// Export converts a report to JSON format.
func (e *JSONExporter) Export(rep *review.Report) ([]byte, error) {
	if rep == nil {
		return nil, ErrNilReport
	}
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
