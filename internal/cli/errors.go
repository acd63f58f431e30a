// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Unified error handling for all tierguard commands.
//
// Handlers return errors; Run decides how to display them and which exit
// code to use.

package cli

import (
	"errors"
	"fmt"

	"github.com/jeranaias/tierguard/internal/config"
	"github.com/jeranaias/tierguard/internal/review"
	"github.com/jeranaias/tierguard/internal/telemetry"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitFailure indicates a failed run or critical findings under --fail-on-critical
	ExitFailure = 1
	// ExitConfigError indicates invalid configuration or command usage
	ExitConfigError = 2
)

// =============================================================================
// ERROR TYPES FOR STRUCTURED ERROR HANDLING
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // Command that failed (e.g., "review", "history")
	Action  string // Action being performed (e.g., "load items", "save")
	Err     error  // Underlying error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Command, e.Action, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError represents a validation failure for user input.
type ValidationError struct {
	Field   string // Field that failed validation
	Value   string // Value that was provided
	Reason  string // Why validation failed
	Example string // Example of valid value (optional)
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// CriticalFindingsError is returned by review when --fail-on-critical is
// set and the run reported critical findings.
type CriticalFindingsError struct {
	Count int
}

func (e *CriticalFindingsError) Error() string {
	return fmt.Sprintf("Found %d critical issues. Set fail_on_critical to false to ignore.", e.Count)
}

// =============================================================================
// ERROR CONSTRUCTION HELPERS
// =============================================================================

// NewCommandError creates a new command error.
func NewCommandError(command, action string, err error) error {
	return &CommandError{Command: command, Action: action, Err: err}
}

// ErrMissingArgument creates an error for missing required arguments.
func ErrMissingArgument(argName, usage string) error {
	return &ValidationError{Field: argName, Reason: "required argument missing", Example: usage}
}

// ErrInvalidValue creates an error for a malformed flag or argument.
func ErrInvalidValue(field, value, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// GetExitCode determines the exit code for an error.
//   - ExitConfigError (2): usage errors and invalid configuration
//   - ExitFailure (1): everything else, including critical findings
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return ExitConfigError
	}
	var configErrs config.ValidateErrors
	if errors.As(err, &configErrs) {
		return ExitConfigError
	}
	var runConfigErr *review.ConfigError
	if errors.As(err, &runConfigErr) {
		return ExitConfigError
	}
	if errors.Is(err, errConfigLoad) {
		return ExitConfigError
	}
	return ExitFailure
}

// errConfigLoad marks failures to read or decode the config file.
var errConfigLoad = errors.New("config")

// IsNotFound reports whether err is a missing history record.
func IsNotFound(err error) bool {
	return errors.Is(err, telemetry.ErrRunNotFound)
}
