// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and command dispatch for tierguard.
package cli

import (
	"fmt"
	"io"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdHelp Command = iota
	CmdReview
	CmdReleasePrep
	CmdEstimate
	CmdConfig
	CmdHistory
	CmdDoctor
	CmdVersion
	CmdUnknown
)

// String returns the command name used in JSON envelopes and errors.
func (c Command) String() string {
	switch c {
	case CmdReview:
		return "review"
	case CmdReleasePrep:
		return "release-prep"
	case CmdEstimate:
		return "estimate"
	case CmdConfig:
		return "config"
	case CmdHistory:
		return "history"
	case CmdDoctor:
		return "doctor"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet      bool
	Verbose    bool
	JSON       bool   // Output in JSON format
	ConfigPath string // --config FILE

	// Name is the command word as typed, kept for unknown-command errors.
	Name string

	// Raw args (remaining after global flag parsing)
	Raw []string
}

const usageText = `tierguard - cost-aware tier routing for code review

tierguard estimates the complexity of each change, sends it to the cheapest
model tier that can handle it, escalates when the answer asks for more, and
reports what the run cost against an all-premium baseline.

Usage:
  tierguard review [flags]           Review items and write report artifacts
  tierguard release-prep [flags]     Run release gates over changes since a tag
  tierguard estimate [flags]         Show each item's score and starting tier
  tierguard config [show|get|set|init|reset|path]
                                     View and modify configuration
  tierguard history [list|show|trends]
                                     Past runs from the history database
  tierguard doctor                   Check backends, models and history
  tierguard version                  Show version information
  tierguard help                     Show this help

Item sources (review, estimate):
  --items FILE          YAML or JSON manifest of {id, hint, path, content}
  --diff FILE           Unified diff, one item per file ("-" reads stdin)
  --git REV             Diff the working tree against REV (default HEAD~1)

Review flags:
  --strategy S          auto, cheap, capable or premium
  --max-tier T          Never route or escalate above T
  --concurrency N       Items reviewed in parallel
  --policy EXPR         CEL expression; true escalates the response
  --out DIR             Artifact directory (review-report.json, .md, summary.md)
  --html                Also write review-report.html
  --fail-on-critical[=false]
                        Exit 1 when any critical finding is reported (default
                        true; output.fail_on_critical)
  --dry-run             Do not call any backend; preview routing and cost
  --no-history          Do not record the run
  --show-reviews        Print each review after the summary

Release prep flags (plus the review routing flags):
  --since REV           Measure from REV (default: latest tag, else all history)
  --coverage FILE       Go coverage profile for the test coverage gate
  --min-coverage PCT    Coverage needed to pass, in percent (default 80)

Global flags:
  --config FILE         Use this config file
  --json                Machine-readable output on stdout
  -q, --quiet           Only warnings and errors on stderr
  -v, --verbose         Debug logging on stderr

Exit codes:
  0  success
  1  run failed, or critical findings unless --fail-on-critical=false
  2  configuration or usage error

Version: %s
`

// PrintUsage prints the usage text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "tierguard version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
}

// Parse parses command-line arguments (without the program name) and
// returns the command and args.
func Parse(argv []string) (Command, Args) {
	remaining, parsedArgs := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdHelp, parsedArgs
	}

	cmd := strings.ToLower(remaining[0])
	parsedArgs.Name = cmd
	parsedArgs.Raw = remaining[1:]

	switch cmd {
	case "review", "run", "r":
		return CmdReview, parsedArgs
	case "release-prep", "release":
		return CmdReleasePrep, parsedArgs
	case "estimate", "est":
		return CmdEstimate, parsedArgs
	case "config", "cfg":
		return CmdConfig, parsedArgs
	case "history", "hist":
		return CmdHistory, parsedArgs
	case "doctor", "diag":
		return CmdDoctor, parsedArgs
	case "version", "--version":
		return CmdVersion, parsedArgs
	case "help", "-h", "--help":
		return CmdHelp, parsedArgs
	default:
		return CmdUnknown, parsedArgs
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsedArgs Args

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-q", "--quiet":
			parsedArgs.Quiet = true
		case "-v", "--verbose":
			parsedArgs.Verbose = true
		case "--json":
			parsedArgs.JSON = true
		case "--config", "-c":
			if i+1 < len(args) {
				i++
				parsedArgs.ConfigPath = args[i]
			}
		default:
			if strings.HasPrefix(arg, "--config=") {
				parsedArgs.ConfigPath = strings.TrimPrefix(arg, "--config=")
			} else {
				remaining = append(remaining, arg)
			}
		}
	}

	return remaining, parsedArgs
}
