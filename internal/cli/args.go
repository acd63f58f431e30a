// args.go - Argument parsing shared by the tierguard commands.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// ARG PARSER
// =============================================================================

// ArgParser splits command arguments into flags and positionals.
//
//	--flag value     value flag
//	--flag=value     value flag, or a bool when value is true/false
//	-f value         short value flag
//	--flag           bool flag
//	--               end of flags; the rest is positional
//	-                positional (stdin)
//
// Flags in the parser's bool set never take the next argument, so
// "--dry-run extra" keeps "extra" positional. The first positional is the
// subcommand.
type ArgParser struct {
	values     map[string]string
	bools      map[string]bool
	boolNames  map[string]bool
	positional []string
}

// NewArgParser parses raw. boolNames lists flags that never take a value.
//
// Example:
//
//	p := NewArgParser([]string{"trends", "--days", "7", "--html"}, "html")
//	p.Subcommand()      // "trends"
//	p.Flag("days")      // "7"
//	p.BoolFlag("html")  // true
func NewArgParser(raw []string, boolNames ...string) *ArgParser {
	p := &ArgParser{
		values:     make(map[string]string),
		bools:      make(map[string]bool),
		boolNames:  make(map[string]bool, len(boolNames)),
		positional: []string{},
	}
	for _, name := range boolNames {
		p.boolNames[flagName(name)] = true
	}
	p.parse(raw)
	return p
}

func (p *ArgParser) parse(raw []string) {
	for i := 0; i < len(raw); i++ {
		arg := raw[i]
		switch {
		case arg == "--":
			p.positional = append(p.positional, raw[i+1:]...)
			return

		case !isFlag(arg):
			p.positional = append(p.positional, arg)

		case strings.Contains(arg, "="):
			name, value, _ := strings.Cut(arg, "=")
			name = flagName(name)
			if b, err := ParseBoolString(value); err == nil && (p.boolNames[name] || value == "true" || value == "false") {
				p.bools[name] = b
			} else {
				p.values[name] = value
			}

		default:
			name := flagName(arg)
			if !p.boolNames[name] && i+1 < len(raw) && !isFlag(raw[i+1]) {
				p.values[name] = raw[i+1]
				i++
			} else {
				p.bools[name] = true
			}
		}
	}
}

func flagName(s string) string {
	return strings.TrimLeft(s, "-")
}

// isFlag reports whether arg looks like a flag. "-" alone is a value.
func isFlag(arg string) bool {
	return strings.HasPrefix(arg, "-") && arg != "-"
}

// Subcommand returns the first positional argument, or "".
func (p *ArgParser) Subcommand() string {
	return p.Positional(0)
}

// Flag returns a value flag, or "" when absent.
func (p *ArgParser) Flag(name string) string {
	return p.values[flagName(name)]
}

// FlagOrDefault returns the flag value or def when absent or empty.
func (p *ArgParser) FlagOrDefault(name, def string) string {
	if v := p.Flag(name); v != "" {
		return v
	}
	return def
}

// FlagInt returns a value flag as an integer.
func (p *ArgParser) FlagInt(name string) (int, error) {
	v := p.Flag(name)
	if v == "" {
		return 0, fmt.Errorf("flag %s not found", name)
	}
	return strconv.Atoi(v)
}

// BoolFlag returns a bool flag, false when absent.
func (p *ArgParser) BoolFlag(name string) bool {
	return p.bools[flagName(name)]
}

// Positional returns the positional at index, or "". Index 0 is the subcommand.
func (p *ArgParser) Positional(index int) string {
	if index < 0 || index >= len(p.positional) {
		return ""
	}
	return p.positional[index]
}

// PositionalFrom returns the positionals from index on.
func (p *ArgParser) PositionalFrom(index int) []string {
	if index < 0 || index >= len(p.positional) {
		return []string{}
	}
	return p.positional[index:]
}

// PositionalCount returns the number of positional arguments.
func (p *ArgParser) PositionalCount() int {
	return len(p.positional)
}

// HasFlag reports whether the flag was given, as a value or a bool.
func (p *ArgParser) HasFlag(name string) bool {
	name = flagName(name)
	_, hasValue := p.values[name]
	_, hasBool := p.bools[name]
	return hasValue || hasBool
}

// ParseBoolString parses true/false, yes/no, y/n, 1/0 and on/off,
// case-insensitively.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1", "on":
		return true, nil
	case "false", "no", "n", "0", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value: %s", s)
	}
}
