// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command implementation for tierguard.
//
// Command: config [subcommand]
// Short:   View and modify configuration
// Aliases: cfg
//
// Subcommands:
//   show (default)      Display the effective configuration
//   get <key>           Print one value
//   set <key> <value>   Set a value in the config file
//   init [--force]      Write a default config file
//   reset               Overwrite the config file with defaults
//   path                Show the config file path
//
// Examples:
//   tierguard config
//   tierguard config get routing.strategy
//   tierguard config set routing.max_tier capable
//   tierguard config set escalation.policy 'response.critical > 0'
//   tierguard --config ./tierguard.toml config init
//
// Flags:
//   --json              Output in JSON format
package cli

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/tierguard/internal/config"
)

// ConfigValueData is returned by config get and config set.
type ConfigValueData struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
	Path  string `json:"path,omitempty"`
}

// HandleConfig handles the "config" command.
func (a *App) HandleConfig(args Args) error {
	p := NewArgParser(args.Raw, "force")

	switch sub := p.Subcommand(); sub {
	case "", "show":
		return a.handleConfigShow(args)
	case "get":
		return a.handleConfigGet(args, p.Positional(1))
	case "set":
		return a.handleConfigSet(args, p.Positional(1), strings.Join(p.PositionalFrom(2), " "))
	case "init":
		return a.handleConfigInit(args, p.BoolFlag("force"))
	case "reset":
		return a.handleConfigInit(args, true)
	case "path":
		return a.handleConfigPath(args)
	default:
		return ErrInvalidValue("config subcommand", sub, "expected show, get, set, init, reset or path")
	}
}

// handleConfigShow displays the effective configuration with the key masked.
func (a *App) handleConfigShow(args Args) error {
	cfg, err := a.loadConfig(args)
	if err != nil {
		return err
	}
	safe := cfg.Redacted()
	if cfg.Cloud.OpenRouterKey != "" {
		safe.Cloud.OpenRouterKey = maskAPIKey(cfg.Cloud.OpenRouterKey)
	}
	if args.JSON {
		return NewJSONResponse("config show", safe, a.Now()).Print(a.Stdout)
	}

	w := a.Stdout
	st := a.styles(w, cfg.Output.Color)
	fmt.Fprintln(w, st.Title.Render("tierguard Configuration"))
	fmt.Fprintln(w, st.RenderSeparator(41))

	section := ""
	for _, key := range config.GetAllKeys() {
		head, field, ok := strings.Cut(key, ".")
		if !ok {
			head, field = "general", key
		}
		if head != section {
			section = head
			fmt.Fprintln(w, st.Section.Render("["+section+"]"))
		}
		v, err := safe.Get(key)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %s\n", st.RenderField(field+":", formatValue(v)))
	}

	fmt.Fprintln(w)
	path, _ := a.editPath(args)
	fmt.Fprintln(w, st.RenderField("Config file:", path))
	return nil
}

// handleConfigGet prints one value. The API key is always masked.
func (a *App) handleConfigGet(args Args, key string) error {
	if key == "" {
		return ErrMissingArgument("key", "tierguard config get routing.strategy")
	}
	cfg, err := a.loadConfig(args)
	if err != nil {
		return err
	}
	v, err := cfg.Get(key)
	if err != nil {
		return ErrInvalidValue("key", key, err.Error())
	}
	if s, ok := v.(string); ok {
		v = maskIfSecret(key, s)
	}
	if args.JSON {
		return NewJSONResponse("config get", ConfigValueData{Key: key, Value: v}, a.Now()).Print(a.Stdout)
	}
	fmt.Fprintln(a.Stdout, formatValue(v))
	return nil
}

// handleConfigSet writes one value to the config file. Environment
// overrides are not applied, so they never leak into the file.
func (a *App) handleConfigSet(args Args, key, value string) error {
	if key == "" {
		return ErrMissingArgument("key", "tierguard config set <key> <value>")
	}
	if value == "" {
		return ErrMissingArgument("value", fmt.Sprintf("tierguard config set %s <value>", key))
	}

	path, err := a.editPath(args)
	if err != nil {
		return err
	}
	cfg, err := loadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %w", errConfigLoad, err)
	}
	if err := cfg.Set(key, value); err != nil {
		return ErrInvalidValue("key", key, err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := saveFile(cfg, path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	shown := maskIfSecret(key, value)
	if args.JSON {
		return NewJSONResponse("config set", ConfigValueData{Key: key, Value: shown, Path: path}, a.Now()).Print(a.Stdout)
	}
	st := a.styles(a.Stdout, "")
	fmt.Fprintf(a.Stdout, "%s %s = %s\n", st.Success.Render("[OK]"), key, shown)
	return nil
}

// handleConfigInit writes the default configuration. An existing file is
// kept unless force is set.
func (a *App) handleConfigInit(args Args, force bool) error {
	path, err := a.editPath(args)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !force {
		return NewCommandError("config", "init", fmt.Errorf("%s already exists (use --force to overwrite)", path))
	}
	if err := saveFile(config.Default(), path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	if args.JSON {
		return NewJSONResponse("config init", ConfigPathData{Path: path, Exists: true}, a.Now()).Print(a.Stdout)
	}
	st := a.styles(a.Stdout, "")
	fmt.Fprintf(a.Stdout, "%s Wrote default configuration to %s\n", st.Success.Render("[OK]"), path)
	return nil
}

// handleConfigPath shows the config file path.
func (a *App) handleConfigPath(args Args) error {
	path, err := a.editPath(args)
	if err != nil {
		return err
	}
	_, statErr := os.Stat(path)
	exists := statErr == nil
	if args.JSON {
		return NewJSONResponse("config path", ConfigPathData{Path: path, Exists: exists}, a.Now()).Print(a.Stdout)
	}
	fmt.Fprintln(a.Stdout, path)
	if !exists {
		fmt.Fprintln(a.Stderr, "Note: file does not exist yet (tierguard config init creates it)")
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// editPath returns the file config commands read and write: --config, then
// ./tierguard.toml when present, then the home TOML file.
func (a *App) editPath(args Args) (string, error) {
	if args.ConfigPath != "" {
		return args.ConfigPath, nil
	}
	local := filepath.Join(a.Dir, config.LocalConfigFile)
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}
	return config.ConfigPathTOML()
}

// loadFile decodes path over the defaults. A missing file yields defaults.
func loadFile(path string) (*config.Config, error) {
	cfg := config.Default()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if isJSONPath(path) {
		return cfg, config.LoadJSON(cfg, path)
	}
	return cfg, config.LoadTOML(cfg, path)
}

func saveFile(cfg *config.Config, path string) error {
	if isJSONPath(path) {
		return config.SaveJSON(cfg, path)
	}
	return config.SaveTOML(cfg, path)
}

func isJSONPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

func formatValue(v any) string {
	if s, ok := v.(string); ok && s == "" {
		return "(not set)"
	}
	return fmt.Sprint(v)
}

// maskAPIKey masks an API key for display using a SHA-256 fingerprint, so
// no prefix of the key is ever printed.
func maskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) < 8 {
		return "[invalid key]"
	}
	hash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("sha256:%x...", hash[:4])
}

// maskIfSecret masks the value if the key names a secret.
func maskIfSecret(key, value string) string {
	keyLower := strings.ToLower(key)
	for _, s := range []string{"key", "secret", "token", "password"} {
		if strings.Contains(keyLower, s) {
			return maskAPIKey(value)
		}
	}
	return value
}

