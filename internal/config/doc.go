// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and manages the tierguard configuration.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - RoutingConfig: strategy, tier cap and complexity thresholds
//   - TiersConfig: which backend and model serve each tier
//   - RunConfig: worker pool and per-call limits
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (TIERGUARD_*, OPENROUTER_API_KEY, OLLAMA_HOST)
//   - an explicit --config file, or ~/.tierguard/config.toml, or ~/.tierguard/config.json
//   - Built-in defaults
//
// A .env file in the working directory is read into the environment first,
// so secrets can stay out of the config file.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	runCfg, err := cfg.RunConfig()
package config
