// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/tierguard/internal/escalation"
	"github.com/jeranaias/tierguard/internal/model"
	"github.com/jeranaias/tierguard/internal/provider"
	"github.com/jeranaias/tierguard/internal/review"
	"github.com/jeranaias/tierguard/internal/router"
	"github.com/jeranaias/tierguard/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete tierguard configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Routing configuration
	Routing RoutingConfig `toml:"routing" json:"routing"`

	// Estimator weights
	Weights router.Weights `toml:"weights" json:"weights"`

	// Unit cost per tier
	Costs CostsConfig `toml:"costs" json:"costs"`

	// Backend and model per tier
	Tiers TiersConfig `toml:"tiers" json:"tiers"`

	// Escalation classifier settings
	Escalation EscalationConfig `toml:"escalation" json:"escalation"`

	// Worker pool and call limits
	Run RunConfig `toml:"run" json:"run"`

	// Local (Ollama) configuration
	Local LocalConfig `toml:"local" json:"local"`

	// Cloud (OpenRouter) configuration
	Cloud CloudConfig `toml:"cloud" json:"cloud"`

	// Run history and report output
	History HistoryConfig `toml:"history" json:"history"`
	Output  OutputConfig  `toml:"output" json:"output"`
}

// RoutingConfig selects the strategy and the complexity boundaries.
type RoutingConfig struct {
	// Strategy is "auto" (escalating) or a pinned tier: "cheap", "capable", "premium".
	Strategy string `toml:"strategy" json:"strategy"`
	// MaxTier caps routing and escalation. Empty means no cap.
	MaxTier string `toml:"max_tier" json:"max_tier"`

	Low    float64 `toml:"low" json:"low"`
	Medium float64 `toml:"medium" json:"medium"`
	High   float64 `toml:"high" json:"high"`
}

// CostsConfig is the unit cost of one attempt at each tier.
type CostsConfig struct {
	Cheap   float64 `toml:"cheap" json:"cheap"`
	Capable float64 `toml:"capable" json:"capable"`
	Premium float64 `toml:"premium" json:"premium"`
}

// TiersConfig maps each tier to a backend and model.
type TiersConfig struct {
	Cheap   provider.Target `toml:"cheap" json:"cheap"`
	Capable provider.Target `toml:"capable" json:"capable"`
	Premium provider.Target `toml:"premium" json:"premium"`
}

// EscalationConfig tunes when a successful response is escalated anyway.
type EscalationConfig struct {
	// MinConfidence escalates responses that report a lower confidence.
	MinConfidence float64 `toml:"min_confidence" json:"min_confidence"`
	// EscalateOnCritical escalates below premium when critical findings are reported.
	EscalateOnCritical bool `toml:"escalate_on_critical" json:"escalate_on_critical"`
	// Policy is an optional CEL expression; true means escalate.
	Policy string `toml:"policy" json:"policy"`
}

// RunConfig bounds concurrency and each backend call.
type RunConfig struct {
	Concurrency    int `toml:"concurrency" json:"concurrency"`
	TimeoutSecs    int `toml:"timeout_secs" json:"timeout_secs"`
	MaxRetries     int `toml:"max_retries" json:"max_retries"`
	RetryBackoffMs int `toml:"retry_backoff_ms" json:"retry_backoff_ms"`
	MaxBackoffMs   int `toml:"max_backoff_ms" json:"max_backoff_ms"`
	// RequestsPerSecond throttles calls across the whole run. 0 disables.
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `toml:"burst" json:"burst"`
}

// LocalConfig contains local Ollama configuration.
type LocalConfig struct {
	// OllamaURL is the URL of the Ollama server
	OllamaURL string `toml:"ollama_url" json:"ollama_url"`
	// NumCtx is the context window requested from Ollama. 0 uses the model default.
	NumCtx      int     `toml:"num_ctx" json:"num_ctx"`
	Temperature float64 `toml:"temperature" json:"temperature"`
}

// CloudConfig contains OpenRouter configuration.
type CloudConfig struct {
	// OpenRouterKey is the OpenRouter API key
	OpenRouterKey string  `toml:"openrouter_key" json:"openrouter_key"`
	BaseURL       string  `toml:"base_url" json:"base_url"`
	SiteName      string  `toml:"site_name" json:"site_name"`
	Temperature   float64 `toml:"temperature" json:"temperature"`
	MaxTokens     int     `toml:"max_tokens" json:"max_tokens"`
}

// HistoryConfig controls the run history database.
type HistoryConfig struct {
	Enabled bool `toml:"enabled" json:"enabled"`
	// Path of the SQLite file. Empty means ~/.tierguard/history.db.
	Path string `toml:"path" json:"path"`
}

// OutputConfig controls report artifacts and the exit policy.
type OutputConfig struct {
	Dir            string `toml:"dir" json:"dir"`
	FailOnCritical bool   `toml:"fail_on_critical" json:"fail_on_critical"`
	// Color is "auto", "always" or "never".
	Color string `toml:"color" json:"color"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	th := router.DefaultThresholds()
	costs := router.DefaultCostTable()
	call := escalation.DefaultOptions()
	return &Config{
		Version: "1.0.0",

		Routing: RoutingConfig{
			Strategy: string(router.StrategyAuto),
			Low:      th.Low,
			Medium:   th.Medium,
			High:     th.High,
		},

		Weights: router.DefaultWeights(),

		Costs: CostsConfig{
			Cheap:   costs[model.TierCheap],
			Capable: costs[model.TierCapable],
			Premium: costs[model.TierPremium],
		},

		Tiers: TiersConfig{
			Cheap:   provider.Target{Backend: provider.BackendOllama, Model: "qwen2.5-coder:7b"},
			Capable: provider.Target{Backend: provider.BackendCloud, Model: "anthropic/claude-3.5-haiku"},
			Premium: provider.Target{Backend: provider.BackendCloud, Model: "anthropic/claude-3.5-sonnet"},
		},

		Escalation: EscalationConfig{
			MinConfidence:      0.5,
			EscalateOnCritical: false,
		},

		Run: RunConfig{
			Concurrency:    review.DefaultConcurrency,
			TimeoutSecs:    int(call.Timeout / time.Second),
			MaxRetries:     call.MaxRetries,
			RetryBackoffMs: int(call.RetryBackoff / time.Millisecond),
			MaxBackoffMs:   int(call.MaxBackoff / time.Millisecond),
		},

		Local: LocalConfig{
			OllamaURL: "http://127.0.0.1:11434",
		},

		Cloud: CloudConfig{
			BaseURL:  "https://openrouter.ai/api/v1",
			SiteName: "tierguard",
		},

		History: HistoryConfig{
			Enabled: true,
		},

		Output: OutputConfig{
			Dir:            "tierguard-report",
			FailOnCritical: true,
			Color:          "auto",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the tierguard configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".tierguard"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// ensureSecurePermissions tightens a config file to 0600; it may hold an API key.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode&0077 != 0 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// LoadDotEnv reads KEY=VALUE files into the environment without overriding
// variables that are already set. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// LocalConfigFile is the project-level config checked before the home directory.
const LocalConfigFile = "tierguard.toml"

func localConfigPath() (string, error) { return LocalConfigFile, nil }

// Load loads configuration from the default location.
// Tries ./tierguard.toml, then ~/.tierguard/config.toml, then
// ~/.tierguard/config.json, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	for _, pathFn := range []func() (string, error){localConfigPath, ConfigPathTOML, ConfigPathJSON} {
		path, err := pathFn()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file over the defaults,
// applies environment overrides and validates the result.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg. Keys not present keep their value.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	fillDefaults(cfg)
	return nil
}

// LoadJSON decodes a JSON file over cfg. Keys not present keep their value.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	fillDefaults(cfg)
	return nil
}

// fillDefaults restores values that a file explicitly set to empty and that
// have no meaningful empty form.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}
	if cfg.Routing.Strategy == "" {
		cfg.Routing.Strategy = defaults.Routing.Strategy
	}
	if cfg.Local.OllamaURL == "" {
		cfg.Local.OllamaURL = defaults.Local.OllamaURL
	}
	if cfg.Cloud.BaseURL == "" {
		cfg.Cloud.BaseURL = defaults.Cloud.BaseURL
	}
	if cfg.Output.Color == "" {
		cfg.Output.Color = defaults.Output.Color
	}
	if cfg.Weights.Hints == nil {
		cfg.Weights.Hints = defaults.Weights.Hints
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var b strings.Builder
	b.WriteString("# tierguard configuration file\n")
	b.WriteString("# Generated by tierguard - edit with care\n\n")
	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes cfg as indented JSON with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError is one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every setting and returns all problems as ValidateErrors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	strategy, err := router.ParseStrategy(c.Routing.Strategy)
	if err != nil {
		add("routing.strategy", "%v", err)
	}
	maxTier, err := c.maxTier()
	if err != nil {
		add("routing.max_tier", "%v", err)
	}
	rc := router.Config{Thresholds: c.thresholds(), MaxTier: maxTier}
	if err := rc.Validate(); err != nil {
		add("routing", "%v", err)
	}
	if strategy != "" && maxTier != nil {
		if err := rc.ValidateStrategy(strategy); err != nil {
			add("routing.strategy", "%v", err)
		}
	}

	if err := c.Weights.Validate(); err != nil {
		add("weights", "%v", err)
	}
	if err := c.costTable().Validate(); err != nil {
		add("costs", "%v", err)
	}

	targets := c.targets()
	for _, tier := range model.AllTiers {
		tgt := targets[tier]
		field := "tiers." + tier.String()
		switch tgt.Backend {
		case provider.BackendOllama, provider.BackendCloud:
		default:
			add(field+".backend", "invalid backend '%s', must be one of: ollama, cloud", tgt.Backend)
		}
		if strings.TrimSpace(tgt.Model) == "" {
			add(field+".model", "model must not be empty")
		}
	}

	if c.Escalation.MinConfidence < 0 || c.Escalation.MinConfidence > 1 {
		add("escalation.min_confidence", "must be within [0,1], got %v", c.Escalation.MinConfidence)
	}
	if c.Escalation.Policy != "" {
		if _, err := escalation.NewCELClassifier(c.Escalation.Policy); err != nil {
			add("escalation.policy", "%v", err)
		}
	}

	if c.Run.Concurrency < 0 {
		add("run.concurrency", "must not be negative")
	}
	if c.Run.TimeoutSecs < 0 {
		add("run.timeout_secs", "must not be negative")
	}
	if c.Run.MaxRetries < 0 {
		add("run.max_retries", "must not be negative")
	}
	if c.Run.RetryBackoffMs < 0 || c.Run.MaxBackoffMs < 0 {
		add("run.retry_backoff_ms", "backoff must not be negative")
	}
	if c.Run.RequestsPerSecond < 0 {
		add("run.requests_per_second", "must not be negative")
	}

	switch c.Output.Color {
	case "auto", "always", "never":
	default:
		add("output.color", "invalid value '%s', must be one of: auto, always, never", c.Output.Color)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// CONVERSION
// =============================================================================

func (c *Config) thresholds() router.Thresholds {
	return router.Thresholds{Low: c.Routing.Low, Medium: c.Routing.Medium, High: c.Routing.High}
}

func (c *Config) maxTier() (*model.Tier, error) {
	if strings.TrimSpace(c.Routing.MaxTier) == "" {
		return nil, nil
	}
	t, err := model.ParseTier(c.Routing.MaxTier)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Config) costTable() router.CostTable {
	return router.CostTable{
		model.TierCheap:   c.Costs.Cheap,
		model.TierCapable: c.Costs.Capable,
		model.TierPremium: c.Costs.Premium,
	}
}

func (c *Config) targets() map[model.Tier]provider.Target {
	return map[model.Tier]provider.Target{
		model.TierCheap:   c.Tiers.Cheap,
		model.TierCapable: c.Tiers.Capable,
		model.TierPremium: c.Tiers.Premium,
	}
}

// Targets returns the backend and model for each tier.
func (c *Config) Targets() map[model.Tier]provider.Target {
	return c.targets()
}

// UsesBackend reports whether any tier reachable under the configured cap
// is served by backend.
func (c *Config) UsesBackend(backend string) bool {
	maxTier, _ := c.maxTier()
	for tier, tgt := range c.targets() {
		if maxTier != nil && tier > *maxTier {
			continue
		}
		if tgt.Backend == backend {
			return true
		}
	}
	return false
}

// RunConfig converts the file settings into a validated run configuration.
// Errors are returned as ValidateErrors.
func (c *Config) RunConfig() (review.Config, error) {
	if err := c.Validate(); err != nil {
		return review.Config{}, err
	}
	strategy, _ := router.ParseStrategy(c.Routing.Strategy)
	maxTier, _ := c.maxTier()

	call := escalation.Options{
		Timeout:      time.Duration(c.Run.TimeoutSecs) * time.Second,
		MaxRetries:   c.Run.MaxRetries,
		RetryBackoff: time.Duration(c.Run.RetryBackoffMs) * time.Millisecond,
		MaxBackoff:   time.Duration(c.Run.MaxBackoffMs) * time.Millisecond,
	}
	return review.Config{
		Strategy:    strategy,
		Router:      router.Config{Thresholds: c.thresholds(), MaxTier: maxTier},
		Weights:     c.Weights,
		Costs:       c.costTable(),
		Call:        call,
		Concurrency: c.Run.Concurrency,
	}, nil
}

// Classifier builds the response classifier: the marker rules, then the
// CEL policy when one is configured.
func (c *Config) Classifier() (escalation.Classifier, error) {
	marker := escalation.MarkerClassifier{
		MinConfidence:      c.Escalation.MinConfidence,
		EscalateOnCritical: c.Escalation.EscalateOnCritical,
	}
	if c.Escalation.Policy == "" {
		return marker, nil
	}
	cel, err := escalation.NewCELClassifier(c.Escalation.Policy)
	if err != nil {
		return nil, err
	}
	return escalation.Chain(marker, cel), nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported environment variables:
//   - TIERGUARD_STRATEGY: overrides routing.strategy
//   - TIERGUARD_MAX_TIER: overrides routing.max_tier
//   - TIERGUARD_CONCURRENCY: overrides run.concurrency
//   - TIERGUARD_TIMEOUT: overrides run.timeout_secs
//   - TIERGUARD_MAX_RETRIES: overrides run.max_retries
//   - TIERGUARD_POLICY: overrides escalation.policy
//   - TIERGUARD_HISTORY: "0" or "false" disables run history
//   - TIERGUARD_OPENROUTER_KEY, OPENROUTER_API_KEY: cloud.openrouter_key
//   - TIERGUARD_OLLAMA_URL, OLLAMA_HOST: local.ollama_url
func (c *Config) ApplyEnvOverrides() {
	if s := os.Getenv("TIERGUARD_STRATEGY"); s != "" {
		c.Routing.Strategy = s
	}
	if tier := os.Getenv("TIERGUARD_MAX_TIER"); tier != "" {
		c.Routing.MaxTier = tier
	}
	envInt("TIERGUARD_CONCURRENCY", &c.Run.Concurrency)
	envInt("TIERGUARD_TIMEOUT", &c.Run.TimeoutSecs)
	envInt("TIERGUARD_MAX_RETRIES", &c.Run.MaxRetries)
	if p := os.Getenv("TIERGUARD_POLICY"); p != "" {
		c.Escalation.Policy = p
	}
	if h := os.Getenv("TIERGUARD_HISTORY"); h != "" {
		c.History.Enabled = parseBool(h)
	}

	// The tool-specific variable wins over the generic one.
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		c.Cloud.OpenRouterKey = key
	}
	if key := os.Getenv("TIERGUARD_OPENROUTER_KEY"); key != "" {
		c.Cloud.OpenRouterKey = key
	}

	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		if !strings.Contains(host, "://") {
			host = "http://" + host
		}
		c.Local.OllamaURL = host
	}
	if url := os.Getenv("TIERGUARD_OLLAMA_URL"); url != "" {
		c.Local.OllamaURL = url
	}
}

// envInt sets *dst from an integer variable. Unparseable values are ignored.
func envInt(name string, dst *int) {
	if n := os.Getenv(name); n != "" {
		if v, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			*dst = v
		}
	}
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "routing.max_tier").
func (c *Config) Get(key string) (any, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "tiers.cheap.model").
// String values are converted to the field's type.
func (c *Config) Set(key string, value any) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})
	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(part[:1]))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from a value with type conversion.
func setFieldValue(field reflect.Value, value any) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			field.SetBool(parseBool(strVal))
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) && val.Kind() != reflect.String {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns the scalar configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"routing.strategy",
		"routing.max_tier",
		"routing.low",
		"routing.medium",
		"routing.high",
		"costs.cheap",
		"costs.capable",
		"costs.premium",
		"tiers.cheap.backend",
		"tiers.cheap.model",
		"tiers.capable.backend",
		"tiers.capable.model",
		"tiers.premium.backend",
		"tiers.premium.model",
		"escalation.min_confidence",
		"escalation.escalate_on_critical",
		"escalation.policy",
		"run.concurrency",
		"run.timeout_secs",
		"run.max_retries",
		"run.retry_backoff_ms",
		"run.max_backoff_ms",
		"run.requests_per_second",
		"run.burst",
		"local.ollama_url",
		"local.num_ctx",
		"local.temperature",
		"cloud.openrouter_key",
		"cloud.base_url",
		"cloud.site_name",
		"cloud.temperature",
		"cloud.max_tokens",
		"history.enabled",
		"history.path",
		"output.dir",
		"output.fail_on_critical",
		"output.color",
	}
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Weights.Hints != nil {
		clone.Weights.Hints = make(map[string]float64, len(c.Weights.Hints))
		for k, v := range c.Weights.Hints {
			clone.Weights.Hints[k] = v
		}
	}
	return &clone
}

// Redacted returns a copy safe to print: the API key is masked.
func (c *Config) Redacted() *Config {
	safe := c.Clone()
	if safe.Cloud.OpenRouterKey != "" {
		safe.Cloud.OpenRouterKey = "[REDACTED]"
	}
	return safe
}

// String returns the redacted configuration as indented JSON.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}
