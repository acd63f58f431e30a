// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/tierguard/internal/escalation"
	"github.com/jeranaias/tierguard/internal/model"
	"github.com/jeranaias/tierguard/internal/provider"
	"github.com/jeranaias/tierguard/internal/router"
)

var envKeys = []string{
	"TIERGUARD_STRATEGY", "TIERGUARD_MAX_TIER", "TIERGUARD_CONCURRENCY",
	"TIERGUARD_TIMEOUT", "TIERGUARD_MAX_RETRIES",
	"TIERGUARD_POLICY", "TIERGUARD_HISTORY", "TIERGUARD_OPENROUTER_KEY",
	"OPENROUTER_API_KEY", "OLLAMA_HOST", "TIERGUARD_OLLAMA_URL",
}

// clearEnv blanks every variable ApplyEnvOverrides reads.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.Routing.Strategy != "auto" {
		t.Errorf("expected auto strategy, got %s", cfg.Routing.Strategy)
	}
	if cfg.Costs.Premium != 20 || cfg.Costs.Capable != 5 || cfg.Costs.Cheap != 1 {
		t.Errorf("unexpected default costs: %+v", cfg.Costs)
	}
	if !cfg.Output.FailOnCritical {
		t.Error("critical findings should fail the run by default")
	}
}

func TestRunConfigConversion(t *testing.T) {
	cfg := Default()
	cfg.Routing.MaxTier = "capable"
	cfg.Run.TimeoutSecs = 30
	cfg.Run.RetryBackoffMs = 250
	cfg.Run.Concurrency = 6

	rc, err := cfg.RunConfig()
	if err != nil {
		t.Fatalf("RunConfig: %v", err)
	}
	if rc.Strategy != router.StrategyAuto {
		t.Errorf("strategy = %s", rc.Strategy)
	}
	if rc.Router.MaxTier == nil || *rc.Router.MaxTier != model.TierCapable {
		t.Errorf("max tier not converted: %v", rc.Router.MaxTier)
	}
	if rc.Call.Timeout != 30*time.Second {
		t.Errorf("timeout = %v", rc.Call.Timeout)
	}
	if rc.Call.RetryBackoff != 250*time.Millisecond {
		t.Errorf("backoff = %v", rc.Call.RetryBackoff)
	}
	if rc.Concurrency != 6 {
		t.Errorf("concurrency = %d", rc.Concurrency)
	}
	if rc.Costs[model.TierPremium] != 20 {
		t.Errorf("premium cost = %v", rc.Costs[model.TierPremium])
	}
	if err := rc.Validate(); err != nil {
		t.Errorf("converted config should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unknown strategy", func(c *Config) { c.Routing.Strategy = "fastest" }, "routing.strategy"},
		{"unknown max tier", func(c *Config) { c.Routing.MaxTier = "opus" }, "routing.max_tier"},
		{"pinned above cap", func(c *Config) {
			c.Routing.Strategy = "premium"
			c.Routing.MaxTier = "capable"
		}, "routing.strategy"},
		{"thresholds out of order", func(c *Config) { c.Routing.Medium = 0.9 }, "routing"},
		{"negative weight", func(c *Config) { c.Weights.Keyword = -1 }, "weights"},
		{"missing cost", func(c *Config) { c.Costs.Capable = -2 }, "costs"},
		{"unordered costs", func(c *Config) { c.Costs.Premium = 0 }, "costs"},
		{"bad backend", func(c *Config) { c.Tiers.Capable.Backend = "bedrock" }, "tiers.capable.backend"},
		{"empty model", func(c *Config) { c.Tiers.Premium.Model = " " }, "tiers.premium.model"},
		{"confidence range", func(c *Config) { c.Escalation.MinConfidence = 1.5 }, "escalation.min_confidence"},
		{"bad policy", func(c *Config) { c.Escalation.Policy = "response.nope +" }, "escalation.policy"},
		{"negative concurrency", func(c *Config) { c.Run.Concurrency = -1 }, "run.concurrency"},
		{"negative retries", func(c *Config) { c.Run.MaxRetries = -1 }, "run.max_retries"},
		{"bad color", func(c *Config) { c.Output.Color = "sometimes" }, "output.color"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var verrs ValidateErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidateErrors, got %T", err)
			}
			found := false
			for _, e := range verrs {
				if e.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected an error on %s, got %v", tt.field, err)
			}
		})
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Routing.Strategy = "fastest"
	cfg.Run.Concurrency = -1
	cfg.Output.Color = "sometimes"

	var verrs ValidateErrors
	if !errors.As(cfg.Validate(), &verrs) {
		t.Fatal("expected ValidateErrors")
	}
	if len(verrs) != 3 {
		t.Errorf("expected 3 problems, got %d: %v", len(verrs), verrs)
	}
}

func TestLoadFromPathTOML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.toml", `
[routing]
strategy = "capable"

[costs]
premium = 40.0

[tiers.cheap]
backend = "cloud"
model = "openai/gpt-4o-mini"

[weights.hints]
migration = 0.5
`)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Routing.Strategy != "capable" {
		t.Errorf("strategy = %s", cfg.Routing.Strategy)
	}
	if cfg.Costs.Premium != 40 {
		t.Errorf("premium cost = %v", cfg.Costs.Premium)
	}
	// Keys not in the file keep their defaults.
	if cfg.Costs.Capable != 5 {
		t.Errorf("capable cost should stay default, got %v", cfg.Costs.Capable)
	}
	if cfg.Routing.High != 0.8 {
		t.Errorf("high threshold should stay default, got %v", cfg.Routing.High)
	}
	if cfg.Tiers.Cheap.Backend != provider.BackendCloud {
		t.Errorf("cheap backend = %s", cfg.Tiers.Cheap.Backend)
	}
	if cfg.Weights.Hints["migration"] != 0.5 {
		t.Errorf("hint not loaded: %v", cfg.Weights.Hints)
	}
}

func TestLoadFromPathRejectsUnknownKeys(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.toml", "[routing]\nstratgy = \"auto\"\n")

	_, err := LoadFromPath(path)
	if err == nil || !strings.Contains(err.Error(), "routing.stratgy") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLoadFromPathJSON(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.json", `{"routing": {"strategy": "premium", "max_tier": ""}, "run": {"concurrency": 2}}`)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Routing.Strategy != "premium" || cfg.Run.Concurrency != 2 {
		t.Errorf("unexpected config: %+v %+v", cfg.Routing, cfg.Run)
	}
	if cfg.Local.OllamaURL != Default().Local.OllamaURL {
		t.Errorf("ollama url should stay default, got %s", cfg.Local.OllamaURL)
	}
}

func TestLoadFromPathInvalid(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.toml", "[run]\nconcurrency = -3\n")

	if _, err := LoadFromPath(path); err == nil {
		t.Fatal("expected invalid config error")
	}
}

func TestLoadTightensPermissions(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.toml", "version = \"1.0.0\"\n")
	if err := os.Chmod(path, 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFromPath(path); err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected 0600, got %o", info.Mode().Perm())
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Routing.Strategy != "auto" {
		t.Errorf("strategy = %s", cfg.Routing.Strategy)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TIERGUARD_STRATEGY", "cheap")
	t.Setenv("TIERGUARD_MAX_TIER", "capable")
	t.Setenv("TIERGUARD_CONCURRENCY", "9")
	t.Setenv("TIERGUARD_TIMEOUT", "15")
	t.Setenv("TIERGUARD_HISTORY", "false")
	t.Setenv("OPENROUTER_API_KEY", "sk-or-generic")
	t.Setenv("TIERGUARD_OPENROUTER_KEY", "sk-or-specific")
	t.Setenv("OLLAMA_HOST", "10.0.0.5:11434")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Routing.Strategy != "cheap" || cfg.Routing.MaxTier != "capable" {
		t.Errorf("routing not overridden: %+v", cfg.Routing)
	}
	if cfg.Run.Concurrency != 9 || cfg.Run.TimeoutSecs != 15 {
		t.Errorf("run not overridden: %+v", cfg.Run)
	}
	if cfg.History.Enabled {
		t.Error("history should be disabled")
	}
	if cfg.Cloud.OpenRouterKey != "sk-or-specific" {
		t.Errorf("tool-specific key should win, got %s", cfg.Cloud.OpenRouterKey)
	}
	if cfg.Local.OllamaURL != "http://10.0.0.5:11434" {
		t.Errorf("ollama url = %s", cfg.Local.OllamaURL)
	}
}

func TestApplyEnvOverridesIgnoresBadInteger(t *testing.T) {
	clearEnv(t)
	t.Setenv("TIERGUARD_CONCURRENCY", "lots")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if cfg.Run.Concurrency != Default().Run.Concurrency {
		t.Errorf("bad integer should be ignored, got %d", cfg.Run.Concurrency)
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, ".env", "OPENROUTER_API_KEY=sk-or-from-dotenv\n")
	// godotenv does not override variables that are set, so unset it entirely.
	os.Unsetenv("OPENROUTER_API_KEY")

	if err := LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("OPENROUTER_API_KEY"); got != "sk-or-from-dotenv" {
		t.Errorf("expected key from .env, got %q", got)
	}
}

func TestGetSet(t *testing.T) {
	cfg := Default()

	tests := []struct {
		key   string
		value string
		want  any
	}{
		{"routing.max_tier", "capable", "capable"},
		{"tiers.cheap.model", "llama3.2", "llama3.2"},
		{"run.concurrency", "12", 12},
		{"costs.premium", "25.5", 25.5},
		{"escalation.escalate_on_critical", "true", true},
		{"cloud.openrouter_key", "sk-or-x", "sk-or-x"},
		{"weights.size_lines", "800", 800},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if err := cfg.Set(tt.key, tt.value); err != nil {
				t.Fatalf("Set(%s): %v", tt.key, err)
			}
			got, err := cfg.Get(tt.key)
			if err != nil {
				t.Fatalf("Get(%s): %v", tt.key, err)
			}
			if got != tt.want {
				t.Errorf("Get(%s) = %v (%T), want %v", tt.key, got, got, tt.want)
			}
		})
	}
}

func TestGetSetErrors(t *testing.T) {
	cfg := Default()

	if _, err := cfg.Get("routing.nope"); err == nil {
		t.Error("expected unknown field error")
	}
	if _, err := cfg.Get("version.major"); err == nil {
		t.Error("expected not-a-struct error")
	}
	if _, err := cfg.Get(""); err == nil {
		t.Error("expected empty key error")
	}
	if err := cfg.Set("run.concurrency", "many"); err == nil {
		t.Error("expected integer parse error")
	}
}

func TestGetAllKeysResolve(t *testing.T) {
	cfg := Default()
	for _, key := range GetAllKeys() {
		if _, err := cfg.Get(key); err != nil {
			t.Errorf("key %s does not resolve: %v", key, err)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	clone.Weights.Hints["security"] = 0
	clone.Routing.Strategy = "cheap"

	if cfg.Weights.Hints["security"] == 0 {
		t.Error("clone shares the hints map")
	}
	if cfg.Routing.Strategy != "auto" {
		t.Error("clone shares routing")
	}
}

func TestStringRedactsKey(t *testing.T) {
	cfg := Default()
	cfg.Cloud.OpenRouterKey = "sk-or-v1-supersecret"

	s := cfg.String()
	if strings.Contains(s, "supersecret") {
		t.Error("String() leaked the API key")
	}
	if !strings.Contains(s, "[REDACTED]") {
		t.Error("String() should mark the key as redacted")
	}
	if cfg.Cloud.OpenRouterKey != "sk-or-v1-supersecret" {
		t.Error("String() must not modify the config")
	}
}

func TestSaveTOMLRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.Routing.Strategy = "capable"
	cfg.Escalation.Policy = `response.critical > 2`
	cfg.Weights.Hints["migration"] = 0.45

	if err := SaveTOML(cfg, path); err != nil {
		t.Fatalf("SaveTOML: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected 0600, got %o", info.Mode().Perm())
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if loaded.Routing.Strategy != "capable" || loaded.Escalation.Policy != cfg.Escalation.Policy {
		t.Errorf("round trip lost values: %+v %+v", loaded.Routing, loaded.Escalation)
	}
	if loaded.Weights.Hints["migration"] != 0.45 {
		t.Errorf("round trip lost hint: %v", loaded.Weights.Hints)
	}
}

func TestSaveJSONRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := Default()
	cfg.Run.MaxRetries = 4
	if err := SaveJSON(cfg, path); err != nil {
		t.Fatalf("SaveJSON: %v", err)
	}
	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if loaded.Run.MaxRetries != 4 {
		t.Errorf("max retries = %d", loaded.Run.MaxRetries)
	}
}

func TestClassifier(t *testing.T) {
	cfg := Default()
	cl, err := cfg.Classifier()
	if err != nil {
		t.Fatalf("Classifier: %v", err)
	}
	if _, ok := cl.(escalation.MarkerClassifier); !ok {
		t.Errorf("expected marker classifier without a policy, got %T", cl)
	}

	cfg.Escalation.Policy = `response.critical > 0 && tier == "cheap"`
	cl, err = cfg.Classifier()
	if err != nil {
		t.Fatalf("Classifier with policy: %v", err)
	}
	v, err := cl.Classify(testContext(t), escalation.Input{
		Item:     model.Item{ID: "a", Content: "x"},
		Tier:     model.TierCheap,
		Response: model.Response{Content: "ok", Critical: 1, Confidence: model.ConfidenceUnknown},
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if v.Outcome() != model.OutcomeEscalate {
		t.Errorf("expected escalate, got %s", v.Outcome())
	}
}

func TestUsesBackend(t *testing.T) {
	cfg := Default()
	if !cfg.UsesBackend(provider.BackendCloud) || !cfg.UsesBackend(provider.BackendOllama) {
		t.Error("default tiers use both backends")
	}

	cfg.Routing.MaxTier = "cheap"
	if cfg.UsesBackend(provider.BackendCloud) {
		t.Error("cloud tiers are above the cap")
	}
}

// chdir switches the working directory for the duration of the test
// (stand-in for testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

// testContext returns a context canceled when the test ends
// (stand-in for testing.T.Context, which needs Go 1.24).
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
