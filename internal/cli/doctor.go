// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// doctor.go - Doctor command implementation for tierguard.
//
// Command: doctor
// Short:   Check that the configured backends can serve a run
// Aliases: diag
//
// Checks performed:
//   1. Config valid      - the config file loads and validates
//   2. Ollama running    - when a reachable tier uses ollama
//   3. Ollama models     - each ollama tier's model is pulled
//   4. OpenRouter key    - when a reachable tier uses cloud
//   5. OpenRouter models - each cloud tier's model is listed
//   6. History writable  - the run history database opens
//
// Exit codes:
//   0   no check failed (warnings allowed)
//   1   one or more checks failed
package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/tierguard/internal/cloud"
	"github.com/jeranaias/tierguard/internal/config"
	"github.com/jeranaias/tierguard/internal/model"
	"github.com/jeranaias/tierguard/internal/ollama"
	"github.com/jeranaias/tierguard/internal/provider"
)

// doctorTimeout bounds each network check.
const doctorTimeout = 5 * time.Second

// CheckStatus is the result of one health check.
type CheckStatus string

const (
	CheckPass CheckStatus = "pass"
	CheckWarn CheckStatus = "warn"
	CheckFail CheckStatus = "fail"
)

// HealthCheck is one diagnostic line.
type HealthCheck struct {
	Name    string      `json:"name"`
	Status  CheckStatus `json:"status"`
	Message string      `json:"message"`
	Fix     string      `json:"fix,omitempty"`
}

// DoctorData is returned by the doctor command.
type DoctorData struct {
	Checks []HealthCheck `json:"checks"`
	Passed int           `json:"passed"`
	Warned int           `json:"warned"`
	Failed int           `json:"failed"`
}

func (d *DoctorData) add(c HealthCheck) {
	d.Checks = append(d.Checks, c)
	switch c.Status {
	case CheckPass:
		d.Passed++
	case CheckWarn:
		d.Warned++
	default:
		d.Failed++
	}
}

// HandleDoctor handles the "doctor" command and returns the exit code.
func (a *App) HandleDoctor(ctx context.Context, args Args) int {
	data := &DoctorData{}

	cfg, err := a.loadConfig(args)
	if err != nil {
		data.add(HealthCheck{Name: "Config", Status: CheckFail, Message: err.Error(), Fix: "tierguard config init --force"})
	} else {
		data.add(HealthCheck{Name: "Config", Status: CheckPass, Message: "configuration is valid"})
		if cfg.UsesBackend(provider.BackendOllama) {
			a.checkOllama(ctx, cfg, data)
		}
		if cfg.UsesBackend(provider.BackendCloud) {
			a.checkCloud(ctx, cfg, data)
		}
		a.checkHistory(cfg, data)
	}

	mode := ""
	if cfg != nil {
		mode = cfg.Output.Color
	}
	code := ExitSuccess
	var failed error
	if data.Failed > 0 {
		code = ExitFailure
		failed = NewCommandError("doctor", "check", fmt.Errorf("%d health check(s) failed", data.Failed))
	}

	if args.JSON {
		resp := NewJSONResponse(CmdDoctor.String(), data, a.Now())
		if failed != nil {
			resp = NewJSONErrorResponse(CmdDoctor.String(), failed, data, a.Now())
		}
		if err := resp.Print(a.Stdout); err != nil {
			return ExitFailure
		}
		return code
	}

	st := a.styles(a.Stdout, mode)
	fmt.Fprintln(a.Stdout, st.Title.Render("tierguard doctor"))
	fmt.Fprintln(a.Stdout, st.RenderSeparator(41))
	for _, c := range data.Checks {
		fmt.Fprintf(a.Stdout, "%s %s: %s\n", st.RenderStatus(string(c.Status)), c.Name, c.Message)
		if c.Status != CheckPass && c.Fix != "" {
			fmt.Fprintf(a.Stdout, "    %s\n", st.Dim.Render("-> "+c.Fix))
		}
	}
	fmt.Fprintln(a.Stdout, st.RenderSeparator(41))
	fmt.Fprintf(a.Stdout, "%d passed, %d warnings, %d failed\n", data.Passed, data.Warned, data.Failed)
	if failed != nil {
		a.displayError(CmdDoctor, args, failed, nil)
	}
	return code
}

// tierModels returns the models configured for backend on reachable tiers.
func tierModels(cfg *config.Config, backend string) []string {
	targets := cfg.Targets()
	maxTier := model.TierPremium
	if cfg.Routing.MaxTier != "" {
		if t, err := model.ParseTier(cfg.Routing.MaxTier); err == nil {
			maxTier = t
		}
	}
	var out []string
	for _, tier := range model.AllTiers {
		if tgt, ok := targets[tier]; ok && tier <= maxTier && tgt.Backend == backend {
			out = append(out, tgt.Model)
		}
	}
	return out
}

func (a *App) checkOllama(ctx context.Context, cfg *config.Config, data *DoctorData) {
	client := newOllamaClient(cfg)
	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()

	if err := client.CheckRunning(ctx); err != nil {
		c := HealthCheck{Name: "Ollama", Status: CheckFail, Message: err.Error(), Fix: "Run: ollama serve"}
		switch {
		case ollama.IsNotRunning(err):
			c.Message = "not reachable at " + client.BaseURL()
		case ollama.IsTimeout(err):
			c.Message = "timed out contacting " + client.BaseURL()
		}
		data.add(c)
		return
	}
	data.add(HealthCheck{Name: "Ollama", Status: CheckPass, Message: "running at " + client.BaseURL()})

	installed, err := client.ListModels(ctx)
	if err != nil {
		data.add(HealthCheck{Name: "Ollama models", Status: CheckWarn, Message: "could not list models: " + err.Error()})
		return
	}
	for _, name := range tierModels(cfg, provider.BackendOllama) {
		if hasOllamaModel(installed, name) {
			data.add(HealthCheck{Name: "Ollama models", Status: CheckPass, Message: name + " is installed"})
			continue
		}
		data.add(HealthCheck{Name: "Ollama models", Status: CheckFail, Message: name + " is not installed", Fix: "Run: ollama pull " + name})
	}
}

func hasOllamaModel(installed []ollama.ModelInfo, name string) bool {
	for _, m := range installed {
		if m.Name == name || strings.HasPrefix(m.Name, name+":") {
			return true
		}
	}
	return false
}

func (a *App) checkCloud(ctx context.Context, cfg *config.Config, data *DoctorData) {
	key := cfg.Cloud.OpenRouterKey
	client := newCloudClient(cfg, a.logger)
	switch {
	case key == "":
		data.add(HealthCheck{Name: "OpenRouter key", Status: CheckFail, Message: "not set", Fix: "export OPENROUTER_API_KEY=sk-or-..."})
		return
	case !cloud.ValidateAPIKey(key):
		data.add(HealthCheck{Name: "OpenRouter key", Status: CheckWarn, Message: "does not look like an OpenRouter key", Fix: "Get a key at https://openrouter.ai/keys"})
	default:
		data.add(HealthCheck{Name: "OpenRouter key", Status: CheckPass, Message: client.APIKeyMasked()})
	}

	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()
	models, err := client.ListModels(ctx)
	if err != nil {
		data.add(HealthCheck{Name: "OpenRouter models", Status: CheckWarn, Message: "could not list models: " + err.Error()})
		return
	}
	known := make(map[string]bool, len(models))
	for _, m := range models {
		known[m.ID] = true
	}
	for _, name := range tierModels(cfg, provider.BackendCloud) {
		if known[name] {
			data.add(HealthCheck{Name: "OpenRouter models", Status: CheckPass, Message: name + " is available"})
			continue
		}
		data.add(HealthCheck{Name: "OpenRouter models", Status: CheckFail, Message: name + " is not offered", Fix: "tierguard config set tiers.<tier>.model <id>"})
	}
}

func (a *App) checkHistory(cfg *config.Config, data *DoctorData) {
	if !cfg.History.Enabled {
		data.add(HealthCheck{Name: "History", Status: CheckPass, Message: "disabled"})
		return
	}
	h, err := a.openHistory(cfg)
	if err != nil {
		data.add(HealthCheck{Name: "History", Status: CheckFail, Message: err.Error(), Fix: "set history.path or history.enabled = false"})
		return
	}
	h.Close()
	data.add(HealthCheck{Name: "History", Status: CheckPass, Message: "database opens"})
}
