// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/jeranaias/tierguard/internal/cloud"
	"github.com/jeranaias/tierguard/internal/config"
	"github.com/jeranaias/tierguard/internal/escalation"
	"github.com/jeranaias/tierguard/internal/ollama"
	"github.com/jeranaias/tierguard/internal/provider"
	"github.com/jeranaias/tierguard/internal/telemetry"
)

// =============================================================================
// APP
// =============================================================================

// GeneratorFactory builds the backend generator for a loaded config.
type GeneratorFactory func(cfg *config.Config, logger *slog.Logger) (escalation.Generator, error)

// App holds the process environment the commands run against. Tests swap
// the streams, the clock and the generator.
type App struct {
	Stdout io.Writer
	Stderr io.Writer
	Stdin  io.Reader

	// Getenv reads the environment. Default os.Getenv.
	Getenv func(string) string

	// Now is the clock for run timestamps. Default time.Now.
	Now func() time.Time

	// Dir is the working directory for git. Default ".".
	Dir string

	// NewGenerator builds the backends. Default BuildGenerator.
	NewGenerator GeneratorFactory

	// Instruments records spans and metrics. Nil uses the global otel providers.
	Instruments *telemetry.Instruments

	logger *slog.Logger
}

// NewApp returns an App bound to the process streams and environment.
func NewApp() *App {
	return &App{
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
		Stdin:        os.Stdin,
		Getenv:       os.Getenv,
		Now:          time.Now,
		Dir:          ".",
		NewGenerator: BuildGenerator,
	}
}

func (a *App) defaults() {
	if a.Stdout == nil {
		a.Stdout = io.Discard
	}
	if a.Stderr == nil {
		a.Stderr = io.Discard
	}
	if a.Stdin == nil {
		a.Stdin = os.Stdin
	}
	if a.Getenv == nil {
		a.Getenv = os.Getenv
	}
	if a.Now == nil {
		a.Now = time.Now
	}
	if a.Dir == "" {
		a.Dir = "."
	}
	if a.NewGenerator == nil {
		a.NewGenerator = BuildGenerator
	}
}

// Run parses argv (without the program name), runs the command and returns
// the process exit code.
func (a *App) Run(ctx context.Context, argv []string) int {
	a.defaults()
	cmd, args := Parse(argv)
	a.logger = NewLogger(a.Stderr, args.Verbose, args.Quiet)

	var err error
	switch cmd {
	case CmdReview:
		return a.HandleReview(ctx, args)
	case CmdReleasePrep:
		return a.HandleReleasePrep(ctx, args)
	case CmdEstimate:
		err = a.HandleEstimate(ctx, args)
	case CmdConfig:
		err = a.HandleConfig(args)
	case CmdHistory:
		err = a.HandleHistory(ctx, args)
	case CmdDoctor:
		return a.HandleDoctor(ctx, args)
	case CmdVersion:
		err = a.HandleVersion(args)
	case CmdHelp:
		PrintUsage(a.Stdout)
		return ExitSuccess
	default:
		err = ErrInvalidValue("command", args.Name, "unknown command; run 'tierguard help'")
	}

	if err != nil {
		a.displayError(cmd, args, err, nil)
		return GetExitCode(err)
	}
	return ExitSuccess
}

// displayError reports err on stderr, or as a JSON envelope on stdout.
func (a *App) displayError(cmd Command, args Args, err error, data any) {
	if args.JSON {
		_ = NewJSONErrorResponse(cmd.String(), err, data, a.Now()).Print(a.Stdout)
		return
	}
	st := a.styles(a.Stderr, "")
	fmt.Fprintf(a.Stderr, "%s %v\n", st.Error.Render("[ERROR]"), err)
}

// styles returns styles for w honoring the output.color mode.
func (a *App) styles(w io.Writer, mode string) Styles {
	return newStyles(w, colorProfile(colorsEnabled(mode, w, a.Getenv), w))
}

// =============================================================================
// LOGGING
// =============================================================================

// NewLogger returns a text logger on w. Verbose enables debug; quiet
// raises the level to warn.
func NewLogger(w io.Writer, verbose, quiet bool) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// =============================================================================
// CONFIG LOADING
// =============================================================================

// loadConfig reads .env, then the config file named by --config or found in
// the default locations. Failures are marked as configuration errors.
func (a *App) loadConfig(args Args) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("%w: %w", errConfigLoad, err)
	}

	var (
		cfg *config.Config
		err error
	)
	if args.ConfigPath != "" {
		cfg, err = config.LoadFromPath(args.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		var verrs config.ValidateErrors
		if errors.As(err, &verrs) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", errConfigLoad, err)
	}
	return cfg, nil
}

// =============================================================================
// BACKENDS
// =============================================================================

// ErrCloudKeyMissing is returned when a reachable tier is served by the
// cloud backend and no OpenRouter key is configured.
var ErrCloudKeyMissing = errors.New("cloud.openrouter_key is required when a tier uses the cloud backend (set OPENROUTER_API_KEY)")

// BuildGenerator wires the OpenRouter and Ollama clients behind a tier
// router, rate limited when run.requests_per_second is set.
func BuildGenerator(cfg *config.Config, logger *slog.Logger) (escalation.Generator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.UsesBackend(provider.BackendCloud) && cfg.Cloud.OpenRouterKey == "" {
		return nil, config.ValidateErrors{{Field: "cloud.openrouter_key", Message: ErrCloudKeyMissing.Error()}}
	}

	cloudClient := newCloudClient(cfg, logger)
	ollamaClient := newOllamaClient(cfg)

	router, err := provider.NewTierRouter(cfg.Targets(), map[string]provider.Backend{
		provider.BackendCloud:  provider.Cloud(cloudClient),
		provider.BackendOllama: provider.Ollama(ollamaClient),
	}, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Run.RequestsPerSecond > 0 {
		return escalation.RateLimited(router, escalation.NewLimiter(cfg.Run.RequestsPerSecond, cfg.Run.Burst)), nil
	}
	return router, nil
}

func newCloudClient(cfg *config.Config, logger *slog.Logger) *cloud.Client {
	return cloud.NewClient(cfg.Cloud.OpenRouterKey).
		WithBaseURL(cfg.Cloud.BaseURL).
		WithSiteName(cfg.Cloud.SiteName).
		WithSampling(cfg.Cloud.Temperature, cfg.Cloud.MaxTokens).
		WithLogger(logger)
}

func newOllamaClient(cfg *config.Config) *ollama.Client {
	ollamaCfg := ollama.DefaultConfig()
	ollamaCfg.BaseURL = cfg.Local.OllamaURL
	ollamaCfg.Options = &ollama.Options{
		Temperature: cfg.Local.Temperature,
		NumCtx:      cfg.Local.NumCtx,
	}
	return ollama.NewClientWithConfig(ollamaCfg)
}

// instruments returns the configured instruments, or ones on the global
// otel providers.
func (a *App) instruments() (*telemetry.Instruments, error) {
	if a.Instruments != nil {
		return a.Instruments, nil
	}
	return telemetry.NewInstruments()
}

// =============================================================================
// VERSION
// =============================================================================

// HandleVersion handles the "version" command.
func (a *App) HandleVersion(args Args) error {
	if args.JSON {
		data := VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}
		return NewJSONResponse("version", data, a.Now()).Print(a.Stdout)
	}
	PrintVersion(a.Stdout)
	return nil
}
