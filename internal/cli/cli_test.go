// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/tierguard/internal/config"
	"github.com/jeranaias/tierguard/internal/escalation"
	"github.com/jeranaias/tierguard/internal/model"
	"github.com/jeranaias/tierguard/internal/ollama"
	"github.com/jeranaias/tierguard/internal/provider"
	"github.com/jeranaias/tierguard/internal/review"
)

// =============================================================================
// ARG PARSER TESTS (args.go)
// =============================================================================

func TestArgParser_BasicParsing(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		bools    []string
		wantSub  string
		validate func(*testing.T, *ArgParser)
	}{
		{
			name:    "simple subcommand",
			args:    []string{"show"},
			wantSub: "show",
		},
		{
			name:    "subcommand with flag",
			args:    []string{"trends", "--days", "14"},
			wantSub: "trends",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("days") != "14" {
					t.Errorf("Flag(days) = %q, want %q", p.Flag("days"), "14")
				}
			},
		},
		{
			name:    "flag with equals",
			args:    []string{"--strategy=premium"},
			wantSub: "",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("strategy") != "premium" {
					t.Errorf("Flag(strategy) = %q, want premium", p.Flag("strategy"))
				}
			},
		},
		{
			name:    "known bool does not consume the next argument",
			args:    []string{"--dry-run", "extra"},
			bools:   []string{"dry-run"},
			wantSub: "extra",
			validate: func(t *testing.T, p *ArgParser) {
				if !p.BoolFlag("dry-run") {
					t.Error("BoolFlag(dry-run) should be true")
				}
			},
		},
		{
			name:    "explicit bool value",
			args:    []string{"--html=false"},
			bools:   []string{"html"},
			wantSub: "",
			validate: func(t *testing.T, p *ArgParser) {
				if p.BoolFlag("html") || !p.HasFlag("html") {
					t.Error("--html=false should be present and false")
				}
			},
		},
		{
			name:    "dash is a value",
			args:    []string{"--diff", "-"},
			wantSub: "",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("diff") != "-" {
					t.Errorf("Flag(diff) = %q, want -", p.Flag("diff"))
				}
			},
		},
		{
			name:    "double dash ends flags",
			args:    []string{"set", "--", "escalation.policy", "--x"},
			wantSub: "set",
			validate: func(t *testing.T, p *ArgParser) {
				if got := strings.Join(p.PositionalFrom(1), " "); got != "escalation.policy --x" {
					t.Errorf("PositionalFrom(1) = %q", got)
				}
				if p.PositionalCount() != 3 {
					t.Errorf("PositionalCount() = %d, want 3", p.PositionalCount())
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewArgParser(tt.args, tt.bools...)
			if p.Subcommand() != tt.wantSub {
				t.Errorf("Subcommand() = %q, want %q", p.Subcommand(), tt.wantSub)
			}
			if tt.validate != nil {
				tt.validate(t, p)
			}
		})
	}
}

func TestArgParser_FlagInt(t *testing.T) {
	p := NewArgParser([]string{"--limit", "5", "--days", "x"})
	if n, err := p.FlagInt("limit"); err != nil || n != 5 {
		t.Errorf("FlagInt(limit) = %d, %v", n, err)
	}
	if _, err := p.FlagInt("days"); err == nil {
		t.Error("FlagInt(days) should fail on a non-number")
	}
	if _, err := p.FlagInt("missing"); err == nil {
		t.Error("FlagInt(missing) should fail")
	}
	if p.FlagOrDefault("missing", "d") != "d" {
		t.Error("FlagOrDefault should return the default")
	}
}

func TestParseBoolString(t *testing.T) {
	for in, want := range map[string]bool{"true": true, "YES": true, "1": true, "off": false, "n": false} {
		got, err := ParseBoolString(in)
		if err != nil || got != want {
			t.Errorf("ParseBoolString(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseBoolString("maybe"); err == nil {
		t.Error("ParseBoolString(maybe) should fail")
	}
}

// =============================================================================
// COMMAND PARSING TESTS (cli.go)
// =============================================================================

func TestParse(t *testing.T) {
	tests := []struct {
		argv []string
		want Command
	}{
		{nil, CmdHelp},
		{[]string{"review"}, CmdReview},
		{[]string{"run"}, CmdReview},
		{[]string{"release"}, CmdReleasePrep},
		{[]string{"est"}, CmdEstimate},
		{[]string{"cfg", "show"}, CmdConfig},
		{[]string{"hist"}, CmdHistory},
		{[]string{"--version"}, CmdVersion},
		{[]string{"-h"}, CmdHelp},
		{[]string{"frobnicate"}, CmdUnknown},
	}
	for _, tt := range tests {
		got, _ := Parse(tt.argv)
		if got != tt.want {
			t.Errorf("Parse(%v) = %v, want %v", tt.argv, got, tt.want)
		}
	}
}

func TestParse_GlobalFlags(t *testing.T) {
	cmd, args := Parse([]string{"-v", "review", "--json", "--config=x.toml", "--strategy", "cheap", "-q"})
	if cmd != CmdReview {
		t.Fatalf("cmd = %v, want review", cmd)
	}
	if !args.Verbose || !args.Quiet || !args.JSON {
		t.Errorf("global flags not parsed: %+v", args)
	}
	if args.ConfigPath != "x.toml" {
		t.Errorf("ConfigPath = %q", args.ConfigPath)
	}
	if got := strings.Join(args.Raw, " "); got != "--strategy cheap" {
		t.Errorf("Raw = %q", got)
	}
}

// =============================================================================
// ERROR MAPPING TESTS (errors.go)
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"usage", ErrInvalidValue("--concurrency", "x", "bad"), ExitConfigError},
		{"config validation", fmt.Errorf("invalid config: %w", config.ValidateErrors{{Field: "routing", Message: "bad"}}), ExitConfigError},
		{"config load", fmt.Errorf("%w: %w", errConfigLoad, errors.New("decode")), ExitConfigError},
		{"run config", &review.ConfigError{}, ExitConfigError},
		{"critical", &CriticalFindingsError{Count: 2}, ExitFailure},
		{"other", errors.New("boom"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetExitCode(tt.err); got != tt.want {
				t.Errorf("GetExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCriticalFindingsMessage(t *testing.T) {
	want := "Found 3 critical issues. Set fail_on_critical to false to ignore."
	if got := (&CriticalFindingsError{Count: 3}).Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

// =============================================================================
// TERMINAL TESTS (terminal.go)
// =============================================================================

func TestColorsEnabled(t *testing.T) {
	env := func(vars map[string]string) func(string) string {
		return func(k string) string { return vars[k] }
	}
	var buf bytes.Buffer
	tests := []struct {
		name string
		mode string
		vars map[string]string
		want bool
	}{
		{"always", "always", map[string]string{"NO_COLOR": "1"}, true},
		{"never", "never", map[string]string{"FORCE_COLOR": "1"}, false},
		{"no color", "auto", map[string]string{"NO_COLOR": "1", "FORCE_COLOR": "1"}, false},
		{"forced", "auto", map[string]string{"FORCE_COLOR": "1"}, true},
		{"not a terminal", "auto", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := colorsEnabled(tt.mode, &buf, env(tt.vars)); got != tt.want {
				t.Errorf("colorsEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
	if w := terminalWidth(&buf); w != 80 {
		t.Errorf("terminalWidth(buffer) = %d, want 80", w)
	}
}

func TestFormatDurationShort(t *testing.T) {
	tests := map[time.Duration]string{
		250 * time.Millisecond: "250ms",
		1500 * time.Millisecond: "1.5s",
		90 * time.Second:        "1m30s",
		2*time.Hour + 5*time.Minute: "2h5m",
	}
	for d, want := range tests {
		if got := formatDurationShort(d); got != want {
			t.Errorf("formatDurationShort(%v) = %q, want %q", d, got, want)
		}
	}
}

// =============================================================================
// APP TESTS (end to end against a fake backend)
// =============================================================================

type testApp struct {
	*App
	stdout, stderr *bytes.Buffer
	env            map[string]string
	dir            string
}

// newTestApp isolates HOME, the working directory and the environment.
func newTestApp(t *testing.T, gen escalation.Generator) *testApp {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", filepath.Join(dir, "home"))
	for _, k := range []string{
		"TIERGUARD_STRATEGY", "TIERGUARD_MAX_TIER", "TIERGUARD_CONCURRENCY", "TIERGUARD_TIMEOUT",
		"TIERGUARD_MAX_RETRIES", "TIERGUARD_POLICY", "TIERGUARD_HISTORY", "TIERGUARD_OPENROUTER_KEY",
		"OPENROUTER_API_KEY", "TIERGUARD_OLLAMA_URL", "OLLAMA_HOST",
	} {
		t.Setenv(k, "")
	}
	chdir(t, dir)

	ta := &testApp{
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
		env:    map[string]string{},
		dir:    dir,
	}
	ta.App = &App{
		Stdout: ta.stdout,
		Stderr: ta.stderr,
		Stdin:  strings.NewReader(""),
		Getenv: func(k string) string { return ta.env[k] },
		Now:    func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) },
		Dir:    dir,
		NewGenerator: func(*config.Config, *slog.Logger) (escalation.Generator, error) {
			return gen, nil
		},
	}
	return ta
}

func (ta *testApp) run(t *testing.T, argv ...string) int {
	t.Helper()
	ta.stdout.Reset()
	ta.stderr.Reset()
	return ta.Run(context.Background(), argv)
}

func (ta *testApp) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(ta.dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// reviewer accepts everything and reports a critical finding on item B.
var reviewer = escalation.GeneratorFunc(func(_ context.Context, item model.Item, tier model.Tier) (model.Response, error) {
	resp := model.Response{Content: fmt.Sprintf("review of %s at %s", item.ID, tier), Confidence: model.ConfidenceUnknown}
	if item.ID == "B" {
		resp.Critical = 1
	}
	return resp, nil
})

const itemsYAML = `
- id: A
  content: typo fix
- id: B
  hint: security
  content: auth bypass
`

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *string         `json:"error"`
	Command string          `json:"command"`
}

func decodeEnvelope(t *testing.T, b []byte) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		t.Fatalf("stdout is not a JSON envelope: %v\n%s", err, b)
	}
	return env
}

func TestReviewWritesArtifactsAndOutputs(t *testing.T) {
	ta := newTestApp(t, reviewer)
	items := ta.writeFile(t, "items.yaml", itemsYAML)
	out := filepath.Join(ta.dir, "report")
	ghOut := filepath.Join(ta.dir, "gh-output")
	ta.env["GITHUB_OUTPUT"] = ghOut

	code := ta.run(t, "--json", "review", "--items", items, "--out", out, "--fail-on-critical=false")
	if code != ExitSuccess {
		t.Fatalf("exit = %d, stderr:\n%s", code, ta.stderr)
	}

	env := decodeEnvelope(t, ta.stdout.Bytes())
	if !env.Success || env.Command != "review" {
		t.Fatalf("envelope = %+v", env)
	}
	var data ReviewData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Report == nil || data.Report.TotalItems != 2 || data.Report.CriticalCount != 1 {
		t.Fatalf("report = %+v", data.Report)
	}
	if data.RunID == "" {
		t.Error("run should be recorded in history")
	}

	for _, name := range []string{"review-report.json", "review-report.md", "summary.md"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("missing artifact %s: %v", name, err)
		}
	}

	gh, err := os.ReadFile(ghOut)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"report=" + out + "\n",
		"summary=1 issues found in 2 items\n",
		"issues_found=1\n",
		"cost_saved=47.5%\n",
	} {
		if !strings.Contains(string(gh), want) {
			t.Errorf("GITHUB_OUTPUT missing %q:\n%s", want, gh)
		}
	}
}

func TestReviewFailOnCritical(t *testing.T) {
	ta := newTestApp(t, reviewer)
	items := ta.writeFile(t, "items.yaml", itemsYAML)
	ta.env["GITHUB_ACTIONS"] = "true"

	code := ta.run(t, "review", "--items", items, "--out", filepath.Join(ta.dir, "out"), "--no-history")
	if code != ExitFailure {
		t.Fatalf("exit = %d, want %d", code, ExitFailure)
	}
	want := "::error::Found 1 critical issues. Set fail_on_critical to false to ignore."
	if !strings.Contains(ta.stderr.String(), want) {
		t.Errorf("stderr missing annotation:\n%s", ta.stderr)
	}
	summary, err := os.ReadFile(filepath.Join(ta.dir, "out", "summary.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(summary), "**Items reviewed:** 2") {
		t.Errorf("summary.md should keep the run summary:\n%s", summary)
	}
}

func TestReviewFailOnCriticalFlagOverridesConfig(t *testing.T) {
	ta := newTestApp(t, reviewer)
	items := ta.writeFile(t, "items.yaml", itemsYAML)
	cfgPath := ta.writeFile(t, "tg.toml", "[output]\nfail_on_critical = true\n")
	out := filepath.Join(ta.dir, "out")

	if code := ta.run(t, "--config", cfgPath, "review", "--items", items, "--out", out, "--no-history"); code != ExitFailure {
		t.Fatalf("exit = %d, want %d", code, ExitFailure)
	}
	code := ta.run(t, "--config", cfgPath, "review", "--items", items, "--out", out, "--no-history", "--fail-on-critical=false")
	if code != ExitSuccess {
		t.Fatalf("exit = %d, stderr:\n%s", code, ta.stderr)
	}

	off := ta.writeFile(t, "off.toml", "[output]\nfail_on_critical = false\n")
	if code := ta.run(t, "--config", off, "review", "--items", items, "--out", out, "--no-history", "--fail-on-critical"); code != ExitFailure {
		t.Fatalf("exit = %d, want %d", code, ExitFailure)
	}
}

func TestReviewNoItems(t *testing.T) {
	ta := newTestApp(t, reviewer)
	diff := ta.writeFile(t, "empty.diff", "")
	out := filepath.Join(ta.dir, "out")
	ghOut := filepath.Join(ta.dir, "gh-output")
	ta.env["GITHUB_OUTPUT"] = ghOut

	if code := ta.run(t, "review", "--diff", diff, "--out", out); code != ExitSuccess {
		t.Fatalf("exit = %d, stderr:\n%s", code, ta.stderr)
	}
	if !strings.Contains(ta.stdout.String(), NoItemsMessage) {
		t.Errorf("stdout = %q", ta.stdout)
	}
	summary, err := os.ReadFile(filepath.Join(out, "summary.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(summary), NoItemsMessage) {
		t.Errorf("summary.md = %q", summary)
	}
	gh, _ := os.ReadFile(ghOut)
	if !strings.Contains(string(gh), "issues_found=0\n") || !strings.Contains(string(gh), "cost_saved=N/A\n") {
		t.Errorf("GITHUB_OUTPUT = %q", gh)
	}
}

// git runs git in ta.dir with a fixed identity.
func (ta *testApp) git(t *testing.T, args ...string) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	base := []string{"-c", "user.name=test", "-c", "user.email=test@example.com", "-c", "commit.gpgsign=false", "-c", "tag.gpgsign=false"}
	cmd := exec.Command("git", append(base, args...)...)
	cmd.Dir = ta.dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
}

// commitAll writes files and commits them, creating the repository first
// when needed.
func (ta *testApp) commitAll(t *testing.T, msg string, files map[string]string) {
	t.Helper()
	if _, err := os.Stat(filepath.Join(ta.dir, ".git")); err != nil {
		ta.git(t, "init", "-q")
	}
	for name, content := range files {
		ta.writeFile(t, name, content)
		ta.git(t, "add", name)
	}
	ta.git(t, "commit", "-q", "-m", msg)
}

func TestReviewSingleCommitCheckout(t *testing.T) {
	ta := newTestApp(t, reviewer)
	ta.commitAll(t, "initial", map[string]string{"main.go": "package main\n"})
	out := filepath.Join(ta.dir, "out")
	ghOut := filepath.Join(ta.dir, "gh-output")
	ta.env["GITHUB_OUTPUT"] = ghOut

	if code := ta.run(t, "review", "--out", out, "--no-history"); code != ExitSuccess {
		t.Fatalf("exit = %d, stderr:\n%s", code, ta.stderr)
	}
	if !strings.Contains(ta.stdout.String(), NoItemsMessage) {
		t.Errorf("stdout = %q", ta.stdout)
	}
	summary, err := os.ReadFile(filepath.Join(out, "summary.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(summary), NoItemsMessage) {
		t.Errorf("summary.md = %q", summary)
	}
	gh, _ := os.ReadFile(ghOut)
	if !strings.Contains(string(gh), "summary="+NoItemsMessage+"\n") {
		t.Errorf("GITHUB_OUTPUT = %q", gh)
	}
}

func TestReviewRejectsOptionRevision(t *testing.T) {
	ta := newTestApp(t, reviewer)
	if code := ta.run(t, "review", "--git=--output=/tmp/x", "--no-history"); code != ExitConfigError {
		t.Fatalf("exit = %d, want %d", code, ExitConfigError)
	}
	if !strings.Contains(ta.stderr.String(), "--git") {
		t.Errorf("stderr = %s", ta.stderr)
	}
}

func TestReleasePrep(t *testing.T) {
	ta := newTestApp(t, reviewer)
	ta.commitAll(t, "initial", map[string]string{"main.go": "package main\n"})
	ta.git(t, "tag", "v1.0.0")
	ta.commitAll(t, "add main func", map[string]string{"main.go": "package main\n\nfunc main() {}\n"})

	profile := filepath.Join(t.TempDir(), "cover.out")
	if err := os.WriteFile(profile, []byte("mode: set\nexample.com/m/main.go:3.1,3.15 4 1\nexample.com/m/main.go:4.1,5.2 1 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(ta.dir, "out")
	ghOut := filepath.Join(ta.dir, "gh-output")
	ta.env["GITHUB_OUTPUT"] = ghOut

	code := ta.run(t, "--json", "release-prep", "--out", out, "--coverage", profile, "--min-coverage", "75")
	if code != ExitSuccess {
		t.Fatalf("exit = %d, stderr:\n%s", code, ta.stderr)
	}
	var data ReleaseData
	if err := json.Unmarshal(decodeEnvelope(t, ta.stdout.Bytes()).Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Outcome == nil || data.Outcome.Since != "v1.0.0" || data.Outcome.Passed != 4 || data.Outcome.Total != 4 {
		t.Fatalf("outcome = %+v", data.Outcome)
	}

	for _, name := range []string{"release-prep-report.json", "release-prep-report.md", "summary.md"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("missing artifact %s: %v", name, err)
		}
	}
	summary, err := os.ReadFile(filepath.Join(out, "summary.md"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"## tierguard Release Prep", "**Test coverage:** 80.0%", "**Changelog generated:** Yes", "**Quality gates passed:** 4/4"} {
		if !strings.Contains(string(summary), want) {
			t.Errorf("summary.md missing %q:\n%s", want, summary)
		}
	}

	gh, err := os.ReadFile(ghOut)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"report=" + out + "\n",
		"summary=Release prep complete: 4/4 gates passed\n",
		"issues_found=0\n",
	} {
		if !strings.Contains(string(gh), want) {
			t.Errorf("GITHUB_OUTPUT missing %q:\n%s", want, gh)
		}
	}
}

func TestReleasePrepFailedGatesAreReported(t *testing.T) {
	critical := escalation.GeneratorFunc(func(_ context.Context, item model.Item, _ model.Tier) (model.Response, error) {
		resp := model.Response{Content: "notes for " + item.ID, Confidence: model.ConfidenceUnknown}
		if item.ID == "security-audit" {
			resp.Critical = 2
		}
		return resp, nil
	})
	ta := newTestApp(t, critical)
	ta.commitAll(t, "initial", map[string]string{"auth.go": "package auth\n"})
	ghOut := filepath.Join(ta.dir, "gh-output")
	ta.env["GITHUB_OUTPUT"] = ghOut

	if code := ta.run(t, "release-prep", "--out", filepath.Join(ta.dir, "out")); code != ExitSuccess {
		t.Fatalf("exit = %d, stderr:\n%s", code, ta.stderr)
	}
	if !strings.Contains(ta.stdout.String(), "2 critical findings") {
		t.Errorf("stdout should show the failed gate:\n%s", ta.stdout)
	}
	gh, _ := os.ReadFile(ghOut)
	if !strings.Contains(string(gh), "summary=Release prep complete: 2/3 gates passed\n") || !strings.Contains(string(gh), "issues_found=1\n") {
		t.Errorf("GITHUB_OUTPUT = %q", gh)
	}
}

func TestReleasePrepBadFlags(t *testing.T) {
	ta := newTestApp(t, reviewer)
	if code := ta.run(t, "release-prep", "--min-coverage", "150"); code != ExitConfigError {
		t.Errorf("--min-coverage 150 exit = %d, want %d", code, ExitConfigError)
	}
	if code := ta.run(t, "release-prep", "--since=-p"); code != ExitConfigError {
		t.Errorf("--since=-p exit = %d, want %d", code, ExitConfigError)
	}
}

func TestReviewDiffFromStdin(t *testing.T) {
	ta := newTestApp(t, reviewer)
	ta.Stdin = strings.NewReader(`diff --git a/README.md b/README.md
--- a/README.md
+++ b/README.md
@@ -1 +1 @@
-old
+new
`)
	code := ta.run(t, "--json", "review", "--diff", "-", "--out", filepath.Join(ta.dir, "out"), "--no-history")
	if code != ExitSuccess {
		t.Fatalf("exit = %d, stderr:\n%s", code, ta.stderr)
	}
	var data ReviewData
	if err := json.Unmarshal(decodeEnvelope(t, ta.stdout.Bytes()).Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Report == nil || len(data.Report.Items) != 1 || data.Report.Items[0].ID != "README.md" {
		t.Fatalf("report = %+v", data.Report)
	}
}

func TestReviewBadStrategyIsConfigError(t *testing.T) {
	ta := newTestApp(t, reviewer)
	items := ta.writeFile(t, "items.yaml", itemsYAML)
	if code := ta.run(t, "review", "--items", items, "--strategy", "cheapest"); code != ExitConfigError {
		t.Fatalf("exit = %d, want %d", code, ExitConfigError)
	}
	if !strings.Contains(ta.stderr.String(), "routing.strategy") {
		t.Errorf("stderr = %s", ta.stderr)
	}
}

func TestReviewBackendErrorWritesErrorSummary(t *testing.T) {
	ta := newTestApp(t, reviewer)
	ta.NewGenerator = func(*config.Config, *slog.Logger) (escalation.Generator, error) {
		return nil, errors.New("backend unavailable")
	}
	items := ta.writeFile(t, "items.yaml", itemsYAML)
	out := filepath.Join(ta.dir, "out")

	if code := ta.run(t, "review", "--items", items, "--out", out); code != ExitFailure {
		t.Fatalf("exit = %d, want %d", code, ExitFailure)
	}
	summary, err := os.ReadFile(filepath.Join(out, "summary.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(summary), "## tierguard - Error") || !strings.Contains(string(summary), "backend unavailable") {
		t.Errorf("summary.md = %q", summary)
	}
}

func TestReviewDryRunSkipsBackendAndHistory(t *testing.T) {
	ta := newTestApp(t, nil)
	ta.NewGenerator = func(*config.Config, *slog.Logger) (escalation.Generator, error) {
		t.Error("dry run must not build backends")
		return nil, errors.New("unexpected")
	}
	items := ta.writeFile(t, "items.yaml", itemsYAML)

	if code := ta.run(t, "review", "--items", items, "--out", filepath.Join(ta.dir, "out"), "--dry-run"); code != ExitSuccess {
		t.Fatalf("exit = %d, stderr:\n%s", code, ta.stderr)
	}
	if !strings.Contains(ta.stdout.String(), "Dry run") {
		t.Errorf("stdout should mention the dry run:\n%s", ta.stdout)
	}

	if code := ta.run(t, "--json", "history", "list"); code != ExitSuccess {
		t.Fatalf("history exit = %d, stderr:\n%s", code, ta.stderr)
	}
	var list HistoryListData
	if err := json.Unmarshal(decodeEnvelope(t, ta.stdout.Bytes()).Data, &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Runs) != 0 {
		t.Errorf("dry run recorded %d runs", len(list.Runs))
	}
}

func TestEstimateJSON(t *testing.T) {
	ta := newTestApp(t, nil)
	items := ta.writeFile(t, "items.yaml", itemsYAML)

	if code := ta.run(t, "--json", "estimate", "--items", items); code != ExitSuccess {
		t.Fatalf("exit = %d, stderr:\n%s", code, ta.stderr)
	}
	var data EstimateData
	if err := json.Unmarshal(decodeEnvelope(t, ta.stdout.Bytes()).Data, &data); err != nil {
		t.Fatal(err)
	}
	if len(data.Items) != 2 {
		t.Fatalf("items = %+v", data.Items)
	}
	if data.Items[0].Tier != model.TierCheap || data.Items[1].Tier != model.TierPremium {
		t.Errorf("tiers = %v, %v", data.Items[0].Tier, data.Items[1].Tier)
	}
	if data.Projection.Actual != 21 || data.Projection.Baseline != 40 {
		t.Errorf("projection = %+v", data.Projection)
	}
}

func TestEstimateText(t *testing.T) {
	ta := newTestApp(t, nil)
	items := ta.writeFile(t, "items.yaml", itemsYAML)

	if code := ta.run(t, "estimate", "--items", items, "--strategy", "capable"); code != ExitSuccess {
		t.Fatalf("exit = %d, stderr:\n%s", code, ta.stderr)
	}
	out := ta.stdout.String()
	for _, want := range []string{"tierguard estimate (capable)", "capable=2"} {
		if !strings.Contains(out, want) {
			t.Errorf("stdout missing %q:\n%s", want, out)
		}
	}
}

func TestHistoryAfterReview(t *testing.T) {
	ta := newTestApp(t, reviewer)
	items := ta.writeFile(t, "items.yaml", itemsYAML)

	if code := ta.run(t, "--json", "review", "--items", items, "--out", filepath.Join(ta.dir, "out"), "--fail-on-critical=false"); code != ExitSuccess {
		t.Fatalf("review exit = %d, stderr:\n%s", code, ta.stderr)
	}
	var data ReviewData
	if err := json.Unmarshal(decodeEnvelope(t, ta.stdout.Bytes()).Data, &data); err != nil {
		t.Fatal(err)
	}

	if code := ta.run(t, "history", "show", data.RunID); code != ExitSuccess {
		t.Fatalf("show exit = %d, stderr:\n%s", code, ta.stderr)
	}
	if !strings.Contains(ta.stdout.String(), data.RunID) {
		t.Errorf("show output missing run id:\n%s", ta.stdout)
	}

	if code := ta.run(t, "history", "show", "no-such-run"); code != ExitConfigError {
		t.Errorf("show unknown exit = %d, want %d", code, ExitConfigError)
	}

	if code := ta.run(t, "history", "trends", "--days", "0"); code != ExitConfigError {
		t.Errorf("trends --days 0 exit = %d, want %d", code, ExitConfigError)
	}
}

func TestConfigCommands(t *testing.T) {
	ta := newTestApp(t, nil)
	path := filepath.Join(ta.dir, "tg.toml")

	if code := ta.run(t, "--config", path, "config", "init"); code != ExitSuccess {
		t.Fatalf("init exit = %d, stderr:\n%s", code, ta.stderr)
	}
	if code := ta.run(t, "--config", path, "config", "init"); code != ExitFailure {
		t.Errorf("second init exit = %d, want %d", code, ExitFailure)
	}

	if code := ta.run(t, "--config", path, "config", "set", "routing.max_tier", "capable"); code != ExitSuccess {
		t.Fatalf("set exit = %d, stderr:\n%s", code, ta.stderr)
	}
	if code := ta.run(t, "--config", path, "config", "get", "routing.max_tier"); code != ExitSuccess {
		t.Fatalf("get exit = %d", code)
	}
	if got := strings.TrimSpace(ta.stdout.String()); got != "capable" {
		t.Errorf("get = %q, want capable", got)
	}

	if code := ta.run(t, "--config", path, "config", "set", "routing.strategy", "bogus"); code != ExitConfigError {
		t.Errorf("invalid set exit = %d, want %d", code, ExitConfigError)
	}

	if code := ta.run(t, "--config", path, "config", "set", "cloud.openrouter_key", "sk-or-secret-value"); code != ExitSuccess {
		t.Fatalf("set key exit = %d, stderr:\n%s", code, ta.stderr)
	}
	if strings.Contains(ta.stdout.String(), "secret-value") {
		t.Error("set must not echo the key")
	}
	if code := ta.run(t, "--config", path, "config", "show"); code != ExitSuccess {
		t.Fatalf("show exit = %d, stderr:\n%s", code, ta.stderr)
	}
	if strings.Contains(ta.stdout.String(), "secret-value") || !strings.Contains(ta.stdout.String(), "sha256:") {
		t.Errorf("show must mask the key:\n%s", ta.stdout)
	}

	if code := ta.run(t, "--json", "--config", path, "config", "path"); code != ExitSuccess {
		t.Fatalf("path exit = %d", code)
	}
	var p ConfigPathData
	if err := json.Unmarshal(decodeEnvelope(t, ta.stdout.Bytes()).Data, &p); err != nil {
		t.Fatal(err)
	}
	if p.Path != path || !p.Exists {
		t.Errorf("path = %+v", p)
	}
}

func TestVersionAndUnknown(t *testing.T) {
	ta := newTestApp(t, nil)

	if code := ta.run(t, "--json", "version"); code != ExitSuccess {
		t.Fatalf("version exit = %d", code)
	}
	var v VersionData
	if err := json.Unmarshal(decodeEnvelope(t, ta.stdout.Bytes()).Data, &v); err != nil {
		t.Fatal(err)
	}
	if v.Version != Version || v.GoVersion == "" {
		t.Errorf("version = %+v", v)
	}

	if code := ta.run(t, "frobnicate"); code != ExitConfigError {
		t.Errorf("unknown command exit = %d, want %d", code, ExitConfigError)
	}
	if code := ta.run(t); code != ExitSuccess || !strings.Contains(ta.stdout.String(), "Usage:") {
		t.Errorf("help exit = %d, stdout:\n%s", code, ta.stdout)
	}
}

// =============================================================================
// BACKEND WIRING TESTS (app.go)
// =============================================================================

func TestBuildGenerator(t *testing.T) {
	cfg := config.Default()
	_, err := BuildGenerator(cfg, nil)
	var verrs config.ValidateErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("missing key error = %v, want ValidateErrors", err)
	}
	if GetExitCode(err) != ExitConfigError {
		t.Errorf("exit = %d, want %d", GetExitCode(err), ExitConfigError)
	}

	cfg.Cloud.OpenRouterKey = "sk-or-test-key"
	cfg.Run.RequestsPerSecond = 5
	gen, err := BuildGenerator(cfg, nil)
	if err != nil || gen == nil {
		t.Fatalf("BuildGenerator() = %v, %v", gen, err)
	}

	local := config.Default()
	local.Routing.MaxTier = "cheap"
	gen, err = BuildGenerator(local, nil)
	if err != nil {
		t.Fatalf("local-only config should not need a key: %v", err)
	}
	if _, ok := gen.(*provider.TierRouter); !ok {
		t.Errorf("gen = %T, want *provider.TierRouter", gen)
	}
}

// =============================================================================
// DOCTOR TESTS (doctor.go)
// =============================================================================

// fakeBackends serves the Ollama root and tag list plus the OpenRouter
// model list.
func fakeBackends(t *testing.T, ollamaModels, cloudModels []string) (ollamaURL, cloudURL string) {
	t.Helper()
	om := http.NewServeMux()
	om.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "Ollama is running")
	})
	om.HandleFunc("/api/tags", func(w http.ResponseWriter, _ *http.Request) {
		var models []map[string]string
		for _, m := range ollamaModels {
			models = append(models, map[string]string{"name": m})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"models": models})
	})
	osrv := httptest.NewServer(om)
	t.Cleanup(osrv.Close)

	cm := http.NewServeMux()
	cm.HandleFunc("/models", func(w http.ResponseWriter, _ *http.Request) {
		var data []map[string]string
		for _, m := range cloudModels {
			data = append(data, map[string]string{"id": m, "name": m})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	})
	csrv := httptest.NewServer(cm)
	t.Cleanup(csrv.Close)

	return osrv.URL, csrv.URL
}

const doctorKey = "sk-or-v1-0123456789abcdefghijklmnopqrstuvwxyz"

func doctorConfig(ollamaURL, cloudURL, key string) string {
	return fmt.Sprintf(`
[tiers.cheap]
backend = "ollama"
model = "qwen2.5-coder"

[tiers.capable]
backend = "cloud"
model = "vendor/mid"

[tiers.premium]
backend = "cloud"
model = "vendor/top"

[local]
ollama_url = %q

[cloud]
base_url = %q
openrouter_key = %q

[history]
enabled = false
`, ollamaURL, cloudURL, key)
}

func TestDoctorAllPass(t *testing.T) {
	ollamaURL, cloudURL := fakeBackends(t, []string{"qwen2.5-coder:7b"}, []string{"vendor/mid", "vendor/top"})
	ta := newTestApp(t, nil)
	cfg := ta.writeFile(t, "tg.toml", doctorConfig(ollamaURL, cloudURL, doctorKey))

	code := ta.run(t, "--json", "--config", cfg, "doctor")
	if code != ExitSuccess {
		t.Fatalf("exit = %d, stdout:\n%s\nstderr:\n%s", code, ta.stdout, ta.stderr)
	}
	env := decodeEnvelope(t, ta.stdout.Bytes())
	var data DoctorData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Failed != 0 || data.Warned != 0 {
		t.Errorf("failed=%d warned=%d, checks: %+v", data.Failed, data.Warned, data.Checks)
	}
	// config, ollama, one ollama model, key, two cloud models, history
	if len(data.Checks) != 7 {
		t.Errorf("got %d checks, want 7: %+v", len(data.Checks), data.Checks)
	}
	if strings.Contains(ta.stdout.String(), doctorKey) {
		t.Error("doctor output must not contain the key")
	}
}

func TestDoctorReportsMissingModelAndKey(t *testing.T) {
	ollamaURL, cloudURL := fakeBackends(t, []string{"llama3:8b"}, nil)
	ta := newTestApp(t, nil)
	cfg := ta.writeFile(t, "tg.toml", doctorConfig(ollamaURL, cloudURL, ""))

	code := ta.run(t, "--config", cfg, "doctor")
	if code != ExitFailure {
		t.Fatalf("exit = %d, want %d", code, ExitFailure)
	}
	out := ta.stdout.String()
	for _, want := range []string{"ollama pull qwen2.5-coder", "OpenRouter key: not set", "[FAIL]", "2 failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDoctorOllamaDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	ta := newTestApp(t, nil)
	cfg := ta.writeFile(t, "tg.toml", `
[routing]
max_tier = "cheap"

[local]
ollama_url = "`+url+`"

[history]
enabled = false
`)
	code := ta.run(t, "--json", "--config", cfg, "doctor")
	if code != ExitFailure {
		t.Fatalf("exit = %d, want %d", code, ExitFailure)
	}
	env := decodeEnvelope(t, ta.stdout.Bytes())
	if env.Success {
		t.Error("envelope should report failure")
	}
	var data DoctorData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	// the cloud backend is unreachable under max_tier = cheap
	for _, c := range data.Checks {
		if strings.HasPrefix(c.Name, "OpenRouter") {
			t.Errorf("unexpected cloud check %+v", c)
		}
	}
	if data.Failed != 1 {
		t.Errorf("failed = %d, want 1: %+v", data.Failed, data.Checks)
	}
}

func TestHasOllamaModel(t *testing.T) {
	installed := []ollama.ModelInfo{{Name: "qwen2.5-coder:7b"}, {Name: "llama3"}}
	for name, want := range map[string]bool{
		"qwen2.5-coder":    true,
		"qwen2.5-coder:7b": true,
		"llama3":           true,
		"qwen2.5":          false,
		"mistral":          false,
	} {
		if got := hasOllamaModel(installed, name); got != want {
			t.Errorf("hasOllamaModel(%q) = %v, want %v", name, got, want)
		}
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
