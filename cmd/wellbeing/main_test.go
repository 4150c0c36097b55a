package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"wellbeing/internal/testsupport"
)

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration to "+target)
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected sample config: %v", err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", ""); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, "", ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigShowAndPath(t *testing.T) {
	env := setupCLITestEnv(t)
	override := filepath.Join(filepath.Dir(env.cfg.Framework.SocketPath), "other.sock")

	out, _, err := runCLI(t, []string{"config", "show"}, override, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[framework]")
	requireContains(t, out, override)

	out, _, err = runCLI(t, []string{"config", "path"}, "", env.configPath)
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if strings.TrimSpace(out) != env.configPath {
		t.Fatalf("expected %s, got %q", env.configPath, out)
	}

	out, _, err = runCLI(t, []string{"config", "validate"}, "", env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
}

func TestStatusReportsConnectedFramework(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithServiceVersion(3))
	testsupport.StartFramework(t, env.cfg)

	out, _, err := runCLI(t, []string{"status"}, "", env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "[OK] Listening")
	requireContains(t, out, "Connected (version 3)")
	requireContains(t, out, env.cfg.Framework.Target)

	out, _, err = runCLI(t, []string{"status", "--json"}, "", env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var report statusReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode status: %v\n%s", err, out)
	}
	if !report.Available || report.Version != 3 || report.State != "connected" {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.AirplaneMode == nil || *report.AirplaneMode {
		t.Fatalf("expected airplane mode off, got %+v", report.AirplaneMode)
	}
}

func TestStatusReportsMissingFramework(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, "", env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "[ERROR]")
	requireContains(t, out, "not found")
	requireContains(t, out, "Unavailable")
	requireContains(t, out, "n/a")
}

func TestAirplaneCommandRoundTrip(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.StartFramework(t, env.cfg)

	out, _, err := runCLI(t, []string{"airplane", "on"}, "", env.configPath)
	if err != nil {
		t.Fatalf("airplane on: %v", err)
	}
	requireContains(t, out, "Airplane mode on")

	out, _, err = runCLI(t, []string{"airplane"}, "", env.configPath)
	if err != nil {
		t.Fatalf("airplane: %v", err)
	}
	requireContains(t, out, "Airplane mode is on")

	if _, _, err := runCLI(t, []string{"airplane", "sideways"}, "", env.configPath); err == nil {
		t.Fatal("expected invalid argument to fail")
	}
}

func TestAirplaneSkippedWithoutFramework(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"airplane", "on"}, "", env.configPath)
	if err != nil {
		t.Fatalf("airplane on: %v", err)
	}
	requireContains(t, out, "skipped")

	out, _, err = runCLI(t, []string{"airplane"}, "", env.configPath)
	if err != nil {
		t.Fatalf("airplane: %v", err)
	}
	requireContains(t, out, "framework unavailable")
}

func TestFrameworkPing(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"framework", "ping"}, "", env.configPath)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected missing socket error, got %v", err)
	}

	testsupport.StartFramework(t, env.cfg)
	out, _, err := runCLI(t, []string{"framework", "ping"}, "", env.configPath)
	if err != nil {
		t.Fatalf("framework ping: %v", err)
	}
	requireContains(t, out, "is listening")
}

func TestWrapDialError(t *testing.T) {
	err := wrapDialError(syscall.ECONNREFUSED, "/run/x.sock")
	requireContains(t, err.Error(), "refused")

	err = wrapDialError(&os.PathError{Op: "dial", Path: "/run/x.sock", Err: syscall.ENOENT}, "/run/x.sock")
	requireContains(t, err.Error(), "not found")

	inner := errors.New("boom")
	if err := wrapDialError(inner, "/run/x.sock"); !errors.Is(err, inner) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestSocketFlagOverridesConfig(t *testing.T) {
	env := setupCLITestEnv(t)
	configFlag := env.configPath
	socketFlag := "/tmp/override.sock"
	ctx := newCommandContext(&socketFlag, &configFlag)

	cfg, err := ctx.ensureConfig()
	if err != nil {
		t.Fatalf("ensureConfig: %v", err)
	}
	if cfg.Framework.SocketPath != socketFlag {
		t.Fatalf("expected socket override, got %s", cfg.Framework.SocketPath)
	}
	if ctx.configPath != env.configPath {
		t.Fatalf("expected config path %s, got %s", env.configPath, ctx.configPath)
	}
	if got := ctx.socketPath(); got != socketFlag {
		t.Fatalf("expected socketPath %s, got %s", socketFlag, got)
	}
}
