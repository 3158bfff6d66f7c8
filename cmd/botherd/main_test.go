package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func captureOutputWithExitCode(t *testing.T, run func() int) (int, string, string) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stdout failed: %v", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stderr failed: %v", err)
	}

	os.Stdout = stdoutW
	os.Stderr = stderrW

	code := run()

	_ = stdoutW.Close()
	_ = stderrW.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	stdoutBytes, _ := io.ReadAll(stdoutR)
	stderrBytes, _ := io.ReadAll(stderrR)

	_ = stdoutR.Close()
	_ = stderrR.Close()

	return code, string(stdoutBytes), string(stderrBytes)
}

func setVersionMetadataForTest(t *testing.T, v, commit, built string) {
	t.Helper()

	origVersion := version
	origCommit := gitCommit
	origBuildDate := buildDate

	version = v
	gitCommit = commit
	buildDate = built

	t.Cleanup(func() {
		version = origVersion
		gitCommit = origCommit
		buildDate = origBuildDate
	})
}

func TestRunCLIUnknownCommand(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"bogus"})
	})
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr, "Unknown command") {
		t.Fatalf("expected unknown command message, got %q", stderr)
	}
}

func TestRunCLINoArgs(t *testing.T) {
	code, _, _ := captureOutputWithExitCode(t, func() int {
		return runCLI(nil)
	})
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
}

func TestRunCLIHelp(t *testing.T) {
	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"help"})
	})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(stdout, "botherd") || !strings.Contains(stdout, "start") {
		t.Fatalf("usage missing expected content: %q", stdout)
	}
}

func TestRunVersionPlain(t *testing.T) {
	setVersionMetadataForTest(t, "1.2.3", "abcdef1234567890", "2026-01-01T00:00:00Z")

	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runVersion(nil)
	})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(stdout, "botherd 1.2.3") {
		t.Fatalf("expected version line, got %q", stdout)
	}
	if !strings.Contains(stdout, "abcdef123456") {
		t.Fatalf("expected shortened commit, got %q", stdout)
	}
}

func TestRunVersionJSON(t *testing.T) {
	setVersionMetadataForTest(t, "1.2.3", "abcdef1234567890", "2026-01-01T00:00:00Z")

	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runVersion([]string{"--json"})
	})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}

	var info versionInfo
	if err := json.Unmarshal([]byte(stdout), &info); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, stdout)
	}
	if info.Version != "1.2.3" {
		t.Fatalf("unexpected version %q", info.Version)
	}
	if info.Commit != "abcdef123456" {
		t.Fatalf("unexpected commit %q", info.Commit)
	}
}

func TestRunConfigCheckValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
service:
  base_url: http://hive.example.com
bots:
  - name: nokamute1
    endpoint: /games/nokamute1
    api_key: k
    engine_command: nokamute uhp
    move_budget: depth 1
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runConfigCheck([]string{"--config", path})
	})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(stdout, "Configuration OK") {
		t.Fatalf("expected OK message, got %q", stdout)
	}
}

func TestRunConfigCheckInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("service:\n  base_url: http://h\nbots: []\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigCheck([]string{"--config", path})
	})
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr, "Configuration invalid") {
		t.Fatalf("expected invalid message, got %q", stderr)
	}
}
