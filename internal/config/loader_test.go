package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `
service:
  base_url: http://hive.example.com
  poll_interval: 2s
  queue_capacity: 500
  max_engines: 3
  tracker_retention: 45s
bots:
  - name: nokamute1
    endpoint: /games/nokamute1
    api_key: nokamute1_key
    engine_command: ../nokamute/target/release/nokamute uhp --threads=1
    move_budget: depth 1
  - name: nokamute2
    endpoint: /games/nokamute2
    api_key: nokamute2_key
    engine_command: ../nokamute/target/release/nokamute uhp
    move_budget: time 00:00:01
`

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Service.BaseURL != "http://hive.example.com" {
		t.Errorf("base_url not parsed: %q", cfg.Service.BaseURL)
	}
	if cfg.Service.PollInterval != 2*time.Second {
		t.Errorf("poll_interval not parsed: %v", cfg.Service.PollInterval)
	}
	if cfg.Service.QueueCapacity != 500 {
		t.Errorf("queue_capacity not parsed: %d", cfg.Service.QueueCapacity)
	}
	if cfg.Service.TrackerRetention != 45*time.Second {
		t.Errorf("tracker_retention not parsed: %v", cfg.Service.TrackerRetention)
	}

	// Untouched fields keep their defaults.
	if cfg.Service.EngineTimeout != 60*time.Second {
		t.Errorf("engine_timeout default lost: %v", cfg.Service.EngineTimeout)
	}
	if cfg.Service.CleanupInterval != 2*time.Second {
		t.Errorf("cleanup_interval default lost: %v", cfg.Service.CleanupInterval)
	}

	bots := cfg.BotList()
	if len(bots) != 2 {
		t.Fatalf("expected 2 bots, got %d", len(bots))
	}
	if bots[1].MoveBudget != "time 00:00:01" {
		t.Errorf("move_budget not parsed: %q", bots[1].MoveBudget)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("HIVE_TEST_KEY", "sekrit")

	cfg, err := Load(writeConfig(t, `
service:
  base_url: http://hive.example.com
bots:
  - name: nokamute1
    endpoint: /games/nokamute1
    api_key: ${HIVE_TEST_KEY}
    engine_command: nokamute uhp
    move_budget: depth 1
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Bots[0].APIKey != "sekrit" {
		t.Errorf("env var not expanded: %q", cfg.Bots[0].APIKey)
	}
}

func TestLoadValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		wantErr string
	}{
		{
			name:    "missing base_url",
			config:  "bots:\n  - name: x\n    endpoint: /g\n    api_key: k\n    engine_command: e\n    move_budget: depth 1\n",
			wantErr: "base_url",
		},
		{
			name:    "no bots",
			config:  "service:\n  base_url: http://h\n",
			wantErr: "at least one bot",
		},
		{
			name: "bad move budget",
			config: `
service:
  base_url: http://h
bots:
  - name: x
    endpoint: /g
    api_key: k
    engine_command: e
    move_budget: nodes 100
`,
			wantErr: "move_budget",
		},
		{
			name: "duplicate bot names",
			config: `
service:
  base_url: http://h
bots:
  - name: x
    endpoint: /g
    api_key: k
    engine_command: e
    move_budget: depth 1
  - name: x
    endpoint: /g2
    api_key: k
    engine_command: e
    move_budget: depth 1
`,
			wantErr: "duplicate",
		},
		{
			name: "relative endpoint",
			config: `
service:
  base_url: http://h
bots:
  - name: x
    endpoint: games/x
    api_key: k
    engine_command: e
    move_budget: depth 1
`,
			wantErr: "endpoint",
		},
		{
			name: "api enabled without key",
			config: `
service:
  base_url: http://h
api:
  enabled: true
bots:
  - name: x
    endpoint: /g
    api_key: k
    engine_command: e
    move_budget: depth 1
`,
			wantErr: "api.api_key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.config))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
