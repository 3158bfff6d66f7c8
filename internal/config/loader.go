package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// moveBudgetPattern accepts the two budget forms engines understand: a fixed
// search depth or a wall-clock time budget.
var moveBudgetPattern = regexp.MustCompile(`^(depth [1-9][0-9]*|time [0-9]{2}:[0-9]{2}:[0-9]{2})$`)

// Load reads and parses configuration from a YAML file. Values like
// ${HIVE_API_KEY} are expanded from the environment before parsing.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	data = expandEnvVars(data)

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg = applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// expandEnvVars replaces ${VAR} references with environment values. Unknown
// variables expand to the empty string, which validation then catches for
// required fields.
func expandEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envVarPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// applyDefaults fills zero values back in after unmarshal so a partial file
// cannot clear a default.
func applyDefaults(cfg *Config) *Config {
	def := Defaults()
	if cfg.Service.Name == "" {
		cfg.Service.Name = def.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = def.Service.LogLevel
	}
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = def.Service.LogFormat
	}
	if cfg.Service.PollInterval <= 0 {
		cfg.Service.PollInterval = def.Service.PollInterval
	}
	if cfg.Service.QueueCapacity <= 0 {
		cfg.Service.QueueCapacity = def.Service.QueueCapacity
	}
	if cfg.Service.MaxEngines <= 0 {
		cfg.Service.MaxEngines = def.Service.MaxEngines
	}
	if cfg.Service.EngineTimeout <= 0 {
		cfg.Service.EngineTimeout = def.Service.EngineTimeout
	}
	if cfg.Service.TrackerRetention <= 0 {
		cfg.Service.TrackerRetention = def.Service.TrackerRetention
	}
	if cfg.Service.CleanupInterval <= 0 {
		cfg.Service.CleanupInterval = def.Service.CleanupInterval
	}
	if cfg.Service.JournalPath == "" {
		cfg.Service.JournalPath = def.Service.JournalPath
	}
	if cfg.API.Listen == "" {
		cfg.API.Listen = def.API.Listen
	}
	return cfg
}

func validate(cfg *Config) error {
	if cfg.Service.BaseURL == "" {
		return fmt.Errorf("service.base_url is required")
	}
	if len(cfg.Bots) == 0 {
		return fmt.Errorf("at least one bot must be configured")
	}
	if cfg.API.Enabled && cfg.API.APIKey == "" {
		return fmt.Errorf("api.api_key is required when the API is enabled")
	}

	seen := make(map[string]bool, len(cfg.Bots))
	for i, b := range cfg.Bots {
		if b.Name == "" {
			return fmt.Errorf("bots[%d]: name is required", i)
		}
		if seen[b.Name] {
			return fmt.Errorf("bots[%d]: duplicate bot name %q", i, b.Name)
		}
		seen[b.Name] = true
		if !strings.HasPrefix(b.Endpoint, "/") {
			return fmt.Errorf("bot %q: endpoint must start with '/', got %q", b.Name, b.Endpoint)
		}
		if b.APIKey == "" {
			return fmt.Errorf("bot %q: api_key is required", b.Name)
		}
		if b.EngineCommand == "" {
			return fmt.Errorf("bot %q: engine_command is required", b.Name)
		}
		if !moveBudgetPattern.MatchString(b.MoveBudget) {
			return fmt.Errorf("bot %q: move_budget must look like 'depth 1' or 'time 00:00:01', got %q", b.Name, b.MoveBudget)
		}
	}
	return nil
}
