package config

import (
	"time"

	"github.com/hivegame/botherd/internal/bot"
)

// Config represents the complete botherd configuration.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	API     APIConfig     `yaml:"api,omitempty"`
	Bots    []BotConfig   `yaml:"bots"`
}

// ServiceConfig defines core pipeline settings. Everything here is fixed for
// the process lifetime.
type ServiceConfig struct {
	Name             string        `yaml:"name"`
	BaseURL          string        `yaml:"base_url"`
	LogLevel         string        `yaml:"log_level"`
	LogFormat        string        `yaml:"log_format"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	PollJitter       time.Duration `yaml:"poll_jitter"`
	QueueCapacity    int           `yaml:"queue_capacity"`
	MaxEngines       int           `yaml:"max_engines"`
	EngineTimeout    time.Duration `yaml:"engine_timeout"`
	TrackerRetention time.Duration `yaml:"tracker_retention"`
	CleanupInterval  time.Duration `yaml:"cleanup_interval"`
	JournalPath      string        `yaml:"journal_path"`
	JournalRetention time.Duration `yaml:"journal_retention"`
	SubmitMoves      bool          `yaml:"submit_moves"`
}

// APIConfig defines HTTP status API settings.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	APIKey  string `yaml:"api_key"`
}

// BotConfig defines one bot roster entry.
type BotConfig struct {
	Name          string `yaml:"name"`
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	EngineCommand string `yaml:"engine_command"`
	MoveBudget    string `yaml:"move_budget"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:             "botherd",
			LogLevel:         "info",
			LogFormat:        "text",
			PollInterval:     time.Second,
			PollJitter:       0,
			QueueCapacity:    1000,
			MaxEngines:       5,
			EngineTimeout:    60 * time.Second,
			TrackerRetention: 30 * time.Second,
			CleanupInterval:  2 * time.Second,
			JournalPath:      "./data/botherd.db",
			JournalRetention: 7 * 24 * time.Hour,
			SubmitMoves:      true,
		},
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8080",
		},
	}
}

// BotList converts the roster into the immutable runtime bots shared across
// the pipeline.
func (c *Config) BotList() []*bot.Bot {
	out := make([]*bot.Bot, 0, len(c.Bots))
	for _, bc := range c.Bots {
		out = append(out, &bot.Bot{
			Name:          bc.Name,
			Endpoint:      bc.Endpoint,
			APIKey:        bc.APIKey,
			EngineCommand: bc.EngineCommand,
			MoveBudget:    bc.MoveBudget,
		})
	}
	return out
}
