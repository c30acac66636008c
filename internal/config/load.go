package config

import (
	"fmt"
	"os"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 3001,
		},
		Agent: AgentConfig{
			Name: "Adjutant",
		},
		Owner: OwnerConfig{
			Name: "Owner",
		},
		Anthropic: AnthropicConfig{
			Model:     "claude-sonnet-4-5-20250929",
			MaxTokens: 8192,
		},
		Queue: QueueConfig{
			MaxRetries:    3,
			RetryDelaySec: 30,
			LoginURL:      "https://console.anthropic.com/",
		},
		Compaction: CompactionConfig{
			Threshold: 50,
			KeepTail:  30,
		},
		Database: DatabaseConfig{
			Driver:     "sqlite",
			SQLitePath: "adjutant.db",
		},
		Telemetry: TelemetryConfig{
			Protocol:    "http",
			ServiceName: "adjutant",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars. A missing
// file is not an error; defaults plus env apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config. Env takes
// precedence over file values; secrets only live here.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("ADJUTANT_API_TOKEN", &c.Gateway.Token)
	envStr("ADJUTANT_ANTHROPIC_API_KEY", &c.Anthropic.APIKey)
	envStr("ADJUTANT_POSTGRES_DSN", &c.Database.PostgresDSN)
	envStr("ADJUTANT_TELEGRAM_TOKEN", &c.Channels.Telegram.Token)
	envStr("ADJUTANT_DISCORD_TOKEN", &c.Channels.Discord.Token)

	if c.Database.PostgresDSN != "" {
		c.Database.Driver = "postgres"
	}
}
