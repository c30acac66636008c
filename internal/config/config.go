// Package config holds the runtime configuration for the adjutant
// service. Secrets (API keys, bot tokens, database DSN) come from the
// environment only and are never written to the config file.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Gateway    GatewayConfig    `json:"gateway"`
	Agent      AgentConfig      `json:"agent"`
	Owner      OwnerConfig      `json:"owner"`
	Anthropic  AnthropicConfig  `json:"anthropic"`
	Queue      QueueConfig      `json:"queue"`
	Compaction CompactionConfig `json:"compaction"`
	Database   DatabaseConfig   `json:"database"`
	Channels   ChannelsConfig   `json:"channels,omitempty"`
	Scheduler  SchedulerConfig  `json:"scheduler,omitempty"`
	Telemetry  TelemetryConfig  `json:"telemetry,omitempty"`
}

// GatewayConfig configures the HTTP ingress.
type GatewayConfig struct {
	Host  string `json:"host"`
	Port  int    `json:"port"`
	Token string `json:"-"` // from env ADJUTANT_API_TOKEN only
}

// AgentConfig seeds the main agent.
type AgentConfig struct {
	Name         string `json:"name"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// OwnerConfig seeds the owner interlocutor and their channel identities.
type OwnerConfig struct {
	Name       string        `json:"name"`
	Identities []IdentityRef `json:"identities,omitempty"`
}

// IdentityRef is one (channel, channel-native id) pair of the owner.
type IdentityRef struct {
	Service    string `json:"service"`
	Identifier string `json:"identifier"`
}

// AnthropicConfig configures the completion service.
type AnthropicConfig struct {
	APIKey    string `json:"-"` // from env ADJUTANT_ANTHROPIC_API_KEY only
	Model     string `json:"model,omitempty"`
	BaseURL   string `json:"base_url,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

// QueueConfig tunes ingestion retry behavior.
type QueueConfig struct {
	MaxRetries    int    `json:"max_retries,omitempty"`
	RetryDelaySec int    `json:"retry_delay_sec,omitempty"`
	LoginURL      string `json:"login_url,omitempty"`
}

// RetryDelay returns the configured delay as a duration (0 = default).
func (q QueueConfig) RetryDelay() time.Duration {
	return time.Duration(q.RetryDelaySec) * time.Second
}

// CompactionConfig tunes the conversation compaction engine.
type CompactionConfig struct {
	Threshold int `json:"threshold,omitempty"` // messages before compaction triggers
	KeepTail  int `json:"keep_tail,omitempty"` // trailing messages kept verbatim
}

// DatabaseConfig selects the storage backend: "sqlite" (default,
// single-file) or "postgres".
type DatabaseConfig struct {
	Driver      string `json:"driver,omitempty"`
	SQLitePath  string `json:"sqlite_path,omitempty"`
	PostgresDSN string `json:"-"` // from env ADJUTANT_POSTGRES_DSN only
}

// ChannelsConfig holds push-notification channel credentials.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram,omitempty"`
	Discord  DiscordConfig  `json:"discord,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"-"` // from env ADJUTANT_TELEGRAM_TOKEN only
}

type DiscordConfig struct {
	Token string `json:"-"` // from env ADJUTANT_DISCORD_TOKEN only
}

// SchedulerConfig holds cron-style reminder jobs.
type SchedulerConfig struct {
	Jobs []ScheduledJob `json:"jobs,omitempty"`
}

// ScheduledJob is one recurring prompt. When Channel and To are set the
// reply is also delivered there.
type ScheduledJob struct {
	Name    string `json:"name"`
	Expr    string `json:"expr"` // cron expression
	Message string `json:"message"`
	Channel string `json:"channel,omitempty"`
	To      string `json:"to,omitempty"`
}

// TelemetryConfig configures the optional OTLP trace exporter. Empty
// endpoint disables tracing.
type TelemetryConfig struct {
	Endpoint    string `json:"endpoint,omitempty"`
	Protocol    string `json:"protocol,omitempty"` // "http" (default) or "grpc"
	Insecure    bool   `json:"insecure,omitempty"`
	ServiceName string `json:"service_name,omitempty"`
}
