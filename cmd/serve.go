package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/adjutant-ai/adjutant/internal/agent"
	"github.com/adjutant-ai/adjutant/internal/bootstrap"
	"github.com/adjutant-ai/adjutant/internal/config"
	"github.com/adjutant-ai/adjutant/internal/httpapi"
	"github.com/adjutant-ai/adjutant/internal/identity"
	"github.com/adjutant-ai/adjutant/internal/notify"
	"github.com/adjutant-ai/adjutant/internal/providers"
	"github.com/adjutant-ai/adjutant/internal/queue"
	"github.com/adjutant-ai/adjutant/internal/routing"
	"github.com/adjutant-ai/adjutant/internal/scheduler"
	"github.com/adjutant-ai/adjutant/internal/store/sqldb"
	"github.com/adjutant-ai/adjutant/internal/telemetry"
)

func runServe() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Anthropic.APIKey == "" {
		slog.Error("ADJUTANT_ANTHROPIC_API_KEY environment variable is not set")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry, Version)
	if err != nil {
		slog.Error("telemetry setup failed", "error", err)
		os.Exit(1)
	}
	defer shutdownTelemetry(context.Background())

	if err := runMigrations(cfg, "up", 0); err != nil {
		slog.Error("database migration failed", "error", err)
		os.Exit(1)
	}

	db, err := sqldb.Open(cfg.Database.Driver, databaseDSN(cfg))
	if err != nil {
		slog.Error("failed to open database", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	messages := sqldb.NewMessageStore(db)
	agents := sqldb.NewAgentStore(db)
	interlocutors := sqldb.NewInterlocutorStore(db)

	if err := bootstrap.Seed(ctx, agents, interlocutors, cfg); err != nil {
		slog.Error("bootstrap seeding failed", "error", err)
		os.Exit(1)
	}

	resolver, err := identity.NewResolver(ctx, interlocutors)
	if err != nil {
		slog.Error("failed to load owner identities", "error", err)
		os.Exit(1)
	}
	router := routing.NewRouter(resolver, agents)

	providerOpts := []providers.AnthropicOption{}
	if cfg.Anthropic.Model != "" {
		providerOpts = append(providerOpts, providers.WithModel(cfg.Anthropic.Model))
	}
	if cfg.Anthropic.BaseURL != "" {
		providerOpts = append(providerOpts, providers.WithBaseURL(cfg.Anthropic.BaseURL))
	}
	if cfg.Anthropic.MaxTokens > 0 {
		providerOpts = append(providerOpts, providers.WithMaxTokens(cfg.Anthropic.MaxTokens))
	}
	provider := providers.NewAnthropic(cfg.Anthropic.APIKey, providerOpts...)

	compactor := agent.NewCompactor(messages, provider, cfg.Compaction.Threshold, cfg.Compaction.KeepTail)
	runner := agent.NewRunner(agent.RunnerConfig{
		Store:      messages,
		Agents:     agents,
		Provider:   provider,
		Compactor:  compactor,
		BasePrompt: cfg.Agent.SystemPrompt,
	})

	registry := notify.NewRegistry()
	if cfg.Channels.Telegram.Token != "" {
		tg, err := notify.NewTelegram(cfg.Channels.Telegram.Token)
		if err != nil {
			slog.Warn("telegram notifier unavailable", "error", err)
		} else {
			registry.Register(tg)
		}
	}
	if cfg.Channels.Discord.Token != "" {
		dc, err := notify.NewDiscord(cfg.Channels.Discord.Token)
		if err != nil {
			slog.Warn("discord notifier unavailable", "error", err)
		} else {
			registry.Register(dc)
		}
	}

	ingest := queue.NewIngestor(router, runner, registry, queue.Config{
		MaxRetries: cfg.Queue.MaxRetries,
		RetryDelay: cfg.Queue.RetryDelay(),
		LoginURL:   cfg.Queue.LoginURL,
	})
	ingest.Start(ctx)

	sched := scheduler.New(cfg.Scheduler.Jobs, ingest, registry)
	go sched.Start(ctx)

	go func() {
		sig := <-sigCh
		slog.Info("graceful shutdown initiated", "signal", sig)
		cancel()
	}()

	slog.Info("adjutant starting",
		"version", Version,
		"driver", cfg.Database.Driver,
		"model", cfg.Anthropic.Model,
	)

	server := httpapi.NewServer(cfg.Gateway, ingest)
	if err := server.Start(ctx); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}

	slog.Info("shutdown complete")
}

// databaseDSN picks the connection string for the configured driver.
func databaseDSN(cfg *config.Config) string {
	if cfg.Database.Driver == "postgres" {
		return cfg.Database.PostgresDSN
	}
	return cfg.Database.SQLitePath
}
