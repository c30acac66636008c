// Package bootstrap seeds the immutable startup data: the main agent and
// the owner interlocutor with their configured channel identities.
// Seeding is idempotent; existing rows are never overwritten.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/adjutant-ai/adjutant/internal/config"
	"github.com/adjutant-ai/adjutant/internal/store"
)

// Seed ensures the main agent and owner exist. Called once at startup
// before the identity resolver caches are built.
func Seed(ctx context.Context, agents store.AgentStore, interlocutors store.InterlocutorStore, cfg *config.Config) error {
	if err := agents.EnsureAgent(ctx, &store.Agent{
		ID:                   store.MainAgentID,
		Name:                 cfg.Agent.Name,
		SystemPromptFragment: cfg.Agent.SystemPrompt,
	}); err != nil {
		return fmt.Errorf("seed main agent: %w", err)
	}

	identities := make([]store.Identity, 0, len(cfg.Owner.Identities))
	for _, id := range cfg.Owner.Identities {
		identifier := id.Identifier
		identities = append(identities, store.Identity{
			Service:    id.Service,
			Identifier: &identifier,
		})
	}
	if err := interlocutors.EnsureOwner(ctx, cfg.Owner.Name, identities); err != nil {
		return fmt.Errorf("seed owner: %w", err)
	}

	slog.Info("bootstrap complete",
		"main_agent", cfg.Agent.Name, "owner_identities", len(identities))
	return nil
}
