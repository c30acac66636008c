// Package identity maps channel-native sender identities to agent
// assignments. The owner's identities and the main agent id are cached
// once at startup; they are seed data and never change at runtime.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/adjutant-ai/adjutant/internal/store"
)

// Resolution is the outcome of resolving a live identity: which agent owns
// the conversation and how to attribute the sender.
type Resolution struct {
	AgentID     int64
	IdentityID  int64
	DisplayName string
}

// Resolver answers "who is this sender and where do their messages go".
type Resolver struct {
	interlocutors store.InterlocutorStore
	owner         map[string]struct{}
	mainAgentID   int64
}

func ownerKey(service, identifier string) string {
	return service + "\x00" + identifier
}

// NewResolver builds a resolver, loading the owner identity set once.
func NewResolver(ctx context.Context, interlocutors store.InterlocutorStore) (*Resolver, error) {
	idents, err := interlocutors.OwnerIdentities(ctx)
	if err != nil {
		return nil, fmt.Errorf("load owner identities: %w", err)
	}

	owner := make(map[string]struct{}, len(idents))
	for _, id := range idents {
		if id.Identifier != nil {
			owner[ownerKey(id.Service, *id.Identifier)] = struct{}{}
		}
	}
	slog.Info("identity resolver ready", "owner_identities", len(owner))

	return &Resolver{
		interlocutors: interlocutors,
		owner:         owner,
		mainAgentID:   store.MainAgentID,
	}, nil
}

// MainAgentID returns the id of the owner's primary conversation agent.
func (r *Resolver) MainAgentID() int64 { return r.mainAgentID }

// IsOwnerIdentity reports whether (service, identifier) belongs to the
// owner. O(1) against the startup cache, no store round-trip.
func (r *Resolver) IsOwnerIdentity(service, identifier string) bool {
	_, ok := r.owner[ownerKey(service, identifier)]
	return ok
}

// Resolve maps (service, identifier) to an agent assignment. Returns
// (nil, nil) when no enabled interlocutor holds a live matching identity,
// or when the matched interlocutor has no assigned agent — a provisioned
// but inert contact whose messages are intentionally dropped.
func (r *Resolver) Resolve(ctx context.Context, service, identifier string) (*Resolution, error) {
	match, err := r.interlocutors.ResolveIdentity(ctx, service, identifier)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if match.AssignedAgentID == nil {
		slog.Info("identity has no assigned agent, dropping",
			"service", service, "interlocutor", match.InterlocutorID)
		return nil, nil
	}
	return &Resolution{
		AgentID:     *match.AssignedAgentID,
		IdentityID:  match.IdentityID,
		DisplayName: match.DisplayName,
	}, nil
}
