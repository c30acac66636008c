// Package routing decides which agent conversation an inbound message
// belongs to. Routing is a pure decision over (source, sender, explicit
// target); a message that cannot be routed is dropped, not errored.
package routing

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/adjutant-ai/adjutant/internal/identity"
)

// Inbound message source markers. Everything else is an external channel
// name (e.g. "signal", "telegram") whose sender must resolve to an identity.
const (
	// SourceAgent marks an inter-agent message; it must carry an explicit
	// target agent.
	SourceAgent = "agent"

	// SourceLocal marks a direct invocation (CLI, local API call).
	SourceLocal = "local"

	// SourceCron marks a scheduler-triggered message.
	SourceCron = "cron"

	// SourceCoder marks a reply posted back by the code-generation agent.
	SourceCoder = "coder"

	// PluginSourcePrefix marks plugin callbacks ("plugin:weather", ...).
	PluginSourcePrefix = "plugin:"
)

// OwnerLabel is the sender label for the owner's own messages.
const OwnerLabel = "owner"

// Input is what arrives with a message, before routing.
type Input struct {
	Source        string
	Sender        string
	TargetAgentID int64 // 0 = unset
}

// Decision is a successful routing outcome. At most one of
// SenderIdentityID / SenderAgentID is set.
type Decision struct {
	AgentID          int64
	SenderLabel      string
	SenderIdentityID *int64
	SenderAgentID    *int64
	IsMain           bool
}

// IdentityResolver is the slice of the identity package the router needs.
type IdentityResolver interface {
	MainAgentID() int64
	IsOwnerIdentity(service, identifier string) bool
	Resolve(ctx context.Context, service, identifier string) (*identity.Resolution, error)
}

// AgentNamer looks up an agent's display name for sender attribution.
type AgentNamer interface {
	AgentName(ctx context.Context, id int64) (string, error)
}

// Router turns (source, sender, explicit target) into a routing decision.
type Router struct {
	identities IdentityResolver
	agents     AgentNamer
}

func NewRouter(identities IdentityResolver, agents AgentNamer) *Router {
	return &Router{identities: identities, agents: agents}
}

// Route resolves in to a target agent and sender attribution. ok=false
// means the message is dropped: no completion is attempted, no message is
// persisted, and the caller resolves with an empty result.
func (r *Router) Route(ctx context.Context, in Input) (Decision, bool, error) {
	mainID := r.identities.MainAgentID()

	// Inter-agent messages require an explicit target; the sender is
	// resolved to a label for attribution only.
	if in.Source == SourceAgent {
		if in.TargetAgentID == 0 {
			slog.Info("routing: drop", "reason", "agent message without target")
			return Decision{}, false, nil
		}
		dec := Decision{
			AgentID:     in.TargetAgentID,
			SenderLabel: fmt.Sprintf("agent:%s", in.Sender),
			IsMain:      in.TargetAgentID == mainID,
		}
		if senderID, err := strconv.ParseInt(in.Sender, 10, 64); err == nil {
			dec.SenderAgentID = &senderID
			if name, err := r.agents.AgentName(ctx, senderID); err == nil {
				dec.SenderLabel = name
			}
		}
		return dec, true, nil
	}

	// An explicit target on any other source bypasses identity resolution
	// entirely; the caller already knows the destination.
	if in.TargetAgentID != 0 {
		label := in.Source
		if label == "" {
			label = OwnerLabel
		}
		return Decision{
			AgentID:     in.TargetAgentID,
			SenderLabel: label,
			IsMain:      in.TargetAgentID == mainID,
		}, true, nil
	}

	// A direct local call carries neither source nor sender.
	if in.Source == "" && in.Sender == "" {
		return Decision{AgentID: mainID, SenderLabel: OwnerLabel, IsMain: true}, true, nil
	}

	if isInternalSource(in.Source) {
		return Decision{AgentID: mainID, SenderLabel: in.Source, IsMain: true}, true, nil
	}

	// External messages must carry both a channel and a channel-native
	// sender id.
	if in.Source == "" || in.Sender == "" {
		slog.Info("routing: drop", "reason", "incomplete external attribution",
			"source", in.Source)
		return Decision{}, false, nil
	}

	if r.identities.IsOwnerIdentity(in.Source, in.Sender) {
		return Decision{AgentID: mainID, SenderLabel: OwnerLabel, IsMain: true}, true, nil
	}

	res, err := r.identities.Resolve(ctx, in.Source, in.Sender)
	if err != nil {
		return Decision{}, false, fmt.Errorf("resolve identity: %w", err)
	}
	if res == nil {
		slog.Info("routing: drop", "reason", "unknown or unassigned identity",
			"source", in.Source)
		return Decision{}, false, nil
	}

	identityID := res.IdentityID
	return Decision{
		AgentID:          res.AgentID,
		SenderLabel:      res.DisplayName,
		SenderIdentityID: &identityID,
		IsMain:           res.AgentID == mainID,
	}, true, nil
}

func isInternalSource(source string) bool {
	switch source {
	case SourceLocal, SourceCron, SourceCoder:
		return true
	}
	return strings.HasPrefix(source, PluginSourcePrefix)
}
