package store

import (
	"context"
	"errors"

	"github.com/adjutant-ai/adjutant/internal/providers"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// MessageStore is the append-only conversation log plus the per-agent
// compaction boundary record.
type MessageStore interface {
	// LoadMessages returns an agent's replayable history. When a compaction
	// boundary exists, the result is a synthetic summary message followed by
	// the messages after the boundary (with any leading tool results
	// stripped, see BuildHistory).
	LoadMessages(ctx context.Context, agentID int64) ([]providers.Message, error)

	// SaveTurn appends every message one turn produced, atomically: either
	// all of them land in the log or none do. Assigned ids are written back
	// into the records.
	SaveTurn(ctx context.Context, msgs []*Message) error

	// LatestCompaction returns the current boundary for an agent, or
	// ErrNotFound if the agent has never been compacted.
	LatestCompaction(ctx context.Context, agentID int64) (*Compaction, error)

	// SaveCompaction persists a new boundary row.
	SaveCompaction(ctx context.Context, agentID int64, summary string, upToMessageID int64) error

	// MessageIDAtOffset returns the id of the message `offset` positions
	// before the newest message with id > afterID (offset 0 is the newest).
	// Returns ErrNotFound when fewer rows exist.
	MessageIDAtOffset(ctx context.Context, agentID, afterID int64, offset int) (int64, error)
}

// AgentStore manages agent rows.
type AgentStore interface {
	GetAgent(ctx context.Context, id int64) (*Agent, error)
	AgentName(ctx context.Context, id int64) (string, error)
	EnsureAgent(ctx context.Context, agent *Agent) error
}

// InterlocutorStore manages contacts and their channel identities.
type InterlocutorStore interface {
	// ResolveIdentity finds the enabled interlocutor holding a live
	// (non-null) identity for (service, identifier). ErrNotFound when no
	// such mapping exists.
	ResolveIdentity(ctx context.Context, service, identifier string) (*IdentityMatch, error)

	// OwnerIdentities returns all live identities of the owner interlocutor.
	OwnerIdentities(ctx context.Context) ([]Identity, error)

	// EnsureOwner seeds the owner interlocutor and its identities from
	// configuration. Idempotent.
	EnsureOwner(ctx context.Context, displayName string, identities []Identity) error
}
