package store

import (
	"time"

	"github.com/adjutant-ai/adjutant/internal/providers"
)

// MainAgentID is the distinguished agent representing the owner's primary
// conversation. It is seeded once at startup and never deleted.
const MainAgentID int64 = 1

// Message is one durably recorded conversation message. Messages are
// append-only: created on every completed turn, never mutated.
// At most one of SenderIdentityID / SenderAgentID is set.
type Message struct {
	ID               int64
	AgentID          int64
	Msg              providers.Message
	SenderIdentityID *int64
	SenderAgentID    *int64
	CreatedAt        time.Time
}

// Compaction records that every message with id <= UpToMessageID in an
// agent's history is replaced, when loading, by Summary. Only the latest
// row per agent is consulted; older rows are kept for audit.
type Compaction struct {
	ID            int64
	AgentID       int64
	Summary       string
	UpToMessageID int64
	CreatedAt     time.Time
}

// Agent is a conversational persona with its own history and prompt fragment.
type Agent struct {
	ID                   int64
	Name                 string
	SystemPromptFragment string
	AllowedTools         []string
	CreatedAt            time.Time
}

// Interlocutor is a contact the system can exchange messages with,
// independent of which channel they use. AssignedAgentID nil means the
// contact is provisioned but inert: their messages are dropped, not errored.
type Interlocutor struct {
	ID              int64
	DisplayName     string
	Owner           bool
	Enabled         bool
	AssignedAgentID *int64
}

// Identity binds a (service, identifier) pair to one interlocutor.
// A nil identifier marks a soft-deleted identity: the row is kept for
// audit but the mapping is inert.
type Identity struct {
	ID             int64
	InterlocutorID int64
	Service        string
	Identifier     *string
}

// IdentityMatch is the result of resolving a live identity.
type IdentityMatch struct {
	IdentityID      int64
	InterlocutorID  int64
	DisplayName     string
	Owner           bool
	AssignedAgentID *int64
}
