package agent

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/adjutant-ai/adjutant/internal/providers"
	"github.com/adjutant-ai/adjutant/internal/store"
)

const (
	// DefaultCompactionThreshold is the in-memory message count above
	// which a conversation is compacted.
	DefaultCompactionThreshold = 50

	// DefaultKeepTail is how many trailing messages the tentative cut
	// preserves verbatim.
	DefaultKeepTail = 30

	compactionTimeout = 120 * time.Second
)

const summarizationPrompt = `You are summarizing an assistant conversation so it can continue ` +
	`with bounded context. Produce a concise summary that preserves: open tasks and commitments, ` +
	`decisions made, facts about the user and their contacts, and anything the assistant promised ` +
	`to follow up on. Write plain prose, no preamble.`

// Compactor archives the older part of a grown conversation into a
// summary and persists a new boundary. At most one compaction runs at a
// time process-wide, even across different agents, to keep the boundary
// bookkeeping simple.
type Compactor struct {
	store     store.MessageStore
	provider  providers.CompletionService
	threshold int
	keepTail  int

	inflight   *semaphore.Weighted
	onComplete func(agentID int64)
}

func NewCompactor(st store.MessageStore, provider providers.CompletionService, threshold, keepTail int) *Compactor {
	if threshold <= 0 {
		threshold = DefaultCompactionThreshold
	}
	if keepTail <= 0 {
		keepTail = DefaultKeepTail
	}
	return &Compactor{
		store:     st,
		provider:  provider,
		threshold: threshold,
		keepTail:  keepTail,
		inflight:  semaphore.NewWeighted(1),
	}
}

// MaybeCompact starts a background compaction for agentID if the snapshot
// has outgrown the threshold and none is already in flight. Returns
// whether a compaction was started.
func (c *Compactor) MaybeCompact(agentID int64, snapshot []providers.Message) bool {
	if len(snapshot) <= c.threshold {
		return false
	}
	if !c.inflight.TryAcquire(1) {
		slog.Debug("compaction already in flight, skipping", "agent", agentID)
		return false
	}
	go func() {
		defer c.inflight.Release(1)
		c.run(agentID, snapshot)
	}()
	return true
}

func (c *Compactor) run(agentID int64, snapshot []providers.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), compactionTimeout)
	defer cancel()

	// Tentative cut, then scan forward to a user message. A user message
	// is never the middle of a tool-call/tool-result pair; cutting
	// anywhere else could leave an orphaned tool result in the tail.
	cut := len(snapshot) - c.keepTail
	if cut < 0 {
		cut = 0
	}
	for cut < len(snapshot) && snapshot[cut].Role != providers.RoleUser {
		cut++
	}
	if cut >= len(snapshot) {
		slog.Warn("compaction skipped: no user message after cut point",
			"agent", agentID, "messages", len(snapshot))
		return
	}

	toArchive := snapshot[:cut]
	toKeep := snapshot[cut:]

	summary, err := c.provider.Summarize(ctx, summarizationPrompt, RenderTranscript(toArchive))
	if err != nil {
		slog.Warn("compaction summarize failed", "agent", agentID, "error", err)
		return
	}

	prevUpTo := int64(0)
	prev, err := c.store.LatestCompaction(ctx, agentID)
	switch {
	case err == nil:
		prevUpTo = prev.UpToMessageID
	case !errors.Is(err, store.ErrNotFound):
		slog.Warn("compaction boundary lookup failed", "agent", agentID, "error", err)
		return
	}

	// Map the in-memory cut back to a precise store id: the kept tail is
	// the newest len(toKeep) messages, so the boundary is the next one
	// back. The snapshot may be stale relative to the store; if the row
	// is missing, abort and let the next trigger retry.
	boundaryID, err := c.store.MessageIDAtOffset(ctx, agentID, prevUpTo, len(toKeep))
	if err != nil {
		slog.Warn("compaction aborted: boundary message not found",
			"agent", agentID, "keep", len(toKeep), "error", err)
		return
	}

	if err := c.store.SaveCompaction(ctx, agentID, summary, boundaryID); err != nil {
		slog.Warn("compaction persist failed", "agent", agentID, "error", err)
		return
	}

	slog.Info("compaction complete", "agent", agentID,
		"archived", len(toArchive), "kept", len(toKeep), "boundary", boundaryID)

	if c.onComplete != nil {
		c.onComplete(agentID)
	}
}
