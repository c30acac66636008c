// Package agent drives one conversational turn: load history, build the
// system prompt, call the completion service, persist what came out, and
// kick off compaction when a conversation has grown past its threshold.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/adjutant-ai/adjutant/internal/providers"
	"github.com/adjutant-ai/adjutant/internal/routing"
	"github.com/adjutant-ai/adjutant/internal/store"
)

// MemoryProvider injects long-term memory blocks into the system prompt.
// Returned blocks are opaque text; the runner does not reinterpret them.
type MemoryProvider interface {
	Recall(ctx context.Context, agentID int64, input string) []string
}

// TurnInput is the raw inbound payload for one turn.
type TurnInput struct {
	Text        string
	Attachments []providers.Attachment
}

// RunnerConfig configures a new Runner.
type RunnerConfig struct {
	Store      store.MessageStore
	Agents     store.AgentStore
	Provider   providers.CompletionService
	Memory     MemoryProvider // optional
	Compactor  *Compactor
	BasePrompt string
}

// Runner is the prompt orchestrator. It owns the per-agent in-memory
// history caches; only the single queue worker calls RunTurn, so the
// caches need no lock beyond the map itself.
type Runner struct {
	store      store.MessageStore
	agents     store.AgentStore
	provider   providers.CompletionService
	memory     MemoryProvider
	compactor  *Compactor
	basePrompt string
	tracer     trace.Tracer

	mu        sync.Mutex
	histories map[int64]*history
}

// history is one agent's in-memory message list. The reload flag is the
// only cross-goroutine communication with the compaction task: compaction
// sets it on completion, the next turn notices it and reloads from the
// store before doing anything else.
type history struct {
	loaded bool
	msgs   []providers.Message
	reload atomic.Bool
}

func NewRunner(cfg RunnerConfig) *Runner {
	r := &Runner{
		store:      cfg.Store,
		agents:     cfg.Agents,
		provider:   cfg.Provider,
		memory:     cfg.Memory,
		compactor:  cfg.Compactor,
		basePrompt: cfg.BasePrompt,
		tracer:     otel.Tracer("adjutant/agent"),
		histories:  make(map[int64]*history),
	}
	if r.compactor != nil {
		r.compactor.onComplete = r.markCompacted
	}
	return r
}

func (r *Runner) historyFor(agentID int64) *history {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.histories[agentID]
	if !ok {
		h = &history{}
		r.histories[agentID] = h
	}
	return h
}

// markCompacted flags an agent's cache for reload on its next turn.
func (r *Runner) markCompacted(agentID int64) {
	r.historyFor(agentID).reload.Store(true)
}

// RunTurn processes one routed message through the completion service and
// records everything it produced. Returns the assistant's final text.
func (r *Runner) RunTurn(ctx context.Context, dec routing.Decision, in TurnInput) (string, error) {
	ctx, span := r.tracer.Start(ctx, "agent.turn",
		trace.WithAttributes(attribute.Int64("agent.id", dec.AgentID)))
	defer span.End()

	h := r.historyFor(dec.AgentID)
	if h.reload.Swap(false) || !h.loaded {
		msgs, err := r.store.LoadMessages(ctx, dec.AgentID)
		if err != nil {
			return "", fmt.Errorf("load history for agent %d: %w", dec.AgentID, err)
		}
		h.msgs = msgs
		h.loaded = true
	}

	ag, err := r.agents.GetAgent(ctx, dec.AgentID)
	if err != nil {
		return "", fmt.Errorf("load agent %d: %w", dec.AgentID, err)
	}

	inputText := in.Text
	if dec.SenderIdentityID != nil || dec.SenderAgentID != nil {
		// Messages from anyone but the owner carry their sender label so
		// the model knows who is speaking.
		inputText = fmt.Sprintf("%s: %s", dec.SenderLabel, in.Text)
	}

	result, err := r.provider.Turn(ctx, providers.TurnRequest{
		SystemPrompt: r.buildSystemPrompt(ctx, ag, in.Text),
		History:      h.msgs,
		Input: providers.TurnInput{
			Text:        inputText,
			Attachments: in.Attachments,
		},
	})
	if err != nil {
		return "", err
	}

	recs := make([]*store.Message, len(result.Messages))
	for i, msg := range result.Messages {
		rec := &store.Message{AgentID: dec.AgentID, Msg: msg}
		if i == 0 && msg.Role == providers.RoleUser {
			rec.SenderIdentityID = dec.SenderIdentityID
			rec.SenderAgentID = dec.SenderAgentID
		}
		recs[i] = rec
	}
	if err := r.store.SaveTurn(ctx, recs); err != nil {
		// The cache can no longer be trusted to mirror the log; the next
		// turn must reload from the store.
		h.reload.Store(true)
		return "", fmt.Errorf("persist turn: %w", err)
	}
	h.msgs = append(h.msgs, result.Messages...)

	if result.Usage != nil {
		slog.Debug("turn complete", "agent", dec.AgentID,
			"messages", len(result.Messages), "tokens", result.Usage.TotalTokens)
	}

	// The response is already on its way back; compaction never delays it.
	if r.compactor != nil {
		snapshot := make([]providers.Message, len(h.msgs))
		copy(snapshot, h.msgs)
		r.compactor.MaybeCompact(dec.AgentID, snapshot)
	}

	return result.ReplyText, nil
}

func (r *Runner) buildSystemPrompt(ctx context.Context, ag *store.Agent, input string) string {
	prompt := r.basePrompt
	if ag.SystemPromptFragment != "" {
		prompt += "\n\n" + ag.SystemPromptFragment
	}
	if r.memory != nil {
		for _, block := range r.memory.Recall(ctx, ag.ID, input) {
			prompt += "\n\n" + block
		}
	}
	return prompt
}
