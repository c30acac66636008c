// Package queue serializes all inbound message processing. A single
// worker drains an unbounded FIFO, driving each entry through routing,
// completion, and persistence. Serializing globally trivially prevents
// interleaved writes to any one conversation; message volume is low
// enough that cross-agent throughput does not matter.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/adjutant-ai/adjutant/internal/agent"
	"github.com/adjutant-ai/adjutant/internal/providers"
	"github.com/adjutant-ai/adjutant/internal/routing"
)

const (
	// DefaultMaxRetries bounds transient-failure retries (so 4 attempts).
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the fixed wait between failed attempts.
	DefaultRetryDelay = 30 * time.Second
)

// Request is one inbound message to be ingested.
type Request struct {
	Message       string
	Source        string
	Sender        string
	TargetAgentID int64
	Attachments   []providers.Attachment
}

// Outcome resolves a submitted request: the assistant's reply text, an
// empty string for a dropped message, or a hard error after retries are
// exhausted.
type Outcome struct {
	Text string
	Err  error
}

// MessageRouter decides the target conversation for a request.
// *routing.Router satisfies it.
type MessageRouter interface {
	Route(ctx context.Context, in routing.Input) (routing.Decision, bool, error)
}

// TurnRunner drives one completion turn. *agent.Runner satisfies it.
type TurnRunner interface {
	RunTurn(ctx context.Context, dec routing.Decision, in agent.TurnInput) (string, error)
}

// Notifier pushes a best-effort message to a sender's inbound channel.
// *notify.Registry satisfies it.
type Notifier interface {
	Has(channel string) bool
	Notify(ctx context.Context, channel, recipient, text string)
}

// Config tunes retry behavior and the re-authentication message.
type Config struct {
	MaxRetries int
	RetryDelay time.Duration
	LoginURL   string
}

type entry struct {
	id      string // correlates log lines and spans across retries
	req     Request
	retries int
	done    chan Outcome
}

// Ingestor is the serialized ingestion queue. All mutable state (the
// FIFO and the active-worker flag) is owned by one instance so tests can
// inject a fresh one.
type Ingestor struct {
	router MessageRouter
	runner TurnRunner
	notify Notifier // nil = no push notifications
	cfg    Config
	tracer trace.Tracer

	mu     sync.Mutex
	fifo   []*entry
	active bool
	ctx    context.Context
}

// NewIngestor creates a stopped queue; call Start before enqueuing.
func NewIngestor(router MessageRouter, runner TurnRunner, notify Notifier, cfg Config) *Ingestor {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	return &Ingestor{
		router: router,
		runner: runner,
		notify: notify,
		cfg:    cfg,
		tracer: otel.Tracer("adjutant/queue"),
	}
}

// Start binds the queue's lifetime to ctx. Entries still queued when ctx
// is cancelled are rejected; the in-flight entry runs to completion.
func (q *Ingestor) Start(ctx context.Context) {
	q.mu.Lock()
	q.ctx = ctx
	q.mu.Unlock()
}

// Submit enqueues and waits for the outcome.
func (q *Ingestor) Submit(ctx context.Context, req Request) (string, error) {
	select {
	case out := <-q.Enqueue(req):
		return out.Text, out.Err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Enqueue appends a request to the FIFO and starts the worker if idle.
// The returned channel receives exactly one Outcome.
func (q *Ingestor) Enqueue(req Request) <-chan Outcome {
	e := &entry{id: uuid.NewString(), req: req, done: make(chan Outcome, 1)}

	q.mu.Lock()
	if q.ctx == nil || q.ctx.Err() != nil {
		q.mu.Unlock()
		e.done <- Outcome{Err: fmt.Errorf("ingestion queue is not running")}
		return e.done
	}
	q.fifo = append(q.fifo, e)
	if !q.active {
		q.active = true
		go q.drain()
	}
	q.mu.Unlock()

	return e.done
}

// drain processes entries one at a time until the FIFO is empty, then
// stops; the next Enqueue restarts it.
func (q *Ingestor) drain() {
	for {
		q.mu.Lock()
		if len(q.fifo) == 0 {
			q.active = false
			q.mu.Unlock()
			return
		}
		e := q.fifo[0]
		q.fifo = q.fifo[1:]
		ctx := q.ctx
		q.mu.Unlock()

		if ctx.Err() != nil {
			e.done <- Outcome{Err: fmt.Errorf("ingestion queue shutting down: %w", ctx.Err())}
			continue
		}
		q.process(ctx, e)
	}
}

func (q *Ingestor) process(ctx context.Context, e *entry) {
	ctx, span := q.tracer.Start(ctx, "queue.process",
		trace.WithAttributes(
			attribute.String("entry.id", e.id),
			attribute.String("source", e.req.Source),
			attribute.Int("retry", e.retries),
		))
	defer span.End()

	dec, ok, err := q.router.Route(ctx, routing.Input{
		Source:        e.req.Source,
		Sender:        e.req.Sender,
		TargetAgentID: e.req.TargetAgentID,
	})
	if err == nil && !ok {
		// Unauthorized or unassigned inbound traffic is discarded
		// silently; the caller sees an empty result, not an error.
		e.done <- Outcome{}
		return
	}

	var text string
	if err == nil {
		text, err = q.runner.RunTurn(ctx, dec, agent.TurnInput{
			Text:        e.req.Message,
			Attachments: e.req.Attachments,
		})
	}
	if err == nil {
		e.done <- Outcome{Text: text}
		return
	}

	switch classify(err) {
	case failureAuth:
		// Terminal: the credential is dead, retrying cannot help.
		msg := fmt.Sprintf("Authentication required. The completion credential was rejected — please log in again at %s", q.cfg.LoginURL)
		slog.Error("completion auth failure", "entry", e.id, "source", e.req.Source, "error", err)
		e.done <- Outcome{Text: msg}
		q.notifySender(ctx, e.req, msg)

	case failureBadRequest:
		// Terminal: a malformed request stays malformed on retry.
		slog.Error("completion rejected request", "entry", e.id, "source", e.req.Source, "error", err)
		e.done <- Outcome{Text: "Something went wrong while processing your message. Please try again."}

	default:
		if e.retries < q.cfg.MaxRetries {
			slog.Warn("completion failed, will retry",
				"entry", e.id, "source", e.req.Source, "attempt", e.retries+1, "error", err)
			select {
			case <-time.After(q.cfg.RetryDelay):
			case <-ctx.Done():
				e.done <- Outcome{Err: fmt.Errorf("ingestion queue shutting down: %w", ctx.Err())}
				return
			}
			// Back of the FIFO, not retry-in-place: later entries are
			// not starved behind a flapping one.
			e.retries++
			q.mu.Lock()
			q.fifo = append(q.fifo, e)
			q.mu.Unlock()
		} else {
			slog.Error("completion failed after retries",
				"entry", e.id, "source", e.req.Source, "attempts", e.retries+1, "error", err)
			e.done <- Outcome{Err: err}
		}
	}
}

// notifySender pushes a best-effort notice over the sender's inbound
// channel. Only external channels qualify; failures are logged inside the
// notifier, never propagated.
func (q *Ingestor) notifySender(ctx context.Context, req Request, text string) {
	if q.notify == nil || req.Sender == "" || !isExternalChannel(req.Source) {
		return
	}
	if !q.notify.Has(req.Source) {
		slog.Debug("no sender registered for channel", "channel", req.Source)
		return
	}
	q.notify.Notify(ctx, req.Source, req.Sender, text)
}

func isExternalChannel(source string) bool {
	switch source {
	case "", routing.SourceAgent, routing.SourceLocal, routing.SourceCron, routing.SourceCoder:
		return false
	}
	return !strings.HasPrefix(source, routing.PluginSourcePrefix)
}
