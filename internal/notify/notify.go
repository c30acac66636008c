// Package notify delivers best-effort push messages to external channels.
// Failures are logged and swallowed: a notification is never worth
// failing a turn over.
package notify

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"
)

// Sender delivers a message to one recipient on one channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, recipient, text string) error
}

// Registry routes notifications to the sender registered for a channel.
type Registry struct {
	senders map[string]Sender
	limiter *rate.Limiter
}

// NewRegistry creates an empty registry. Outbound sends are rate limited
// as a group (channel APIs throttle aggressively on bursts).
func NewRegistry() *Registry {
	return &Registry{
		senders: make(map[string]Sender),
		limiter: rate.NewLimiter(rate.Limit(1), 5),
	}
}

// Register adds a sender for its channel name.
func (r *Registry) Register(s Sender) {
	r.senders[s.Name()] = s
}

// Has reports whether a sender exists for the channel.
func (r *Registry) Has(channel string) bool {
	_, ok := r.senders[channel]
	return ok
}

// Notify sends text to recipient over channel. Best-effort: unknown
// channels and delivery failures are logged, never returned.
func (r *Registry) Notify(ctx context.Context, channel, recipient, text string) {
	s, ok := r.senders[channel]
	if !ok {
		slog.Debug("notify: no sender for channel", "channel", channel)
		return
	}
	if err := r.limiter.Wait(ctx); err != nil {
		slog.Warn("notify: rate limit wait cancelled", "channel", channel, "error", err)
		return
	}
	if err := s.Send(ctx, recipient, text); err != nil {
		slog.Warn("notify: delivery failed",
			"channel", channel, "recipient", recipient, "error", err)
		return
	}
	slog.Debug("notify: delivered", "channel", channel, "recipient", recipient)
}
