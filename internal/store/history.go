package store

import (
	"strings"

	"github.com/adjutant-ai/adjutant/internal/providers"
)

// SummaryPrefix marks the synthetic message that replaces archived history.
const SummaryPrefix = "[Summary of earlier conversation]\n"

// BuildHistory assembles the replayable view of a compacted conversation:
// a synthetic user message carrying the summary, followed by the kept tail.
// Leading tool results are stripped first — a boundary can legally land one
// message before a trailing tool result whose tool call is already inside
// the summary, and an orphaned tool result fails the completion service's
// validation.
func BuildHistory(summary string, tail []providers.Message) []providers.Message {
	for len(tail) > 0 && tail[0].Role == providers.RoleToolResult {
		tail = tail[1:]
	}
	out := make([]providers.Message, 0, len(tail)+1)
	out = append(out, providers.Message{
		Role: providers.RoleUser,
		Text: SummaryPrefix + summary,
	})
	return append(out, tail...)
}

// IsSummaryMessage reports whether msg is the synthetic summary message
// produced by BuildHistory.
func IsSummaryMessage(msg providers.Message) bool {
	return msg.Role == providers.RoleUser && strings.HasPrefix(msg.Text, SummaryPrefix)
}
