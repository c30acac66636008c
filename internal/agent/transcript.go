package agent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/adjutant-ai/adjutant/internal/providers"
)

// RenderTranscript flattens messages into the role-labeled text form fed
// to the summarization prompt.
func RenderTranscript(msgs []providers.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		switch m.Role {
		case providers.RoleUser:
			fmt.Fprintf(&b, "user: %s\n", m.Text)
		case providers.RoleAssistant:
			if m.Text != "" {
				fmt.Fprintf(&b, "assistant: %s\n", m.Text)
			}
			for _, tc := range m.ToolCalls {
				fmt.Fprintf(&b, "%s\n", renderToolCall(tc))
			}
		case providers.RoleToolResult:
			fmt.Fprintf(&b, "Tool result (%s): %s\n", m.ToolName, m.Text)
		}
	}
	return b.String()
}

func renderToolCall(tc providers.ToolCall) string {
	keys := make([]string, 0, len(tc.Arguments))
	for k := range tc.Arguments {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]string, 0, len(keys))
	for _, k := range keys {
		args = append(args, fmt.Sprintf("%s=%v", k, tc.Arguments[k]))
	}
	return fmt.Sprintf("%s(%s)", tc.Name, strings.Join(args, ", "))
}
