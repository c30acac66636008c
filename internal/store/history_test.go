package store

import (
	"testing"

	"github.com/adjutant-ai/adjutant/internal/providers"
)

func TestBuildHistory(t *testing.T) {
	tests := []struct {
		name      string
		tail      []providers.Message
		wantLen   int
		wantFirst string
	}{
		{
			name: "summary message prepended",
			tail: []providers.Message{
				{Role: providers.RoleUser, Text: "recent question"},
				{Role: providers.RoleAssistant, Text: "recent answer"},
			},
			wantLen:   3,
			wantFirst: SummaryPrefix + "they discussed travel plans",
		},
		{
			name: "leading tool results stripped",
			tail: []providers.Message{
				{Role: providers.RoleToolResult, Text: "orphaned", ToolCallID: "t1"},
				{Role: providers.RoleToolResult, Text: "also orphaned", ToolCallID: "t2"},
				{Role: providers.RoleUser, Text: "question"},
			},
			wantLen:   2,
			wantFirst: SummaryPrefix + "they discussed travel plans",
		},
		{
			name:      "empty tail still yields summary",
			tail:      nil,
			wantLen:   1,
			wantFirst: SummaryPrefix + "they discussed travel plans",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildHistory("they discussed travel plans", tt.tail)
			if len(got) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(got), tt.wantLen)
			}
			if got[0].Role != providers.RoleUser {
				t.Errorf("first message role = %q, want user", got[0].Role)
			}
			if got[0].Text != tt.wantFirst {
				t.Errorf("first message text = %q, want %q", got[0].Text, tt.wantFirst)
			}
			if len(got) > 1 && got[1].Role == providers.RoleToolResult {
				t.Error("tool result survived at head of the kept tail")
			}
		})
	}
}

func TestIsSummaryMessage(t *testing.T) {
	summary := BuildHistory("s", nil)[0]
	if !IsSummaryMessage(summary) {
		t.Error("IsSummaryMessage(synthetic summary) = false")
	}
	if IsSummaryMessage(providers.Message{Role: providers.RoleUser, Text: "plain"}) {
		t.Error("IsSummaryMessage(plain user message) = true")
	}
	if IsSummaryMessage(providers.Message{Role: providers.RoleAssistant, Text: SummaryPrefix + "s"}) {
		t.Error("IsSummaryMessage should require the user role")
	}
}
