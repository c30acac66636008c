package providers

import "context"

// Message roles used across conversation history.
const (
	RoleUser       = "user"
	RoleAssistant  = "assistant"
	RoleToolResult = "toolResult"
)

// CompletionService is the contract the orchestration core depends on.
// Implementations own the model call and any internal tool-execution loop;
// the caller only sees the messages that came out of a turn.
type CompletionService interface {
	// Turn runs one conversational turn: prior history plus new input in,
	// emitted messages plus final reply text out.
	Turn(ctx context.Context, req TurnRequest) (*TurnResult, error)

	// Summarize condenses a flat conversation transcript into a summary.
	Summarize(ctx context.Context, systemPrompt, transcript string) (string, error)
}

// TurnRequest is the input for a single completion turn.
type TurnRequest struct {
	SystemPrompt string
	History      []Message
	Input        TurnInput
}

// TurnInput is the new user input for a turn.
type TurnInput struct {
	Text        string
	Attachments []Attachment
}

// Attachment is a media item accompanying user input.
type Attachment struct {
	MimeType string `json:"mime_type"` // e.g. "image/jpeg", "audio/ogg"
	Data     string `json:"data"`      // base64-encoded bytes
}

// TurnResult is the output of a completed turn. Messages contains every
// message the turn produced, in order: the user input message, assistant
// messages, and tool results. ReplyText is the final assistant text.
type TurnResult struct {
	Messages  []Message `json:"messages"`
	ReplyText string    `json:"reply_text"`
	Usage     *Usage    `json:"usage,omitempty"`
}

// Message represents a single conversation message.
type Message struct {
	Role        string       `json:"role"` // RoleUser, RoleAssistant, RoleToolResult
	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`   // assistant messages only
	ToolCallID  string       `json:"tool_call_id,omitempty"` // toolResult messages only
	ToolName    string       `json:"tool_name,omitempty"`    // toolResult messages only
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolDefinition describes a tool offered to the model.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// ToolExecutor runs a tool call and returns the result text.
// Implementations are external to this core.
type ToolExecutor interface {
	Definitions() []ToolDefinition
	Execute(ctx context.Context, name string, args map[string]interface{}) (string, error)
}

// Usage tracks token consumption across a turn.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
