package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	defaultClaudeModel  = "claude-sonnet-4-5-20250929"
	anthropicAPIBase    = "https://api.anthropic.com/v1"
	anthropicAPIVersion = "2023-06-01"

	defaultMaxTokens     = 8192
	defaultMaxIterations = 20
)

// Anthropic implements CompletionService using the Claude API via net/http.
// If a ToolExecutor is configured, Turn runs the tool loop internally and
// emits the intermediate assistant/toolResult messages.
type Anthropic struct {
	apiKey        string
	baseURL       string
	model         string
	maxTokens     int
	maxIterations int
	tools         ToolExecutor
	client        *http.Client
}

// AnthropicOption configures an Anthropic service.
type AnthropicOption func(*Anthropic)

func WithModel(model string) AnthropicOption {
	return func(a *Anthropic) {
		if model != "" {
			a.model = model
		}
	}
}

func WithBaseURL(baseURL string) AnthropicOption {
	return func(a *Anthropic) {
		if baseURL != "" {
			a.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithMaxTokens(n int) AnthropicOption {
	return func(a *Anthropic) {
		if n > 0 {
			a.maxTokens = n
		}
	}
}

func WithTools(t ToolExecutor) AnthropicOption {
	return func(a *Anthropic) { a.tools = t }
}

// NewAnthropic creates an Anthropic-backed completion service.
func NewAnthropic(apiKey string, opts ...AnthropicOption) *Anthropic {
	a := &Anthropic{
		apiKey:        apiKey,
		baseURL:       anthropicAPIBase,
		model:         defaultClaudeModel,
		maxTokens:     defaultMaxTokens,
		maxIterations: defaultMaxIterations,
		client:        &http.Client{Timeout: 120 * time.Second},
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Turn drives one conversational turn, including tool execution when a
// ToolExecutor is configured. Every produced message is returned in order.
func (a *Anthropic) Turn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	userMsg := Message{
		Role:        RoleUser,
		Text:        req.Input.Text,
		Attachments: req.Input.Attachments,
	}

	convo := make([]Message, 0, len(req.History)+1)
	convo = append(convo, req.History...)
	convo = append(convo, userMsg)

	result := &TurnResult{
		Messages: []Message{userMsg},
		Usage:    &Usage{},
	}

	var toolDefs []ToolDefinition
	if a.tools != nil {
		toolDefs = a.tools.Definitions()
	}

	for iteration := 1; iteration <= a.maxIterations; iteration++ {
		resp, err := a.complete(ctx, req.SystemPrompt, convo, toolDefs)
		if err != nil {
			return nil, fmt.Errorf("completion (iteration %d): %w", iteration, err)
		}

		result.Usage.PromptTokens += resp.Usage.InputTokens
		result.Usage.CompletionTokens += resp.Usage.OutputTokens
		result.Usage.TotalTokens += resp.Usage.InputTokens + resp.Usage.OutputTokens

		assistant := parseAssistant(resp)
		convo = append(convo, assistant)
		result.Messages = append(result.Messages, assistant)

		if len(assistant.ToolCalls) == 0 || a.tools == nil {
			result.ReplyText = assistant.Text
			return result, nil
		}

		for _, tc := range assistant.ToolCalls {
			text, err := a.tools.Execute(ctx, tc.Name, tc.Arguments)
			if err != nil {
				slog.Warn("tool execution failed", "tool", tc.Name, "error", err)
				text = fmt.Sprintf("Error: %v", err)
			}
			toolMsg := Message{
				Role:       RoleToolResult,
				Text:       text,
				ToolCallID: tc.ID,
				ToolName:   tc.Name,
			}
			convo = append(convo, toolMsg)
			result.Messages = append(result.Messages, toolMsg)
		}
	}

	return nil, fmt.Errorf("completion did not settle within %d iterations", a.maxIterations)
}

// Summarize condenses a transcript using a dedicated system prompt.
func (a *Anthropic) Summarize(ctx context.Context, systemPrompt, transcript string) (string, error) {
	resp, err := a.complete(ctx, systemPrompt, []Message{{Role: RoleUser, Text: transcript}}, nil)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return parseAssistant(resp).Text, nil
}

func (a *Anthropic) complete(ctx context.Context, system string, convo []Message, tools []ToolDefinition) (*anthropicResponse, error) {
	body := a.buildRequestBody(system, convo, tools)

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+"/messages", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("anthropic: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		return nil, &HTTPError{
			Status:     httpResp.StatusCode,
			Body:       string(respBody),
			RetryAfter: ParseRetryAfter(httpResp.Header.Get("Retry-After")),
		}
	}

	var resp anthropicResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("anthropic: decode response: %w", err)
	}
	return &resp, nil
}

func (a *Anthropic) buildRequestBody(system string, convo []Message, tools []ToolDefinition) map[string]interface{} {
	var messages []map[string]interface{}

	for i := 0; i < len(convo); i++ {
		msg := convo[i]
		switch msg.Role {
		case RoleUser:
			messages = append(messages, map[string]interface{}{
				"role":    "user",
				"content": userBlocks(msg),
			})

		case RoleAssistant:
			var blocks []map[string]interface{}
			if msg.Text != "" {
				blocks = append(blocks, map[string]interface{}{
					"type": "text",
					"text": msg.Text,
				})
			}
			for _, tc := range msg.ToolCalls {
				args := tc.Arguments
				if args == nil {
					args = map[string]interface{}{}
				}
				blocks = append(blocks, map[string]interface{}{
					"type":  "tool_use",
					"id":    tc.ID,
					"name":  tc.Name,
					"input": args,
				})
			}
			if len(blocks) == 0 {
				continue
			}
			messages = append(messages, map[string]interface{}{
				"role":    "assistant",
				"content": blocks,
			})

		case RoleToolResult:
			// Consecutive tool results collapse into one user message.
			var blocks []map[string]interface{}
			for ; i < len(convo) && convo[i].Role == RoleToolResult; i++ {
				blocks = append(blocks, map[string]interface{}{
					"type":        "tool_result",
					"tool_use_id": convo[i].ToolCallID,
					"content":     convo[i].Text,
				})
			}
			i--
			messages = append(messages, map[string]interface{}{
				"role":    "user",
				"content": blocks,
			})
		}
	}

	body := map[string]interface{}{
		"model":      a.model,
		"max_tokens": a.maxTokens,
		"messages":   messages,
	}
	if system != "" {
		body["system"] = system
	}
	if len(tools) > 0 {
		var defs []map[string]interface{}
		for _, t := range tools {
			defs = append(defs, map[string]interface{}{
				"name":         t.Name,
				"description":  t.Description,
				"input_schema": t.InputSchema,
			})
		}
		body["tools"] = defs
	}
	return body
}

func userBlocks(msg Message) interface{} {
	if len(msg.Attachments) == 0 {
		return msg.Text
	}
	var blocks []map[string]interface{}
	for _, att := range msg.Attachments {
		blockType := "image"
		if strings.HasPrefix(att.MimeType, "audio/") {
			blockType = "document"
		}
		blocks = append(blocks, map[string]interface{}{
			"type": blockType,
			"source": map[string]interface{}{
				"type":       "base64",
				"media_type": att.MimeType,
				"data":       att.Data,
			},
		})
	}
	if msg.Text != "" {
		blocks = append(blocks, map[string]interface{}{
			"type": "text",
			"text": msg.Text,
		})
	}
	return blocks
}

func parseAssistant(resp *anthropicResponse) Message {
	msg := Message{Role: RoleAssistant}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			msg.Text += block.Text
		case "tool_use":
			args := make(map[string]interface{})
			_ = json.Unmarshal(block.Input, &args)
			msg.ToolCalls = append(msg.ToolCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: args,
			})
		}
	}
	return msg
}

type anthropicResponse struct {
	ID         string                  `json:"id"`
	StopReason string                  `json:"stop_reason"`
	Content    []anthropicContentBlock `json:"content"`
	Usage      anthropicUsage          `json:"usage"`
}

type anthropicContentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
