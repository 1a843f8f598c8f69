// Package response parses chat-completion responses returned by
// OpenAI-compatible endpoints when tools are offered to the model.
package response

import (
	"encoding/json"
	"fmt"

	"github.com/tailored-agentic-units/mealplanner/core/protocol"
)

// TokenUsage reports token consumption for one completion.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChoiceMessage is the assistant message of one choice.
type ChoiceMessage struct {
	Role      string              `json:"role"`
	Content   string              `json:"content"`
	ToolCalls []protocol.ToolCall `json:"tool_calls,omitempty"`
}

// Choice is one completion alternative.
type Choice struct {
	Index        int           `json:"index"`
	Message      ChoiceMessage `json:"message"`
	FinishReason string        `json:"finish_reason,omitempty"`
}

// APIError is the error object some providers return with a 200 status.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

// ToolsResponse is a chat completion that may request tool calls.
type ToolsResponse struct {
	ID      string      `json:"id,omitempty"`
	Object  string      `json:"object,omitempty"`
	Created int64       `json:"created,omitempty"`
	Model   string      `json:"model"`
	Choices []Choice    `json:"choices"`
	Usage   *TokenUsage `json:"usage,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// Text returns the first choice's content, or "".
func (r *ToolsResponse) Text() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// ToolCalls returns the first choice's tool calls.
func (r *ToolsResponse) ToolCalls() []protocol.ToolCall {
	if len(r.Choices) == 0 {
		return nil
	}
	return r.Choices[0].Message.ToolCalls
}

// NewText builds a single-choice response carrying final text.
func NewText(content string) *ToolsResponse {
	return &ToolsResponse{
		Choices: []Choice{{
			Message:      ChoiceMessage{Role: string(protocol.RoleAssistant), Content: content},
			FinishReason: "stop",
		}},
	}
}

// NewToolCalls builds a single-choice response requesting tool calls.
func NewToolCalls(calls ...protocol.ToolCall) *ToolsResponse {
	return &ToolsResponse{
		Choices: []Choice{{
			Message:      ChoiceMessage{Role: string(protocol.RoleAssistant), ToolCalls: calls},
			FinishReason: "tool_calls",
		}},
	}
}

// ParseTools parses a tools response from JSON bytes. A provider error
// object is returned as an error.
func ParseTools(body []byte) (*ToolsResponse, error) {
	var response ToolsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse tools response: %w", err)
	}
	if response.Error != nil {
		return nil, fmt.Errorf("provider error: %s", response.Error.Message)
	}
	return &response, nil
}
