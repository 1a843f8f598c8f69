// Package protocol holds the chat-completion wire types the phase agents
// exchange with the model: messages, tool calls and tool definitions.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Role is who wrote a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is one tool the model asked to run, such as memorize or
// verify_recipe. Arguments is the raw JSON object the model produced; the
// tools package decodes it into a command.
//
// On the wire a call is nested as {id, type, function: {name, arguments}}.
// Sessions store and restore the flat {id, name, arguments} form, and both
// decode into a ToolCall.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type,omitempty"`
	Function functionCall `json:"function"`
}

// MarshalJSON writes the nested form the chat-completions API expects.
func (tc ToolCall) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireToolCall{
		ID:       tc.ID,
		Type:     "function",
		Function: functionCall{Name: tc.Name, Arguments: tc.Arguments},
	})
}

// UnmarshalJSON reads either the nested or the flat form.
func (tc *ToolCall) UnmarshalJSON(data []byte) error {
	var wire wireToolCall
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.Function.Name != "" {
		*tc = ToolCall{ID: wire.ID, Name: wire.Function.Name, Arguments: wire.Function.Arguments}
		return nil
	}

	type flat ToolCall
	return json.Unmarshal(data, (*flat)(tc))
}

// Message is one entry in a phase transcript. Content is usually a string;
// providers may return structured content, which Text flattens.
//
// An assistant message that asks for tools carries ToolCalls, and each tool
// result answers one of them through ToolCallID.
type Message struct {
	Role       Role       `json:"role"`
	Content    any        `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

func NewMessage(role Role, content any) Message {
	return Message{Role: role, Content: content}
}

// InitMessages starts a conversation with a single message.
func InitMessages(role Role, content string) []Message {
	return []Message{NewMessage(role, content)}
}

// Text returns string content, or the JSON form of structured content.
func (m Message) Text() string {
	switch c := m.Content.(type) {
	case nil:
		return ""
	case string:
		return c
	default:
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Sprint(c)
		}
		return string(data)
	}
}
