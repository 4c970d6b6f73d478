// Package llm defines the reasoning collaborator contract and an
// OpenAI-compatible chat-completions client implementing it. The
// collaborator is a black box: given the conversation so far and the
// advertised tool set, it either answers or requests tool calls.
package llm

import "context"

// Conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is one tool invocation requested by the reasoner.
type ToolCall struct {
	// ID correlates the eventual observation with this request.
	ID string `json:"id"`

	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Message is one turn of the conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content,omitempty"`

	// ToolCalls is set on assistant turns that requested tools.
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`

	// ToolCallID is set on tool turns carrying an observation.
	ToolCallID string `json:"toolCallId,omitempty"`
}

// ToolDefinition advertises one callable tool to the reasoner.
type ToolDefinition struct {
	Name        string
	Description string

	// Parameters is a JSON Schema object describing the arguments.
	Parameters map[string]any
}

// Request is one reasoning step's input.
type Request struct {
	Messages []Message
	Tools    []ToolDefinition
}

// Decision is the reasoner's output: either a final answer or one or
// more tool calls to dispatch, never both.
type Decision struct {
	Answer    string
	ToolCalls []ToolCall
}

// WantsTools reports whether the reasoner requested tool calls.
func (d Decision) WantsTools() bool {
	return len(d.ToolCalls) > 0
}

// Reasoner is the reasoning collaborator. No determinism is assumed.
type Reasoner interface {
	Reason(ctx context.Context, req Request) (Decision, error)
}
