package llm

import "context"

type Message struct {
	Role       string     `json:"role"` // user, assistant
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // for tool result messages
}

type ToolCall struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Params map[string]any `json:"params"`

	// ArgsError is set when the model's arguments could not be decoded.
	ArgsError string `json:"-"`
}

type Response struct {
	Content   string
	ToolCalls []ToolCall
}

// Decision is what the model chose to do with its turn: either a
// FinalReply or ToolRequests.
type Decision interface {
	isDecision()
}

type FinalReply struct {
	Text string
}

type ToolRequests struct {
	Text  string // any text the model emitted alongside the calls
	Calls []ToolCall
}

func (FinalReply) isDecision()   {}
func (ToolRequests) isDecision() {}

// Decision classifies the response. Any tool call makes it a ToolRequests.
func (r *Response) Decision() Decision {
	if len(r.ToolCalls) > 0 {
		return ToolRequests{Text: r.Content, Calls: r.ToolCalls}
	}
	return FinalReply{Text: r.Content}
}

type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

type Client interface {
	Chat(ctx context.Context, systemPrompt string, messages []Message, tools []Tool) (*Response, error)
}
