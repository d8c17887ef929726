package assistant

import "context"

// ToolParameter is one string argument of a declared tool.
type ToolParameter struct {
	Name        string
	Description string
}

// ToolSpec declares a tool the remote model may ask the client to run.
// Every parameter is a string.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  []ToolParameter
	Required    []string
}

// SessionConfig is fixed when a session is created.
type SessionConfig struct {
	SystemInstruction string
	Tools             []ToolSpec
	// WebSearch asks the provider to enable open-web search grounding
	// when it supports it alongside function declarations.
	WebSearch bool
}

// ToolCall is a request from the model to execute a named local action.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolResult answers one ToolCall.
type ToolResult struct {
	ID       string
	Name     string
	Response map[string]any
}

// Turn is one outbound message: either visitor text or a batch of tool results.
type Turn struct {
	Text        string
	ToolResults []ToolResult
}

// TextTurn builds a plain-text turn.
func TextTurn(text string) Turn {
	return Turn{Text: text}
}

// ToolResultTurn builds a turn carrying tool results.
func ToolResultTurn(results []ToolResult) Turn {
	return Turn{ToolResults: results}
}

// IsToolResult reports whether the turn carries tool results instead of text.
func (t Turn) IsToolResult() bool {
	return len(t.ToolResults) > 0
}

// Reply is what the remote service answers to a turn.
type Reply struct {
	Text      string
	ToolCalls []ToolCall
}

// Session is an established conversation with the remote chat service.
// It keeps its own history; callers send only the new turn.
type Session interface {
	Send(ctx context.Context, turn Turn) (Reply, error)
}

// ChatService creates sessions against a hosted conversational model.
type ChatService interface {
	StartSession(ctx context.Context, cfg SessionConfig) (Session, error)
}
