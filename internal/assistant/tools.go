package assistant

import (
	"context"
	"fmt"
	"sort"
)

// UnknownToolError is the payload returned for tool names with no handler.
const UnknownToolError = "Unknown tool"

// AbandonedToolError answers a tool call whose turn ended before it was resolved.
const AbandonedToolError = "Tool call was not completed"

// Progress surfaces a transient status label while a tool runs.
// An empty label clears it.
type Progress func(label string)

// Tool is a local action the model can invoke.
type Tool interface {
	Spec() ToolSpec
	Invoke(ctx context.Context, call ToolCall, progress Progress) map[string]any
}

// Toolbox is the closed dispatch table from tool name to handler.
type Toolbox struct {
	tools map[string]Tool
}

// NewToolbox registers tools by their declared name. A later tool with the
// same name replaces an earlier one.
func NewToolbox(tools ...Tool) *Toolbox {
	tb := &Toolbox{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if t == nil {
			continue
		}
		tb.tools[t.Spec().Name] = t
	}
	return tb
}

// Specs returns the declarations of every registered tool, sorted by name.
func (tb *Toolbox) Specs() []ToolSpec {
	if tb == nil {
		return nil
	}
	specs := make([]ToolSpec, 0, len(tb.tools))
	for _, t := range tb.tools {
		specs = append(specs, t.Spec())
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Resolve runs the handler for call. Unknown names produce an error payload
// instead of failing the turn.
func (tb *Toolbox) Resolve(ctx context.Context, call ToolCall, progress Progress) (result ToolResult) {
	result = ToolResult{ID: call.ID, Name: call.Name}
	if progress == nil {
		progress = func(string) {}
	}

	var tool Tool
	if tb != nil {
		tool = tb.tools[call.Name]
	}
	if tool == nil {
		result.Response = map[string]any{"error": UnknownToolError}
		return result
	}

	defer func() {
		if r := recover(); r != nil {
			progress("")
			result.Response = map[string]any{"error": fmt.Sprintf("tool %s failed", call.Name)}
		}
	}()
	result.Response = tool.Invoke(ctx, call, progress)
	if result.Response == nil {
		result.Response = map[string]any{}
	}
	return result
}

// IsErrorResult reports whether a tool response carries an error payload.
func IsErrorResult(r ToolResult) bool {
	_, failed := r.Response["error"]
	return failed
}
