package mural

import (
	"context"
	"encoding/json"
)

// Tool defines a board capability with one or more tool functions.
type Tool interface {
	Definitions() []ToolDefinition
	Execute(ctx context.Context, name string, args json.RawMessage) (ToolResult, error)
}

// ToolResult is the outcome of a tool execution. Error is set in-band for
// failures the LLM should see and recover from; the error return of Execute
// is reserved for infrastructure faults.
type ToolResult struct {
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}
