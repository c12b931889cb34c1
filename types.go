package mural

import "encoding/json"

// --- Board domain types ---

// ObjectType enumerates the kinds of objects a board can hold.
type ObjectType string

const (
	TypeSticky ObjectType = "sticky"
	TypeRect   ObjectType = "rect"
	TypeCircle ObjectType = "circle"
	TypeText   ObjectType = "text"
	TypeFrame  ObjectType = "frame"
	TypeLine   ObjectType = "line"
)

// BoardObject is one element on a whiteboard. The ID always equals the
// document map key the object is stored under.
type BoardObject struct {
	ID       string     `json:"id"`
	Type     ObjectType `json:"type"`
	X        float64    `json:"x"`
	Y        float64    `json:"y"`
	Width    float64    `json:"width"`
	Height   float64    `json:"height"`
	Fill     string     `json:"fill"`
	Rotation float64    `json:"rotation"`

	Text     string  `json:"text,omitempty"`
	FontSize float64 `json:"fontSize,omitempty"`
	// ParentId references a frame object containing this one.
	ParentID string `json:"parentId,omitempty"`

	// Line-only fields. Points is [x1,y1,x2,y2] relative to (X, Y).
	Points   []float64 `json:"points,omitempty"`
	FromID   string    `json:"fromId,omitempty"`
	ToID     string    `json:"toId,omitempty"`
	ArrowEnd bool      `json:"arrowEnd,omitempty"`
}

// ToolAction records one executed tool call. It is the shared wire shape
// between the orchestrator, stream events, and recipe learning.
type ToolAction struct {
	Tool   string         `json:"tool"`
	Input  map[string]any `json:"input"`
	Result string         `json:"result"`
}

// --- LLM protocol types ---

type ChatMessage struct {
	Role       string     `json:"role"` // "system", "user", "assistant", "tool"
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

type ChatRequest struct {
	Messages  []ChatMessage    `json:"messages"`
	Tools     []ToolDefinition `json:"tools,omitempty"`
	MaxTokens int              `json:"max_tokens,omitempty"`
}

type ChatResponse struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Usage     Usage      `json:"usage"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"` // JSON Schema
}

// --- ChatMessage constructors ---

func UserMessage(text string) ChatMessage {
	return ChatMessage{Role: "user", Content: text}
}

func SystemMessage(text string) ChatMessage {
	return ChatMessage{Role: "system", Content: text}
}

func AssistantMessage(text string) ChatMessage {
	return ChatMessage{Role: "assistant", Content: text}
}

func ToolResultMessage(callID, content string) ChatMessage {
	return ChatMessage{Role: "tool", Content: content, ToolCallID: callID}
}
