package mural

// StreamEventType identifies the kind of streaming event.
type StreamEventType string

const (
	// EventStatus reports a pipeline state change ("thinking", "cached", ...).
	EventStatus StreamEventType = "status"
	// EventTextDelta carries an incremental text chunk from the LLM.
	EventTextDelta StreamEventType = "text_delta"
	// EventToolResult carries one completed tool call.
	EventToolResult StreamEventType = "tool_result"
	// EventDone is the terminal success event with the full action list.
	EventDone StreamEventType = "done"
	// EventError is the terminal failure event.
	EventError StreamEventType = "error"
)

// StreamEvent is a typed event emitted while a command is processed.
// Consumers receive these on the channel passed to ProcessStream; the HTTP
// layer serializes each one as a single SSE data line.
type StreamEvent struct {
	Type StreamEventType `json:"type"`
	// State is set for status events.
	State string `json:"state,omitempty"`
	// Chunk is set for text_delta events.
	Chunk string `json:"chunk,omitempty"`
	// Action is set for tool_result events.
	Action *ToolAction `json:"action,omitempty"`
	// Message and Actions are set for done events; Message doubles as the
	// short error string for error events.
	Message string       `json:"message,omitempty"`
	Actions []ToolAction `json:"actions,omitempty"`
	// Cached marks a done event produced by recipe replay.
	Cached bool `json:"cached,omitempty"`
}
