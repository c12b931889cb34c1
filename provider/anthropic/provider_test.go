package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	mural "github.com/nevindra/mural"
)

func TestBuildBody(t *testing.T) {
	req := mural.ChatRequest{
		Messages: []mural.ChatMessage{
			mural.SystemMessage("You are a whiteboard assistant."),
			mural.UserMessage("add a sticky"),
			{
				Role:      "assistant",
				ToolCalls: []mural.ToolCall{{ID: "t1", Name: "createObject", Args: json.RawMessage(`{"type":"sticky"}`)}},
			},
			mural.ToolResultMessage("t1", `{"success":true}`),
		},
		Tools: []mural.ToolDefinition{
			{Name: "createObject", Description: "create", Parameters: json.RawMessage(`{"type":"object"}`)},
		},
		MaxTokens: 512,
	}

	body := buildBody(req, "claude-sonnet-4-5")
	if body.System != "You are a whiteboard assistant." {
		t.Errorf("system = %q", body.System)
	}
	if body.MaxTokens != 512 || body.Model != "claude-sonnet-4-5" {
		t.Errorf("model/max_tokens = %s/%d", body.Model, body.MaxTokens)
	}
	if len(body.Messages) != 3 {
		t.Fatalf("messages = %d, want 3 (system is top-level)", len(body.Messages))
	}
	if body.Messages[1].Role != "assistant" || body.Messages[1].Content[0].Type != "tool_use" {
		t.Errorf("assistant message = %+v", body.Messages[1])
	}
	tr := body.Messages[2]
	if tr.Role != "user" || tr.Content[0].Type != "tool_result" || tr.Content[0].ToolUseID != "t1" {
		t.Errorf("tool result message = %+v", tr)
	}
	if len(body.Tools) != 1 || string(body.Tools[0].InputSchema) != `{"type":"object"}` {
		t.Errorf("tools = %+v", body.Tools)
	}
}

func TestBuildBodyDefaultMaxTokens(t *testing.T) {
	body := buildBody(mural.ChatRequest{Messages: []mural.ChatMessage{mural.UserMessage("hi")}}, "m")
	if body.MaxTokens != defaultMaxTokens {
		t.Errorf("max_tokens = %d, want %d", body.MaxTokens, defaultMaxTokens)
	}
}

func TestChatParsesToolUse(t *testing.T) {
	var gotVersion, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotVersion = r.Header.Get("anthropic-version")
		gotKey = r.Header.Get("x-api-key")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"content": [
				{"type": "text", "text": "Placing it now."},
				{"type": "tool_use", "id": "toolu_1", "name": "createObject", "input": {"type": "sticky", "x": 100, "y": 100}}
			],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 20, "output_tokens": 10}
		}`))
	}))
	defer srv.Close()

	p := NewProvider("sk-test", "claude-sonnet-4-5", WithBaseURL(srv.URL))
	resp, err := p.Chat(context.Background(), mural.ChatRequest{
		Messages: []mural.ChatMessage{mural.UserMessage("add a sticky")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if gotVersion != apiVersion || gotKey != "sk-test" {
		t.Errorf("headers = version %q, key %q", gotVersion, gotKey)
	}
	if resp.Content != "Placing it now." {
		t.Errorf("content = %q", resp.Content)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "createObject" || resp.ToolCalls[0].ID != "toolu_1" {
		t.Fatalf("tool calls = %+v", resp.ToolCalls)
	}
	var input map[string]any
	if err := json.Unmarshal(resp.ToolCalls[0].Args, &input); err != nil {
		t.Fatal(err)
	}
	if input["type"] != "sticky" {
		t.Errorf("args = %v", input)
	}
	if resp.Usage.InputTokens != 20 || resp.Usage.OutputTokens != 10 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestChatHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"overloaded_error"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewProvider("sk-test", "m", WithBaseURL(srv.URL))
	_, err := p.Chat(context.Background(), mural.ChatRequest{
		Messages: []mural.ChatMessage{mural.UserMessage("hi")},
	})
	var httpErr *mural.ErrHTTP
	if !errors.As(err, &httpErr) || httpErr.Status != http.StatusServiceUnavailable {
		t.Fatalf("err = %v", err)
	}
}
