// Package anthropic implements mural.Provider over the Anthropic Messages
// API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	mural "github.com/nevindra/mural"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"
	// defaultMaxTokens applies when the request carries no budget; the
	// Messages API requires the field.
	defaultMaxTokens = 1024
)

// Provider implements mural.Provider for Anthropic models.
type Provider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

var _ mural.Provider = (*Provider)(nil)

type Option func(*Provider)

// WithBaseURL overrides the API endpoint, e.g. for a proxy or test server.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// NewProvider creates an Anthropic chat provider for the given model
// (e.g. "claude-sonnet-4-5").
func NewProvider(apiKey, model string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string { return "anthropic" }

// Chat sends a non-streaming request and returns the complete response.
// When req.Tools is non-empty, the response may contain ToolCalls.
func (p *Provider) Chat(ctx context.Context, req mural.ChatRequest) (mural.ChatResponse, error) {
	body := buildBody(req, p.model)

	payload, err := json.Marshal(body)
	if err != nil {
		return mural.ChatResponse{}, &mural.ErrLLM{Provider: p.Name(), Message: fmt.Sprintf("marshal request: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return mural.ChatResponse{}, &mural.ErrLLM{Provider: p.Name(), Message: fmt.Sprintf("create request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return mural.ChatResponse{}, &mural.ErrLLM{Provider: p.Name(), Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return mural.ChatResponse{}, &mural.ErrHTTP{Status: resp.StatusCode, Body: string(b)}
	}

	var mr messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return mural.ChatResponse{}, &mural.ErrLLM{Provider: p.Name(), Message: fmt.Sprintf("decode response: %v", err)}
	}
	return parseResponse(mr), nil
}

// buildBody converts a mural.ChatRequest into Messages API shape: the system
// prompt moves to the top-level field, tool results become user-role
// tool_result blocks, and assistant tool calls become tool_use blocks.
func buildBody(req mural.ChatRequest, model string) messagesRequest {
	body := messagesRequest{
		Model:     model,
		MaxTokens: req.MaxTokens,
	}
	if body.MaxTokens <= 0 {
		body.MaxTokens = defaultMaxTokens
	}

	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			body.System = m.Content

		case "assistant":
			var blocks []contentBlock
			if m.Content != "" {
				blocks = append(blocks, contentBlock{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				args := tc.Args
				if len(args) == 0 {
					args = json.RawMessage(`{}`)
				}
				blocks = append(blocks, contentBlock{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Name,
					Input: args,
				})
			}
			body.Messages = append(body.Messages, message{Role: "assistant", Content: blocks})

		case "tool":
			body.Messages = append(body.Messages, message{Role: "user", Content: []contentBlock{{
				Type:      "tool_result",
				ToolUseID: m.ToolCallID,
				Content:   m.Content,
			}}})

		default:
			body.Messages = append(body.Messages, message{Role: "user", Content: []contentBlock{{
				Type: "text",
				Text: m.Content,
			}}})
		}
	}

	for _, t := range req.Tools {
		schema := t.Parameters
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		body.Tools = append(body.Tools, tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}
	return body
}

// parseResponse flattens the response content blocks: text blocks concatenate
// into Content, tool_use blocks become ToolCalls.
func parseResponse(mr messagesResponse) mural.ChatResponse {
	var resp mural.ChatResponse
	for _, block := range mr.Content {
		switch block.Type {
		case "text":
			resp.Content += block.Text
		case "tool_use":
			resp.ToolCalls = append(resp.ToolCalls, mural.ToolCall{
				ID:   block.ID,
				Name: block.Name,
				Args: block.Input,
			})
		}
	}
	resp.Usage = mural.Usage{
		InputTokens:  mr.Usage.InputTokens,
		OutputTokens: mr.Usage.OutputTokens,
	}
	return resp
}
