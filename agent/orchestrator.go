// Package agent runs natural-language board commands: recipe replay when a
// learned template matches, an external model loop when a provider is
// configured, and the deterministic fallback parser otherwise.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	mural "github.com/nevindra/mural"
	"github.com/nevindra/mural/board"
	"github.com/nevindra/mural/crdt"
	"github.com/nevindra/mural/fallback"
	"github.com/nevindra/mural/recipe"
)

// Turn and token budgets by command complexity.
const (
	simpleMaxTokens  = 512
	simpleMaxTurns   = 3
	complexMaxTokens = 2048
	complexMaxTurns  = 8
)

// complexMarkers flag commands that need the larger budget: multi-object
// layouts, templates and diagrams.
var complexMarkers = []string{
	"grid", "layout", "arrange", "template", "retro", "swot", "journey",
	"kanban", "column", "row", "multiple", "chart", "diagram", "visualize",
	"map", "board", "pros and cons", "matrix", "timeline", "roadmap",
	"workflow", "connect", "arrow",
}

// Orchestrator executes commands against one document at a time. It is
// stateless apart from the shared recipe cache; concurrent commands against
// the same document interleave at tool-call granularity.
type Orchestrator struct {
	cache    *recipe.Cache
	provider mural.Provider
	logger   *slog.Logger
	wrapTool func(mural.Tool) mural.Tool
}

type Option func(*Orchestrator)

// WithProvider configures the external model. Without one, commands are
// served by the recipe cache and the fallback parser only.
func WithProvider(p mural.Provider) Option {
	return func(o *Orchestrator) { o.provider = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithCache(c *recipe.Cache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

// WithToolWrapper wraps the board tool before use, typically for
// instrumentation.
func WithToolWrapper(fn func(mural.Tool) mural.Tool) Option {
	return func(o *Orchestrator) { o.wrapTool = fn }
}

func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cache:  recipe.NewCache(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// HasProvider reports whether an external model is configured.
func (o *Orchestrator) HasProvider() bool { return o.provider != nil }

// CacheLen returns the number of learned recipes.
func (o *Orchestrator) CacheLen() int { return o.cache.Len() }

// Process runs a command synchronously and returns the final message and the
// executed actions.
func (o *Orchestrator) Process(ctx context.Context, command string, doc *crdt.Doc) (string, []mural.ToolAction, error) {
	var msg string
	var actions []mural.ToolAction
	var failed error
	o.run(ctx, command, doc, func(ev mural.StreamEvent) {
		switch ev.Type {
		case mural.EventDone:
			msg, actions = ev.Message, ev.Actions
		case mural.EventError:
			failed = fmt.Errorf("%s", ev.Message)
		}
	})
	if failed != nil {
		return "", nil, failed
	}
	return msg, actions, nil
}

// ProcessStream runs a command and emits events on the channel, closing it
// when the terminal done or error event has been sent.
func (o *Orchestrator) ProcessStream(ctx context.Context, command string, doc *crdt.Doc, events chan<- mural.StreamEvent) {
	defer close(events)
	o.run(ctx, command, doc, func(ev mural.StreamEvent) {
		// Try the buffer first so the terminal event still lands after a
		// cancellation.
		select {
		case events <- ev:
		default:
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		}
	})
}

func (o *Orchestrator) run(ctx context.Context, command string, doc *crdt.Doc, emit func(mural.StreamEvent)) {
	var exec mural.Tool = board.NewExecutor(doc)
	if o.wrapTool != nil {
		exec = o.wrapTool(exec)
	}

	if r, ok := o.cache.Match(command); ok {
		emit(mural.StreamEvent{Type: mural.EventStatus, State: "replaying"})
		msg, actions, err := o.cache.Replay(ctx, r, command, exec)
		if err == nil {
			for i := range actions {
				emit(mural.StreamEvent{Type: mural.EventToolResult, Action: &actions[i]})
			}
			emit(mural.StreamEvent{Type: mural.EventDone, Message: msg, Actions: actions, Cached: true})
			return
		}
		o.logger.Warn("recipe replay failed, falling back", "error", err)
	}

	if o.provider == nil {
		o.runFallback(ctx, command, doc, exec, emit)
		return
	}

	emit(mural.StreamEvent{Type: mural.EventStatus, State: "thinking"})
	msg, actions, err := o.modelLoop(ctx, command, doc, exec, emit)
	if err != nil {
		if ctx.Err() != nil {
			emit(mural.StreamEvent{Type: mural.EventError, Message: "aborted"})
			return
		}
		o.logger.Warn("model loop failed, using fallback parser", "provider", o.provider.Name(), "error", err)
		o.runFallback(ctx, command, doc, exec, emit)
		return
	}

	if len(actions) > 0 {
		o.cache.Learn(command, actions, msg)
	}
	emit(mural.StreamEvent{Type: mural.EventDone, Message: msg, Actions: actions})
}

func (o *Orchestrator) runFallback(ctx context.Context, command string, doc *crdt.Doc, exec mural.Tool, emit func(mural.StreamEvent)) {
	plan, matched := fallback.Parse(command, doc.Objects())
	if !matched {
		emit(mural.StreamEvent{Type: mural.EventDone, Message: plan.Message})
		return
	}

	actions := make([]mural.ToolAction, 0, len(plan.Calls))
	for _, call := range plan.Calls {
		if ctx.Err() != nil {
			emit(mural.StreamEvent{Type: mural.EventError, Message: "aborted"})
			return
		}
		action := o.dispatch(ctx, exec, call.Tool, call.Input)
		actions = append(actions, action)
		emit(mural.StreamEvent{Type: mural.EventToolResult, Action: &action})
	}
	emit(mural.StreamEvent{Type: mural.EventDone, Message: plan.Message, Actions: actions})
}

// dispatch runs one tool call. Failures are captured in the action result,
// never propagated; the sequence continues.
func (o *Orchestrator) dispatch(ctx context.Context, exec mural.Tool, tool string, input map[string]any) mural.ToolAction {
	action := mural.ToolAction{Tool: tool, Input: input}
	raw, err := json.Marshal(input)
	if err != nil {
		action.Result = "invalid input: " + err.Error()
		return action
	}
	res, err := exec.Execute(ctx, tool, raw)
	switch {
	case err != nil:
		action.Result = "tool failed: " + err.Error()
	case res.Error != "":
		action.Result = res.Error
	default:
		action.Result = res.Content
	}
	return action
}

func (o *Orchestrator) modelLoop(ctx context.Context, command string, doc *crdt.Doc, exec mural.Tool, emit func(mural.StreamEvent)) (string, []mural.ToolAction, error) {
	maxTokens, maxTurns := simpleMaxTokens, simpleMaxTurns
	if isComplex(command) {
		maxTokens, maxTurns = complexMaxTokens, complexMaxTurns
	}

	messages := []mural.ChatMessage{
		mural.SystemMessage(systemPreamble(doc)),
		mural.UserMessage(command),
	}
	var actions []mural.ToolAction

	for turn := 0; turn < maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return "", actions, err
		}
		resp, err := o.provider.Chat(ctx, mural.ChatRequest{
			Messages:  messages,
			Tools:     exec.Definitions(),
			MaxTokens: maxTokens,
		})
		if err != nil {
			return "", actions, err
		}

		if len(resp.ToolCalls) == 0 {
			msg := resp.Content
			if msg == "" {
				msg = doneMessage(actions)
			}
			return msg, actions, nil
		}

		messages = append(messages, mural.ChatMessage{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, tc := range resp.ToolCalls {
			if err := ctx.Err(); err != nil {
				return "", actions, err
			}
			var input map[string]any
			if err := json.Unmarshal(tc.Args, &input); err != nil {
				input = map[string]any{}
			}
			action := o.dispatch(ctx, exec, tc.Name, input)
			actions = append(actions, action)
			emit(mural.StreamEvent{Type: mural.EventToolResult, Action: &action})
			messages = append(messages, mural.ToolResultMessage(tc.ID, action.Result))
		}
	}
	return doneMessage(actions), actions, nil
}

func isComplex(command string) bool {
	if len(command) > 120 {
		return true
	}
	c := strings.ToLower(command)
	for _, marker := range complexMarkers {
		if strings.Contains(c, marker) {
			return true
		}
	}
	return false
}

func doneMessage(actions []mural.ToolAction) string {
	if len(actions) == 0 {
		return "Nothing to do."
	}
	return fmt.Sprintf("Done. Executed %d action(s).", len(actions))
}

func systemPreamble(doc *crdt.Doc) string {
	var b strings.Builder
	b.WriteString("You are a whiteboard assistant. Mutate the board only through the provided tools: ")
	b.WriteString("createObject, updateObject, moveObject, getBoardState.\n")
	b.WriteString("Placement rules: coordinates grow right and down; avoid overlapping existing objects; ")
	b.WriteString("objects placed fully inside a frame belong to it.\n\n")
	b.WriteString("Current board:\n")
	b.WriteString(board.BuildBoardContext(doc))
	return b.String()
}
