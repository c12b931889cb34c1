package recipe

import (
	"context"
	"fmt"
	"strings"
	"testing"

	mural "github.com/nevindra/mural"
	"github.com/nevindra/mural/board"
	"github.com/nevindra/mural/crdt"
)

func stickyAction(fill, text string) mural.ToolAction {
	return mural.ToolAction{
		Tool: "createObject",
		Input: map[string]any{
			"type": "sticky",
			"fill": fill,
			"text": text,
			"x":    100.0,
			"y":    100.0,
		},
		Result: `{"success":true}`,
	}
}

func TestLearnRejections(t *testing.T) {
	c := NewCache()
	if c.Learn("add a yellow sticky", nil, "done") {
		t.Error("learned an empty action list")
	}
	long := make([]mural.ToolAction, maxActions+1)
	for i := range long {
		long[i] = stickyAction("#FFD700", "x")
	}
	if c.Learn("add a yellow sticky", long, "done") {
		t.Error("learned an oversized action list")
	}
	if c.Learn("what is the weather", []mural.ToolAction{stickyAction("#FFD700", "x")}, "done") {
		t.Error("learned a generic command")
	}
	if c.Len() != 0 {
		t.Errorf("cache len = %d after rejections", c.Len())
	}
}

func TestLearnFirstWins(t *testing.T) {
	c := NewCache()
	if !c.Learn("add a yellow sticky saying One", []mural.ToolAction{stickyAction("#FFD700", "One")}, "Created One") {
		t.Fatal("first learn rejected")
	}
	if c.Learn("add a green sticky saying Two", []mural.ToolAction{stickyAction("#98FB98", "Two")}, "Created Two") {
		t.Error("second learn for the same intent overwrote the recipe")
	}
	r, ok := c.Match("add a sticky saying anything")
	if !ok {
		t.Fatal("no match for learned intent")
	}
	if !strings.Contains(r.ResponseTemplate, "One") && !strings.Contains(r.ResponseTemplate, "${text}") {
		t.Errorf("recipe response = %q, want the first-learned template", r.ResponseTemplate)
	}
}

func TestMatchBumpsCounters(t *testing.T) {
	c := NewCache()
	c.Learn("add a yellow sticky saying Hi", []mural.ToolAction{stickyAction("#FFD700", "Hi")}, "Created")
	r1, ok := c.Match("add a pink sticky saying Yo")
	if !ok {
		t.Fatal("miss on learned intent")
	}
	if r1.HitCount != 1 {
		t.Errorf("hit_count = %d, want 1", r1.HitCount)
	}
	r2, _ := c.Match("add a sticky")
	if r2.HitCount != 2 {
		t.Errorf("hit_count = %d, want 2", r2.HitCount)
	}
	if _, ok := c.Match("tell me a story"); ok {
		t.Error("generic command matched a recipe")
	}
}

func TestLRUEviction(t *testing.T) {
	c := NewCache()
	for i := 0; i < maxRecipes+5; i++ {
		cmd := fmt.Sprintf("create a %dx2 grid of stickies", i+1)
		if !c.Learn(cmd, []mural.ToolAction{stickyAction("#FFD700", "x")}, "done") {
			t.Fatalf("learn %d rejected", i)
		}
	}
	if c.Len() != maxRecipes {
		t.Errorf("cache len = %d, want %d", c.Len(), maxRecipes)
	}
	// The oldest untouched intents are gone.
	if _, ok := c.Match("create a 1x2 grid of stickies"); ok {
		t.Error("least-recently-used recipe survived past capacity")
	}
	if _, ok := c.Match(fmt.Sprintf("create a %dx2 grid of stickies", maxRecipes+5)); !ok {
		t.Error("most recent recipe missing")
	}
}

func TestReplaySubstitutesNewParams(t *testing.T) {
	c := NewCache()
	learned := c.Learn(
		"Add a yellow sticky note that says Hello",
		[]mural.ToolAction{stickyAction("#FFD700", "Hello")},
		"Created a yellow sticky saying Hello",
	)
	if !learned {
		t.Fatal("learn rejected")
	}

	doc := crdt.New()
	exec := board.NewExecutor(doc)
	r, ok := c.Match("Add a blue sticky note that says World")
	if !ok {
		t.Fatal("no cache hit")
	}
	msg, actions, err := c.Replay(context.Background(), r, "Add a blue sticky note that says World", exec)
	if err != nil {
		t.Fatal(err)
	}
	if len(actions) != 1 {
		t.Fatalf("replay produced %d actions, want 1", len(actions))
	}
	if actions[0].Input["fill"] != "#87CEEB" || actions[0].Input["text"] != "World" {
		t.Errorf("replayed input = %v", actions[0].Input)
	}
	if !strings.Contains(msg, "blue") || !strings.Contains(msg, "World") {
		t.Errorf("replayed message = %q", msg)
	}

	objects := doc.Objects()
	if len(objects) != 1 {
		t.Fatalf("document has %d objects, want 1", len(objects))
	}
	for _, o := range objects {
		if o.Fill != "#87CEEB" || o.Text != "World" {
			t.Errorf("created object fill=%q text=%q", o.Fill, o.Text)
		}
	}
}

func TestReplayStopsOnCancelledContext(t *testing.T) {
	c := NewCache()
	c.Learn(
		"Add a yellow sticky that says Hello",
		[]mural.ToolAction{stickyAction("#FFD700", "Hello")},
		"Done",
	)

	doc := crdt.New()
	r, ok := c.Match("add a blue sticky that says World")
	if !ok {
		t.Fatal("no cache hit")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, actions, err := c.Replay(ctx, r, "add a blue sticky that says World", board.NewExecutor(doc))
	if err == nil {
		t.Fatal("replay ignored the cancelled context")
	}
	if len(actions) != 0 {
		t.Errorf("executed %d actions after cancellation, want 0", len(actions))
	}
	if doc.Len() != 0 {
		t.Errorf("board has %d objects after cancelled replay, want 0", doc.Len())
	}
}

func TestReplayDefaults(t *testing.T) {
	c := NewCache()
	c.Learn(
		"Add a yellow sticky at 200, 300",
		[]mural.ToolAction{{
			Tool: "createObject",
			Input: map[string]any{
				"type": "sticky", "fill": "#FFD700", "x": 200.0, "y": 300.0,
			},
		}},
		"Done",
	)

	doc := crdt.New()
	r, ok := c.Match("add a sticky")
	if !ok {
		t.Fatal("no cache hit")
	}
	_, actions, err := c.Replay(context.Background(), r, "add a sticky", board.NewExecutor(doc))
	if err != nil {
		t.Fatal(err)
	}
	in := actions[0].Input
	if in["x"] != 100.0 || in["y"] != 100.0 {
		t.Errorf("default position = (%v, %v), want (100, 100)", in["x"], in["y"])
	}
	if in["fill"] != "#FFD700" {
		t.Errorf("default fill = %v, want #FFD700", in["fill"])
	}
}

func TestClear(t *testing.T) {
	c := NewCache()
	c.Learn("add a sticky saying Hi", []mural.ToolAction{stickyAction("#FFD700", "Hi")}, "done")
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("len after Clear = %d", c.Len())
	}
}
