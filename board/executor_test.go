package board

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	mural "github.com/nevindra/mural"
	"github.com/nevindra/mural/crdt"
)

func call(t *testing.T, e *Executor, name string, args any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	result, err := e.Execute(context.Background(), name, raw)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if result.Error != "" {
		t.Fatalf("tool error: %s", result.Error)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(result.Content), &out); err != nil {
		t.Fatalf("unmarshal result %q: %v", result.Content, err)
	}
	return out
}

func callErr(t *testing.T, e *Executor, name string, args any) string {
	t.Helper()
	raw, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	result, err := e.Execute(context.Background(), name, raw)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if result.Error == "" {
		t.Fatalf("expected tool error, got content %q", result.Content)
	}
	return result.Error
}

func TestCreateObjectDefaults(t *testing.T) {
	tests := []struct {
		typ    string
		width  float64
		height float64
		fill   string
	}{
		{"sticky", 200, 150, "#FFD700"},
		{"rect", 150, 100, "#87CEEB"},
		{"circle", 100, 100, "#DDA0DD"},
		{"text", 200, 50, "#333333"},
		{"frame", 400, 300, "#E8E8E8"},
		{"line", 2, 2, "#333333"},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			doc := crdt.New()
			e := NewExecutor(doc)
			out := call(t, e, "createObject", map[string]any{"type": tt.typ, "x": 10, "y": 20})
			if out["success"] != true {
				t.Fatalf("success = %v", out["success"])
			}
			obj, ok := doc.Get(out["id"].(string))
			if !ok {
				t.Fatal("created object not in document")
			}
			if obj.Width != tt.width || obj.Height != tt.height || obj.Fill != tt.fill {
				t.Errorf("defaults = %vx%v %s, want %vx%v %s",
					obj.Width, obj.Height, obj.Fill, tt.width, tt.height, tt.fill)
			}
			if obj.Rotation != 0 {
				t.Errorf("rotation = %v, want 0", obj.Rotation)
			}
			if tt.typ == "line" && !obj.ArrowEnd {
				t.Error("line should default arrowEnd to true")
			}
		})
	}
}

func TestCreateObjectCollisionAvoidance(t *testing.T) {
	doc := crdt.New()
	e := NewExecutor(doc)
	seed := mural.BoardObject{ID: "seed", Type: mural.TypeSticky, X: 100, Y: 100, Width: 200, Height: 150, Fill: "#FFD700"}
	if err := doc.PutObject(seed); err != nil {
		t.Fatal(err)
	}

	out := call(t, e, "createObject", map[string]any{"type": "sticky", "x": 100, "y": 100})
	x, y := out["x"].(float64), out["y"].(float64)
	if x == 100 && y == 100 {
		t.Fatal("collision avoidance kept the occupied position")
	}
	obj, _ := doc.Get(out["id"].(string))
	if rectsOverlap(obj.X, obj.Y, obj.Width, obj.Height, seed.X, seed.Y, seed.Width, seed.Height) {
		t.Errorf("placed object at (%v, %v) overlaps the seed", obj.X, obj.Y)
	}
}

func TestCreateObjectClearPositionKept(t *testing.T) {
	doc := crdt.New()
	e := NewExecutor(doc)
	out := call(t, e, "createObject", map[string]any{"type": "rect", "x": 400, "y": 250})
	if out["x"].(float64) != 400 || out["y"].(float64) != 250 {
		t.Errorf("clear position was moved to (%v, %v)", out["x"], out["y"])
	}
}

func TestCreateObjectSkipCollisionAutoParent(t *testing.T) {
	doc := crdt.New()
	e := NewExecutor(doc)
	frame := mural.BoardObject{ID: "f1", Type: mural.TypeFrame, X: 50, Y: 50, Width: 400, Height: 300, Fill: "#E8E8E8"}
	if err := doc.PutObject(frame); err != nil {
		t.Fatal(err)
	}

	out := call(t, e, "createObject", map[string]any{
		"type": "sticky", "x": 70, "y": 100, "skipCollisionCheck": true,
	})
	if out["x"].(float64) != 70 || out["y"].(float64) != 100 {
		t.Errorf("skipCollisionCheck placement moved to (%v, %v), want (70, 100)", out["x"], out["y"])
	}
	if out["parentId"] != "f1" {
		t.Errorf("parentId = %v, want f1 (auto-detected)", out["parentId"])
	}
}

func TestFramesNeverAutoParent(t *testing.T) {
	doc := crdt.New()
	e := NewExecutor(doc)
	outer := mural.BoardObject{ID: "outer", Type: mural.TypeFrame, X: 0, Y: 0, Width: 1000, Height: 800, Fill: "#E8E8E8"}
	if err := doc.PutObject(outer); err != nil {
		t.Fatal(err)
	}
	out := call(t, e, "createObject", map[string]any{
		"type": "frame", "x": 100, "y": 100, "skipCollisionCheck": true,
	})
	if _, ok := out["parentId"]; ok {
		t.Error("frame was auto-parented; frames must never be")
	}
}

func TestCreateObjectLineUsesRequestedPosition(t *testing.T) {
	doc := crdt.New()
	e := NewExecutor(doc)
	if err := doc.PutObject(mural.BoardObject{ID: "seed", Type: mural.TypeSticky, X: 100, Y: 100, Width: 200, Height: 150, Fill: "#FFD700"}); err != nil {
		t.Fatal(err)
	}
	out := call(t, e, "createObject", map[string]any{
		"type": "line", "x": 100, "y": 100, "points": []float64{0, 0, 150, 0},
	})
	if out["x"].(float64) != 100 || out["y"].(float64) != 100 {
		t.Error("lines must never be moved by collision avoidance")
	}
}

func TestCreateObjectAtCap(t *testing.T) {
	doc := crdt.New()
	e := NewExecutor(doc)
	for i := 0; i < mural.MaxObjectsPerBoard; i++ {
		id := fmt.Sprintf("bulk-%04d", i)
		if err := doc.SetFields(id, map[string]any{"type": "rect", "x": 0.0, "y": 0.0, "width": 1.0, "height": 1.0}); err != nil {
			t.Fatal(err)
		}
	}
	msg := callErr(t, e, "createObject", map[string]any{"type": "sticky", "x": 0, "y": 0})
	if !strings.Contains(msg, "full") {
		t.Errorf("cap error = %q, want mention of full board", msg)
	}
	if doc.Len() != mural.MaxObjectsPerBoard {
		t.Errorf("object count changed to %d", doc.Len())
	}
}

func TestUpdateObject(t *testing.T) {
	doc := crdt.New()
	e := NewExecutor(doc)
	if err := doc.PutObject(mural.BoardObject{ID: "o1", Type: mural.TypeSticky, X: 0, Y: 0, Width: 200, Height: 150, Fill: "#FFD700", Text: "old"}); err != nil {
		t.Fatal(err)
	}

	out := call(t, e, "updateObject", map[string]any{"id": "o1", "text": "new", "fill": "#98FB98"})
	if out["success"] != true {
		t.Fatalf("success = %v", out["success"])
	}
	updated, _ := out["updated"].([]any)
	if len(updated) != 2 {
		t.Errorf("updated fields = %v, want [text fill]", updated)
	}
	obj, _ := doc.Get("o1")
	if obj.Text != "new" || obj.Fill != "#98FB98" {
		t.Errorf("object after update: text=%q fill=%q", obj.Text, obj.Fill)
	}
	if obj.Width != 200 {
		t.Error("untouched field changed")
	}
}

func TestUpdateObjectMissing(t *testing.T) {
	e := NewExecutor(crdt.New())
	out := call(t, e, "updateObject", map[string]any{"id": "ghost", "text": "x"})
	if out["success"] != false {
		t.Error("updating a missing object should report success:false")
	}
	if _, ok := out["error"]; !ok {
		t.Error("missing-object result should carry an error message")
	}
}

func TestMoveObject(t *testing.T) {
	doc := crdt.New()
	e := NewExecutor(doc)
	if err := doc.PutObject(mural.BoardObject{ID: "o1", Type: mural.TypeCircle, X: 10, Y: 10, Width: 100, Height: 100, Fill: "#DDA0DD"}); err != nil {
		t.Fatal(err)
	}
	out := call(t, e, "moveObject", map[string]any{"id": "o1", "x": 500, "y": 600})
	if out["x"].(float64) != 500 || out["y"].(float64) != 600 {
		t.Errorf("move result = (%v, %v)", out["x"], out["y"])
	}
	obj, _ := doc.Get("o1")
	if obj.X != 500 || obj.Y != 600 {
		t.Errorf("object at (%v, %v) after move", obj.X, obj.Y)
	}
	if obj.Width != 100 || obj.Fill != "#DDA0DD" {
		t.Error("moveObject changed more than position")
	}
}
