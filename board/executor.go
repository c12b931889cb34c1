// Package board implements the tool surface the AI pipeline mutates
// documents through: createObject, updateObject, moveObject and
// getBoardState. Inputs arrive as loose JSON maps (the model's output
// schema is not known statically); each tool decodes into its own typed
// args struct at this boundary.
package board

import (
	"context"
	"encoding/json"
	"fmt"

	mural "github.com/nevindra/mural"
	"github.com/nevindra/mural/crdt"
)

// typeDefaults carries per-type creation defaults.
type typeDefaults struct {
	width, height float64
	fill          string
}

var defaults = map[mural.ObjectType]typeDefaults{
	mural.TypeSticky: {200, 150, "#FFD700"},
	mural.TypeRect:   {150, 100, "#87CEEB"},
	mural.TypeCircle: {100, 100, "#DDA0DD"},
	mural.TypeText:   {200, 50, "#333333"},
	mural.TypeFrame:  {400, 300, "#E8E8E8"},
	mural.TypeLine:   {2, 2, "#333333"},
}

// Executor implements mural.Tool over one room document.
type Executor struct {
	doc *crdt.Doc
}

var _ mural.Tool = (*Executor)(nil)

// NewExecutor creates an Executor bound to doc.
func NewExecutor(doc *crdt.Doc) *Executor {
	return &Executor{doc: doc}
}

func (e *Executor) Definitions() []mural.ToolDefinition {
	return []mural.ToolDefinition{
		{
			Name:        "createObject",
			Description: "Create a new object on the board. Position is adjusted automatically to avoid overlapping existing objects unless skipCollisionCheck is true. Objects placed fully inside a frame are parented to it.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"type": {"type": "string", "enum": ["sticky", "rect", "circle", "text", "frame", "line"]},
					"x": {"type": "number"},
					"y": {"type": "number"},
					"width": {"type": "number"},
					"height": {"type": "number"},
					"fill": {"type": "string", "description": "Color as #RRGGBB"},
					"text": {"type": "string"},
					"fontSize": {"type": "number"},
					"parentId": {"type": "string", "description": "Frame to place the object in"},
					"points": {"type": "array", "items": {"type": "number"}, "description": "Line only: [x1,y1,x2,y2] relative to (x,y)"},
					"fromId": {"type": "string"},
					"toId": {"type": "string"},
					"arrowEnd": {"type": "boolean"},
					"skipCollisionCheck": {"type": "boolean"}
				},
				"required": ["type", "x", "y"]
			}`),
		},
		{
			Name:        "updateObject",
			Description: "Update fields of an existing object. Only the provided fields change.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"id": {"type": "string"},
					"text": {"type": "string"},
					"fill": {"type": "string"},
					"width": {"type": "number"},
					"height": {"type": "number"},
					"fontSize": {"type": "number"}
				},
				"required": ["id"]
			}`),
		},
		{
			Name:        "moveObject",
			Description: "Move an object to a new position. Size and all other fields are unchanged.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"id": {"type": "string"},
					"x": {"type": "number"},
					"y": {"type": "number"}
				},
				"required": ["id", "x", "y"]
			}`),
		},
		{
			Name:        "getBoardState",
			Description: "Get a human-readable snapshot of the board: objects with ids, positions, sizes and colors, plus the occupied area.",
			Parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),
		},
	}
}

func (e *Executor) Execute(ctx context.Context, name string, args json.RawMessage) (mural.ToolResult, error) {
	switch name {
	case "createObject":
		return e.createObject(args)
	case "updateObject":
		return e.updateObject(args)
	case "moveObject":
		return e.moveObject(args)
	case "getBoardState":
		return mural.ToolResult{Content: BuildBoardContext(e.doc)}, nil
	default:
		return mural.ToolResult{Error: "unknown board tool: " + name}, nil
	}
}

// --- createObject ---

type createArgs struct {
	Type               string    `json:"type"`
	X                  *float64  `json:"x"`
	Y                  *float64  `json:"y"`
	Width              *float64  `json:"width"`
	Height             *float64  `json:"height"`
	Fill               string    `json:"fill"`
	Text               string    `json:"text"`
	FontSize           float64   `json:"fontSize"`
	ParentID           string    `json:"parentId"`
	Points             []float64 `json:"points"`
	FromID             string    `json:"fromId"`
	ToID               string    `json:"toId"`
	ArrowEnd           *bool     `json:"arrowEnd"`
	SkipCollisionCheck bool      `json:"skipCollisionCheck"`
}

func (e *Executor) createObject(args json.RawMessage) (mural.ToolResult, error) {
	var a createArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return mural.ToolResult{Error: "invalid args: " + err.Error()}, nil
	}
	typ := mural.ObjectType(a.Type)
	def, ok := defaults[typ]
	if !ok {
		return mural.ToolResult{Error: fmt.Sprintf("unknown object type %q", a.Type)}, nil
	}
	if a.X == nil || a.Y == nil {
		return mural.ToolResult{Error: "x and y are required"}, nil
	}
	if !mural.CanAddObject(e.doc.Len()) {
		return mural.ToolResult{Error: fmt.Sprintf("board is full (%d objects max)", mural.MaxObjectsPerBoard)}, nil
	}

	obj := mural.BoardObject{
		ID:     mural.NewObjectID(),
		Type:   typ,
		X:      *a.X,
		Y:      *a.Y,
		Width:  def.width,
		Height: def.height,
		Fill:   def.fill,
	}
	if a.Width != nil && *a.Width >= 1 {
		obj.Width = *a.Width
	}
	if a.Height != nil && *a.Height >= 1 {
		obj.Height = *a.Height
	}
	if a.Fill != "" {
		obj.Fill = a.Fill
	}
	obj.Text = a.Text
	obj.FontSize = a.FontSize
	if typ == mural.TypeLine {
		obj.Points = a.Points
		obj.FromID = a.FromID
		obj.ToID = a.ToID
		obj.ArrowEnd = true
		if a.ArrowEnd != nil {
			obj.ArrowEnd = *a.ArrowEnd
		}
	}

	objects := e.doc.Objects()

	if !a.SkipCollisionCheck && typ != mural.TypeLine {
		obj.X, obj.Y = findFreePosition(objects, obj.X, obj.Y, obj.Width, obj.Height)
	}

	switch {
	case a.ParentID != "":
		parent, ok := objects[a.ParentID]
		if !ok || parent.Type != mural.TypeFrame {
			return mural.ToolResult{Error: fmt.Sprintf("parentId %q is not an existing frame", a.ParentID)}, nil
		}
		obj.ParentID = a.ParentID
		clampIntoFrame(&obj, parent)
	case typ != mural.TypeFrame:
		obj.ParentID = findContainingFrame(objects, obj)
	}

	if obj.FromID != "" {
		if _, ok := objects[obj.FromID]; !ok {
			obj.FromID = ""
		}
	}
	if obj.ToID != "" {
		if _, ok := objects[obj.ToID]; !ok {
			obj.ToID = ""
		}
	}

	if err := e.doc.PutObject(obj); err != nil {
		return mural.ToolResult{Error: "create failed: " + err.Error()}, nil
	}

	result := map[string]any{
		"success": true,
		"id":      obj.ID,
		"type":    obj.Type,
		"text":    obj.Text,
		"x":       obj.X,
		"y":       obj.Y,
		"width":   obj.Width,
		"height":  obj.Height,
	}
	if obj.ParentID != "" {
		result["parentId"] = obj.ParentID
	}
	return marshalResult(result)
}

// --- updateObject ---

type updateArgs struct {
	ID       string   `json:"id"`
	Text     *string  `json:"text"`
	Fill     *string  `json:"fill"`
	Width    *float64 `json:"width"`
	Height   *float64 `json:"height"`
	FontSize *float64 `json:"fontSize"`
}

func (e *Executor) updateObject(args json.RawMessage) (mural.ToolResult, error) {
	var a updateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return mural.ToolResult{Error: "invalid args: " + err.Error()}, nil
	}
	if a.ID == "" {
		return mural.ToolResult{Error: "id is required"}, nil
	}
	if _, ok := e.doc.Get(a.ID); !ok {
		return marshalResult(map[string]any{"success": false, "error": fmt.Sprintf("object %q not found", a.ID)})
	}

	fields := make(map[string]any)
	var updated []string
	if a.Text != nil {
		fields["text"] = *a.Text
		updated = append(updated, "text")
	}
	if a.Fill != nil {
		fields["fill"] = *a.Fill
		updated = append(updated, "fill")
	}
	if a.Width != nil && *a.Width >= 1 {
		fields["width"] = *a.Width
		updated = append(updated, "width")
	}
	if a.Height != nil && *a.Height >= 1 {
		fields["height"] = *a.Height
		updated = append(updated, "height")
	}
	if a.FontSize != nil {
		fields["fontSize"] = *a.FontSize
		updated = append(updated, "fontSize")
	}
	if len(fields) == 0 {
		return marshalResult(map[string]any{"success": false, "error": "no updatable fields provided"})
	}
	if err := e.doc.SetFields(a.ID, fields); err != nil {
		return mural.ToolResult{Error: "update failed: " + err.Error()}, nil
	}
	return marshalResult(map[string]any{"success": true, "id": a.ID, "updated": updated})
}

// --- moveObject ---

type moveArgs struct {
	ID string   `json:"id"`
	X  *float64 `json:"x"`
	Y  *float64 `json:"y"`
}

func (e *Executor) moveObject(args json.RawMessage) (mural.ToolResult, error) {
	var a moveArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return mural.ToolResult{Error: "invalid args: " + err.Error()}, nil
	}
	if a.ID == "" || a.X == nil || a.Y == nil {
		return mural.ToolResult{Error: "id, x and y are required"}, nil
	}
	if _, ok := e.doc.Get(a.ID); !ok {
		return marshalResult(map[string]any{"success": false, "error": fmt.Sprintf("object %q not found", a.ID)})
	}
	if err := e.doc.SetFields(a.ID, map[string]any{"x": *a.X, "y": *a.Y}); err != nil {
		return mural.ToolResult{Error: "move failed: " + err.Error()}, nil
	}
	return marshalResult(map[string]any{"success": true, "id": a.ID, "x": *a.X, "y": *a.Y})
}

func marshalResult(v map[string]any) (mural.ToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mural.ToolResult{Error: "marshal error: " + err.Error()}, nil
	}
	return mural.ToolResult{Content: string(data)}, nil
}
