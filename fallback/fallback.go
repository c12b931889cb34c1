// Package fallback is a deterministic command parser used when no external
// model is configured or the model call fails. It covers a fixed intent
// catalog and plans tool calls without any network dependency.
package fallback

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	mural "github.com/nevindra/mural"
	"github.com/nevindra/mural/recipe"
)

// Call is one planned tool invocation.
type Call struct {
	Tool  string
	Input map[string]any
}

// Plan is the parser's output: a user-facing message and the tool calls to
// dispatch in order. A miss yields the help message and no calls.
type Plan struct {
	Message string
	Calls   []Call
}

var catalog = []string{
	"create objects: \"add a yellow sticky that says Hello at 200, 300\"",
	"named frames: \"create a frame called Ideas\"",
	"templates: \"set up a retro board\", \"create a SWOT analysis\", \"user journey map\", \"make a kanban board\"",
	"grids: \"create a 3x4 grid of stickies\"",
	"recolor: \"change the red stickies to blue\"",
	"move by color: \"move the green stickies to the right\"",
	"layout: \"arrange the stickies in a grid\", \"space the stickies evenly\"",
	"frames: \"resize the frame to fit its contents\"",
}

// Parse matches the command against the intent catalog, most specific first,
// and returns the planned calls. The second result reports whether any
// matcher fired; on a miss the plan carries the help message.
func Parse(command string, objects map[string]mural.BoardObject) (Plan, bool) {
	c := strings.ToLower(command)

	switch {
	case strings.Contains(c, "journey"):
		return journeyPlan(command), true
	case strings.Contains(c, "swot"):
		return swotPlan(), true
	case strings.Contains(c, "retro"):
		return retroPlan(), true
	case strings.Contains(c, "kanban"):
		return kanbanPlan(), true
	}
	if strings.Contains(c, "grid") && gridShapeRe.MatchString(c) && hasCreateVerb(c) {
		return gridPlan(command), true
	}
	switch {
	case strings.Contains(c, "resize") && strings.Contains(c, "frame"):
		return resizeFramePlan(command, objects), true
	case containsAll(c, "space", "evenly") || containsAll(c, "spread", "out"):
		return spaceEvenlyPlan(objects), true
	case strings.Contains(c, "move") && directionRe.MatchString(c) && len(recipe.ColorWords(c)) > 0:
		return moveByColorPlan(command, objects), true
	case strings.Contains(c, "arrange"):
		return arrangeGridPlan(objects), true
	case isRecolor(c):
		return updateColorPlan(command, objects), true
	case strings.Contains(c, "frame") && hasCreateVerb(c):
		return namedFramePlan(command), true
	case hasCreateVerb(c) && objectTypeWord(c) != "":
		return createObjectPlan(command), true
	}

	var b strings.Builder
	b.WriteString("I didn't understand that command. Here is what I can do without an AI model:\n")
	for _, item := range catalog {
		b.WriteString("- " + item + "\n")
	}
	return Plan{Message: strings.TrimRight(b.String(), "\n")}, false
}

var (
	gridShapeRe = regexp.MustCompile(`\b(\d+)\s*x\s*(\d+)\b`)
	directionRe = regexp.MustCompile(`\b(left|right|up|down)\b`)
	stagesRe    = regexp.MustCompile(`(?i)\b(\d+)\s+stages?\b`)
	namedRe     = regexp.MustCompile(`(?i)\b(?:called|named|titled)\s+(.+?)[.!?]?$`)
)

func hasCreateVerb(c string) bool {
	return containsAny(c, "create", "add", "make", "draw", "put", "place", "build", "set up")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}

func isRecolor(c string) bool {
	if len(recipe.ColorWords(c)) == 0 {
		return false
	}
	return containsAny(c, "change", "recolor", "turn", "repaint") ||
		(strings.Contains(c, "color") && containsAny(c, "update", "set", "make"))
}

func objectTypeWord(c string) string {
	switch {
	case containsAny(c, "sticky", "note"):
		return "sticky"
	case containsAny(c, "rectangle", "rect", "box", "square"):
		return "rect"
	case strings.Contains(c, "circle"):
		return "circle"
	case containsAny(c, "text", "label", "title"):
		return "text"
	case strings.Contains(c, "line"), strings.Contains(c, "arrow"):
		return "line"
	}
	return ""
}

// sortedObjects returns objects in id order for deterministic planning.
func sortedObjects(objects map[string]mural.BoardObject) []mural.BoardObject {
	list := make([]mural.BoardObject, 0, len(objects))
	for _, o := range objects {
		list = append(list, o)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// --- simple creators ---

func createObjectPlan(command string) Plan {
	c := strings.ToLower(command)
	p := recipe.ExtractParams(command)
	typ := objectTypeWord(c)

	input := map[string]any{
		"type": typ,
		"x":    numParam(p, "x", 100),
		"y":    numParam(p, "y", 100),
	}
	if hex := p["colorHex"]; hex != "" {
		input["fill"] = hex
	}
	if p["text"] != "" {
		input["text"] = p["text"]
	}

	msg := fmt.Sprintf("Created a %s", typ)
	if p["color"] != "" {
		msg = fmt.Sprintf("Created a %s %s", p["color"], typ)
	}
	if p["text"] != "" {
		msg += fmt.Sprintf(" saying %q", p["text"])
	}
	return Plan{Message: msg + ".", Calls: []Call{{Tool: "createObject", Input: input}}}
}

// extractWithName augments param extraction with "called X" / "named X"
// style names, which only the fallback intents use.
func extractWithName(command string) recipe.Params {
	p := recipe.ExtractParams(command)
	if p["text"] == "" {
		if m := namedRe.FindStringSubmatch(command); m != nil {
			p["text"] = strings.TrimSpace(m[1])
		}
	}
	return p
}

func namedFramePlan(command string) Plan {
	p := extractWithName(command)
	input := map[string]any{
		"type": "frame",
		"x":    numParam(p, "x", 100),
		"y":    numParam(p, "y", 100),
	}
	msg := "Created a frame."
	if p["text"] != "" {
		input["text"] = p["text"]
		msg = fmt.Sprintf("Created a frame named %q.", p["text"])
	}
	return Plan{Message: msg, Calls: []Call{{Tool: "createObject", Input: input}}}
}

func numParam(p recipe.Params, key string, def float64) float64 {
	if v, err := strconv.ParseFloat(p[key], 64); err == nil {
		return v
	}
	return def
}

// --- board rewrites ---

func updateColorPlan(command string, objects map[string]mural.BoardObject) Plan {
	words := recipe.ColorWords(command)
	targetWord := words[len(words)-1]
	targetHex, _ := recipe.ColorHex(targetWord)

	var fromHex string
	if len(words) >= 2 {
		fromHex, _ = recipe.ColorHex(words[0])
	}
	typ := objectTypeWord(strings.ToLower(command))

	var calls []Call
	for _, o := range sortedObjects(objects) {
		if o.Type == mural.TypeFrame {
			continue
		}
		if fromHex != "" && !strings.EqualFold(o.Fill, fromHex) {
			continue
		}
		if fromHex == "" && typ != "" && string(o.Type) != typ {
			continue
		}
		calls = append(calls, Call{Tool: "updateObject", Input: map[string]any{
			"id": o.ID, "fill": targetHex,
		}})
	}
	if len(calls) == 0 {
		return Plan{Message: "No matching objects to recolor."}
	}
	return Plan{
		Message: fmt.Sprintf("Changed %d object(s) to %s.", len(calls), targetWord),
		Calls:   calls,
	}
}

const moveStep = 150

func moveByColorPlan(command string, objects map[string]mural.BoardObject) Plan {
	c := strings.ToLower(command)
	word := recipe.ColorWords(c)[0]
	hex, _ := recipe.ColorHex(word)
	dir := directionRe.FindString(c)

	dx, dy := 0.0, 0.0
	switch dir {
	case "left":
		dx = -moveStep
	case "right":
		dx = moveStep
	case "up":
		dy = -moveStep
	case "down":
		dy = moveStep
	}

	var calls []Call
	for _, o := range sortedObjects(objects) {
		if !strings.EqualFold(o.Fill, hex) {
			continue
		}
		calls = append(calls, Call{Tool: "moveObject", Input: map[string]any{
			"id": o.ID, "x": o.X + dx, "y": o.Y + dy,
		}})
	}
	if len(calls) == 0 {
		return Plan{Message: fmt.Sprintf("No %s objects found to move.", word)}
	}
	return Plan{
		Message: fmt.Sprintf("Moved %d %s object(s) %s.", len(calls), word, dir),
		Calls:   calls,
	}
}

func arrangeGridPlan(objects map[string]mural.BoardObject) Plan {
	var targets []mural.BoardObject
	for _, o := range sortedObjects(objects) {
		if o.Type != mural.TypeFrame {
			targets = append(targets, o)
		}
	}
	if len(targets) == 0 {
		return Plan{Message: "Nothing on the board to arrange."}
	}

	cols := int(math.Ceil(math.Sqrt(float64(len(targets)))))
	var calls []Call
	for i, o := range targets {
		col, row := i%cols, i/cols
		calls = append(calls, Call{Tool: "moveObject", Input: map[string]any{
			"id": o.ID,
			"x":  100.0 + float64(col)*(stickyW+gridGap),
			"y":  100.0 + float64(row)*(stickyH+gridGap),
		}})
	}
	return Plan{
		Message: fmt.Sprintf("Arranged %d object(s) in a grid.", len(calls)),
		Calls:   calls,
	}
}

func spaceEvenlyPlan(objects map[string]mural.BoardObject) Plan {
	var targets []mural.BoardObject
	for _, o := range objects {
		if o.Type != mural.TypeFrame {
			targets = append(targets, o)
		}
	}
	if len(targets) < 2 {
		return Plan{Message: "Need at least two objects to space out."}
	}
	sort.Slice(targets, func(i, j int) bool {
		if targets[i].X != targets[j].X {
			return targets[i].X < targets[j].X
		}
		return targets[i].ID < targets[j].ID
	})

	x := targets[0].X
	var calls []Call
	for _, o := range targets {
		calls = append(calls, Call{Tool: "moveObject", Input: map[string]any{
			"id": o.ID, "x": x, "y": o.Y,
		}})
		x += o.Width + gridGap
	}
	return Plan{
		Message: fmt.Sprintf("Spaced %d object(s) evenly.", len(calls)),
		Calls:   calls,
	}
}

const framePad = 30

func resizeFramePlan(command string, objects map[string]mural.BoardObject) Plan {
	p := extractWithName(command)

	var frame *mural.BoardObject
	var frames []mural.BoardObject
	for _, o := range sortedObjects(objects) {
		if o.Type != mural.TypeFrame {
			continue
		}
		frames = append(frames, o)
		if p["text"] != "" && strings.EqualFold(o.Text, p["text"]) {
			f := o
			frame = &f
		}
	}
	if frame == nil {
		if len(frames) != 1 {
			return Plan{Message: "Which frame? Name it, e.g. \"resize the frame called Ideas\"."}
		}
		frame = &frames[0]
	}

	maxRight, maxBottom := 0.0, 0.0
	for _, o := range objects {
		if o.ParentID != frame.ID {
			continue
		}
		if r := o.X + o.Width; r > maxRight {
			maxRight = r
		}
		if b := o.Y + o.Height; b > maxBottom {
			maxBottom = b
		}
	}
	if maxRight == 0 && maxBottom == 0 {
		return Plan{Message: "That frame has no contents to fit."}
	}

	return Plan{
		Message: "Resized the frame to fit its contents.",
		Calls: []Call{{Tool: "updateObject", Input: map[string]any{
			"id":     frame.ID,
			"width":  maxRight - frame.X + framePad,
			"height": maxBottom - frame.Y + framePad,
		}}},
	}
}
