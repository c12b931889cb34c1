package fallback

import (
	"fmt"
	"strconv"
	"strings"
)

// Template geometry. Stickies inside template frames are sized down so two
// fit a frame with room to spare.
const (
	stickyW = 200
	stickyH = 150
	gridGap = 20

	frameGap     = 40
	templStartX  = 50
	templStartY  = 50
	innerStickyW = 150
	innerStickyH = 100
	innerInsetX  = 30
	innerInsetY1 = 60
	innerInsetY2 = 180
)

// frameWithStickies plans one labeled frame plus two starter stickies pinned
// inside it.
func frameWithStickies(label string, x, y, w, h float64, fill string) []Call {
	calls := []Call{{Tool: "createObject", Input: map[string]any{
		"type": "frame", "x": x, "y": y, "width": w, "height": h, "text": label,
		"skipCollisionCheck": true,
	}}}
	for _, sy := range []float64{y + innerInsetY1, y + innerInsetY2} {
		calls = append(calls, Call{Tool: "createObject", Input: map[string]any{
			"type": "sticky", "x": x + innerInsetX, "y": sy,
			"width": float64(innerStickyW), "height": float64(innerStickyH),
			"fill": fill, "skipCollisionCheck": true,
		}})
	}
	return calls
}

func retroPlan() Plan {
	const w, h = 350.0, 450.0
	labels := []string{"What Went Well", "What Didn't Go Well", "Action Items"}
	fills := []string{"#98FB98", "#FFB6C1", "#FFD700"}

	var calls []Call
	for i, label := range labels {
		x := templStartX + float64(i)*(w+frameGap)
		calls = append(calls, frameWithStickies(label, x, templStartY, w, h, fills[i])...)
	}
	return Plan{
		Message: "Set up a retrospective board: What Went Well, What Didn't Go Well, Action Items.",
		Calls:   calls,
	}
}

func swotPlan() Plan {
	const w, h = 400.0, 300.0
	labels := []string{"Strengths", "Weaknesses", "Opportunities", "Threats"}
	fills := []string{"#98FB98", "#FFB6C1", "#87CEEB", "#FFA07A"}

	var calls []Call
	for i, label := range labels {
		x := templStartX + float64(i%2)*(w+frameGap)
		y := templStartY + float64(i/2)*(h+frameGap)
		calls = append(calls, frameWithStickies(label, x, y, w, h, fills[i])...)
	}
	return Plan{
		Message: "Created a SWOT analysis: Strengths, Weaknesses, Opportunities, Threats.",
		Calls:   calls,
	}
}

func journeyPlan(command string) Plan {
	stages := 5
	if m := stagesRe.FindStringSubmatch(command); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 && n <= 12 {
			stages = n
		}
	}
	const w, h = 300.0, 400.0

	var calls []Call
	for i := 0; i < stages; i++ {
		label := fmt.Sprintf("Stage %d", i+1)
		x := templStartX + float64(i)*(w+frameGap)
		calls = append(calls, frameWithStickies(label, x, templStartY, w, h, "#FFD700")...)
	}
	return Plan{
		Message: fmt.Sprintf("Created a user journey map with %d stages.", stages),
		Calls:   calls,
	}
}

func kanbanPlan() Plan {
	const w, h = 300.0, 500.0
	labels := []string{"To Do", "In Progress", "Done"}
	fills := []string{"#D1D5DB", "#87CEEB", "#98FB98"}

	var calls []Call
	for i, label := range labels {
		x := templStartX + float64(i)*(w+frameGap)
		calls = append(calls, frameWithStickies(label, x, templStartY, w, h, fills[i])...)
	}
	return Plan{
		Message: "Created a kanban board: To Do, In Progress, Done.",
		Calls:   calls,
	}
}

func gridPlan(command string) Plan {
	m := gridShapeRe.FindStringSubmatch(strings.ToLower(command))
	cols, _ := strconv.Atoi(m[1])
	rows, _ := strconv.Atoi(m[2])

	p := extractWithName(command)
	fill := p["colorHex"]
	if fill == "" {
		fill = "#FFD700"
	}
	startX := numParam(p, "x", 100)
	startY := numParam(p, "y", 100)

	var calls []Call
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			calls = append(calls, Call{Tool: "createObject", Input: map[string]any{
				"type": "sticky",
				"x":    startX + float64(c)*(stickyW+gridGap),
				"y":    startY + float64(r)*(stickyH+gridGap),
				"fill": fill,
				// Positions are the grid contract; collision scan would
				// smear them.
				"skipCollisionCheck": true,
			}})
		}
	}
	return Plan{
		Message: fmt.Sprintf("Created a %dx%d grid of stickies.", cols, rows),
		Calls:   calls,
	}
}
