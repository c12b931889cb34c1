package board

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	mural "github.com/nevindra/mural"
	"github.com/nevindra/mural/crdt"
)

// maxContextObjects bounds the listing handed to the model. Crowded boards
// show the objects nearest the centroid of the occupied area.
const maxContextObjects = 30

// placementMargin is the gap suggested between the occupied area and newly
// placed objects.
const placementMargin = 30

// BuildBoardContext renders a human-readable snapshot of the document:
// the object listing, the occupied bounding box, and a placement hint.
// The output is a stable contract shared by getBoardState and the
// orchestrator's system prompt.
func BuildBoardContext(doc *crdt.Doc) string {
	objects := doc.Objects()
	total := len(objects)

	var b strings.Builder
	if total == 0 {
		b.WriteString("0 total objects on the board. The board is empty; place the first objects starting near (100, 100).")
		return b.String()
	}

	listed := selectContextObjects(objects)
	if total > maxContextObjects {
		fmt.Fprintf(&b, "%d total objects on the board (showing the %d nearest the center):\n", total, len(listed))
	} else {
		fmt.Fprintf(&b, "%d total objects on the board:\n", total)
	}

	maxRight, maxBottom := 0.0, 0.0
	for _, o := range objects {
		if r := o.X + o.Width; r > maxRight {
			maxRight = r
		}
		if bt := o.Y + o.Height; bt > maxBottom {
			maxBottom = bt
		}
	}

	for _, o := range listed {
		fmt.Fprintf(&b, "- [%s] %s at (%s, %s) size %sx%s fill %s",
			o.ID, o.Type, num(o.X), num(o.Y), num(o.Width), num(o.Height), o.Fill)
		if o.Text != "" {
			fmt.Fprintf(&b, " Text: %q", o.Text)
		}
		if o.ParentID != "" {
			fmt.Fprintf(&b, " Parent: %q", o.ParentID)
		}
		if o.FromID != "" {
			fmt.Fprintf(&b, " From: %q", o.FromID)
		}
		if o.ToID != "" {
			fmt.Fprintf(&b, " To: %q", o.ToID)
		}
		if len(o.Points) == 4 {
			fmt.Fprintf(&b, " Points: [%s, %s, %s, %s]",
				num(o.Points[0]), num(o.Points[1]), num(o.Points[2]), num(o.Points[3]))
		}
		b.WriteByte('\n')
	}

	fmt.Fprintf(&b, "Occupied area: x: 0..%s, y: 0..%s.\n", num(maxRight), num(maxBottom))
	fmt.Fprintf(&b, "Place new objects after x %s or y %s to avoid overlap.",
		num(maxRight+placementMargin), num(maxBottom+placementMargin))
	return b.String()
}

// selectContextObjects returns all objects sorted by id, trimmed to the
// maxContextObjects nearest the centroid when the board is crowded.
func selectContextObjects(objects map[string]mural.BoardObject) []mural.BoardObject {
	list := make([]mural.BoardObject, 0, len(objects))
	for _, o := range objects {
		list = append(list, o)
	}
	if len(list) > maxContextObjects {
		var cx, cy float64
		for _, o := range list {
			cx += o.X + o.Width/2
			cy += o.Y + o.Height/2
		}
		cx /= float64(len(list))
		cy /= float64(len(list))
		sort.Slice(list, func(i, j int) bool {
			return centerDist(list[i], cx, cy) < centerDist(list[j], cx, cy)
		})
		list = list[:maxContextObjects]
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

func centerDist(o mural.BoardObject, cx, cy float64) float64 {
	dx := o.X + o.Width/2 - cx
	dy := o.Y + o.Height/2 - cy
	return math.Hypot(dx, dy)
}

// num formats a coordinate without a trailing ".0" for whole values.
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
