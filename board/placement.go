package board

import (
	"sort"

	mural "github.com/nevindra/mural"
)

const (
	// collisionPad keeps a margin around every placed object.
	collisionPad = 20
	// scanMaxX bounds the rightward slot scan before wrapping to a new row.
	scanMaxX = 1100
	// scanMaxRows bounds the row scan before giving up and stacking below
	// the occupied area.
	scanMaxRows = 20
)

// rectsOverlap reports whether two axis-aligned rects intersect.
func rectsOverlap(ax, ay, aw, ah, bx, by, bw, bh float64) bool {
	return ax < bx+bw && ax+aw > bx && ay < by+bh && ay+ah > by
}

// findFreePosition returns the requested position when it is clear of
// existing objects (with padding), otherwise the first clear slot scanning
// rightward then row by row, and finally a spot below everything placed so
// far.
func findFreePosition(objects map[string]mural.BoardObject, x, y, w, h float64) (float64, float64) {
	clear := func(px, py float64) bool {
		for _, o := range objects {
			if rectsOverlap(px-collisionPad, py-collisionPad, w+2*collisionPad, h+2*collisionPad,
				o.X, o.Y, o.Width, o.Height) {
				return false
			}
		}
		return true
	}

	if clear(x, y) {
		return x, y
	}
	for row := 0; row < scanMaxRows; row++ {
		py := y + float64(row)*(h+collisionPad)
		for px := x; px+w <= scanMaxX; px += w + collisionPad {
			if clear(px, py) {
				return px, py
			}
		}
	}

	maxBottom := 0.0
	for _, o := range objects {
		if bottom := o.Y + o.Height; bottom > maxBottom {
			maxBottom = bottom
		}
	}
	return x, maxBottom + collisionPad
}

// findContainingFrame returns the id of the first frame strictly containing
// the object's full rect, or "". Frames are visited in id order so the
// choice is deterministic.
func findContainingFrame(objects map[string]mural.BoardObject, obj mural.BoardObject) string {
	ids := make([]string, 0, len(objects))
	for id := range objects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		f := objects[id]
		if f.Type != mural.TypeFrame {
			continue
		}
		if obj.X > f.X && obj.Y > f.Y &&
			obj.X+obj.Width < f.X+f.Width && obj.Y+obj.Height < f.Y+f.Height {
			return id
		}
	}
	return ""
}

// clampIntoFrame moves obj the minimal distance needed to satisfy the
// containment rule for an explicitly supplied parent frame. Objects larger
// than the frame keep the frame's origin.
func clampIntoFrame(obj *mural.BoardObject, frame mural.BoardObject) {
	if obj.X < frame.X {
		obj.X = frame.X
	}
	if obj.Y < frame.Y {
		obj.Y = frame.Y
	}
	if obj.X+obj.Width > frame.X+frame.Width {
		obj.X = frame.X + frame.Width - obj.Width
	}
	if obj.Y+obj.Height > frame.Y+frame.Height {
		obj.Y = frame.Y + frame.Height - obj.Height
	}
	if obj.X < frame.X {
		obj.X = frame.X
	}
	if obj.Y < frame.Y {
		obj.Y = frame.Y
	}
}
