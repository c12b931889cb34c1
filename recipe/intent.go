package recipe

import (
	"regexp"
	"strconv"
	"strings"
)

// colorMap translates color words in commands to the palette hex values.
var colorMap = map[string]string{
	"yellow": "#FFD700",
	"gold":   "#FFD700",
	"green":  "#98FB98",
	"blue":   "#87CEEB",
	"pink":   "#FFB6C1",
	"purple": "#DDA0DD",
	"orange": "#FFA07A",
	"red":    "#FF6B6B",
	"white":  "#FFFFFF",
	"gray":   "#D1D5DB",
	"grey":   "#D1D5DB",
}

// ColorHex returns the palette hex for a color word.
func ColorHex(name string) (string, bool) {
	hex, ok := colorMap[strings.ToLower(name)]
	return hex, ok
}

// ColorWords returns every palette color word in s, lowercased, in order of
// appearance.
func ColorWords(s string) []string {
	var words []string
	for _, m := range colorRe.FindAllStringSubmatch(strings.ToLower(s), -1) {
		words = append(words, m[1])
	}
	return words
}

var (
	colorRe  = regexp.MustCompile(`\b(yellow|gold|green|blue|pink|purple|orange|red|white|gray|grey)\b`)
	hexRe    = regexp.MustCompile(`#[0-9a-fA-F]{6}\b`)
	quotedRe = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
	saysRe   = regexp.MustCompile(`(?i)\b(?:says|saying|with text)\s+(.+?)(?:\s+at\s+(?:position\s+)?-?\d.*)?$`)
	posRe    = regexp.MustCompile(`(?i)\bat\s+(?:position\s+)?(-?\d+(?:\.\d+)?)\s*,\s*(-?\d+(?:\.\d+)?)`)
	gridRe   = regexp.MustCompile(`(?i)\b(\d+)\s*x\s*(\d+)\b`)
	topicRe  = regexp.MustCompile(`(?i)\b(?:about|for)\s+(.+?)[.!?]?$`)
)

// DeriveIntent maps a command to a canonical intent key. Commands that match
// no pattern are "generic" and are never cached.
func DeriveIntent(command string) string {
	c := strings.ToLower(command)
	switch {
	case strings.Contains(c, "retro"):
		return "template_retro"
	case strings.Contains(c, "swot"):
		return "template_swot"
	case strings.Contains(c, "journey"):
		return "template_journey"
	case strings.Contains(c, "kanban"):
		return "template_kanban"
	}
	if strings.Contains(c, "grid") {
		if m := gridRe.FindStringSubmatch(c); m != nil {
			return "create_grid_" + m[1] + "x" + m[2]
		}
	}
	switch {
	case strings.Contains(c, "color") && containsAny(c, "change", "update", "turn", "recolor"):
		return "update_color"
	case strings.Contains(c, "move"):
		return "move_object"
	case containsAny(c, "arrange", "align", "organize", "space out", "evenly"):
		return "arrange"
	}
	if containsAny(c, "create", "add", "make", "draw", "put", "place") {
		switch {
		case containsAny(c, "sticky", "note"):
			return "create_sticky"
		case containsAny(c, "rectangle", "rect", "box", "square"):
			return "create_rect"
		case strings.Contains(c, "circle"):
			return "create_circle"
		case strings.Contains(c, "frame"):
			return "create_frame"
		case containsAny(c, "text", "label", "title"):
			return "create_text"
		}
	}
	return "generic"
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Params holds the values pulled out of a command, keyed by placeholder name.
// All values are carried as strings; numeric parameters are re-parsed when a
// template slot expects a number.
type Params map[string]string

// ExtractParams pulls color, text, position, grid shape and topic out of the
// command text.
func ExtractParams(command string) Params {
	p := make(Params)
	lower := strings.ToLower(command)

	if m := hexRe.FindString(command); m != "" {
		p["colorHex"] = strings.ToUpper(m)
	} else if m := colorRe.FindStringSubmatch(lower); m != nil {
		p["color"] = m[1]
		p["colorHex"] = colorMap[m[1]]
	}

	if m := quotedRe.FindStringSubmatch(command); m != nil {
		if m[1] != "" {
			p["text"] = m[1]
		} else {
			p["text"] = m[2]
		}
	} else if m := saysRe.FindStringSubmatch(command); m != nil {
		p["text"] = strings.TrimRight(strings.TrimSpace(m[1]), ".!?")
	}

	if m := posRe.FindStringSubmatch(command); m != nil {
		p["x"] = m[1]
		p["y"] = m[2]
	}

	if strings.Contains(lower, "grid") {
		if m := gridRe.FindStringSubmatch(command); m != nil {
			p["gridCols"] = m[1]
			p["gridRows"] = m[2]
		}
	}

	if m := topicRe.FindStringSubmatch(command); m != nil {
		p["topic"] = strings.TrimSpace(m[1])
	}
	return p
}

// paramOrder fixes the priority when several parameters share a value, so
// templatization is deterministic.
var paramOrder = []string{"colorHex", "color", "text", "topic", "x", "y", "gridCols", "gridRows"}

var placeholderRe = regexp.MustCompile(`\$\{([a-zA-Z]+)\}`)

// templatizeValue replaces a value that exactly equals an extracted parameter
// with its placeholder. Non-matching values pass through untouched.
func templatizeValue(v any, p Params) any {
	switch val := v.(type) {
	case string:
		for _, name := range paramOrder {
			if pv := p[name]; pv != "" && val == pv {
				return "${" + name + "}"
			}
		}
		return val
	case float64:
		s := strconv.FormatFloat(val, 'f', -1, 64)
		for _, name := range []string{"x", "y", "gridCols", "gridRows"} {
			if p[name] == s {
				return "${" + name + "}"
			}
		}
		return val
	case map[string]any:
		return templatizeMap(val, p)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = templatizeValue(item, p)
		}
		return out
	default:
		return val
	}
}

func templatizeMap(input map[string]any, p Params) map[string]any {
	out := make(map[string]any, len(input))
	for k, v := range input {
		out[k] = templatizeValue(v, p)
	}
	return out
}

// templatizeText replaces occurrences of the text and color parameters inside
// a response message, for re-substitution on replay.
func templatizeText(s string, p Params) string {
	for _, name := range []string{"text", "color", "topic"} {
		if pv := p[name]; pv != "" {
			s = strings.ReplaceAll(s, pv, "${"+name+"}")
		}
	}
	return s
}

// substituteValue resolves placeholders against the replay parameters.
// A placeholder with no parameter stays verbatim; whole-value numeric
// placeholders come back as numbers so tool inputs keep their types.
func substituteValue(v any, p Params) any {
	switch val := v.(type) {
	case string:
		if m := placeholderRe.FindStringSubmatch(val); m != nil && m[0] == val {
			pv, ok := p[m[1]]
			if !ok || pv == "" {
				return val
			}
			if f, err := strconv.ParseFloat(pv, 64); err == nil && isNumericParam(m[1]) {
				return f
			}
			return pv
		}
		return substituteText(val, p)
	case map[string]any:
		return substituteMap(val, p)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = substituteValue(item, p)
		}
		return out
	default:
		return val
	}
}

func substituteMap(input map[string]any, p Params) map[string]any {
	out := make(map[string]any, len(input))
	for k, v := range input {
		out[k] = substituteValue(v, p)
	}
	return out
}

func substituteText(s string, p Params) string {
	return placeholderRe.ReplaceAllStringFunc(s, func(ph string) string {
		name := placeholderRe.FindStringSubmatch(ph)[1]
		if pv, ok := p[name]; ok && pv != "" {
			return pv
		}
		return ph
	})
}

func isNumericParam(name string) bool {
	switch name {
	case "x", "y", "gridCols", "gridRows":
		return true
	}
	return false
}
