package recipe

import "testing"

func TestDeriveIntent(t *testing.T) {
	tests := []struct {
		command string
		want    string
	}{
		{"Add a yellow sticky note that says Hello", "create_sticky"},
		{"create a blue rectangle at 200, 300", "create_rect"},
		{"Draw a circle", "create_circle"},
		{"Make a frame called Ideas", "create_frame"},
		{"add a text label saying Welcome", "create_text"},
		{"Change the color of everything to red", "update_color"},
		{"Set up a retrospective board", "template_retro"},
		{"build a SWOT analysis", "template_swot"},
		{"Create a user journey map for onboarding", "template_journey"},
		{"kanban board please", "template_kanban"},
		{"Create a 3x4 grid of stickies", "create_grid_3x4"},
		{"move the red sticky to the right", "move_object"},
		{"arrange everything in a grid", "arrange"},
		{"space out the stickies evenly", "arrange"},
		{"what is the meaning of life", "generic"},
		{"", "generic"},
	}
	for _, tt := range tests {
		if got := DeriveIntent(tt.command); got != tt.want {
			t.Errorf("DeriveIntent(%q) = %q, want %q", tt.command, got, tt.want)
		}
	}
}

func TestExtractParams(t *testing.T) {
	p := ExtractParams("Add a yellow sticky that says Hello at 200, 350")
	if p["color"] != "yellow" || p["colorHex"] != "#FFD700" {
		t.Errorf("color = %q / %q", p["color"], p["colorHex"])
	}
	if p["text"] != "Hello" {
		t.Errorf("text = %q, want Hello", p["text"])
	}
	if p["x"] != "200" || p["y"] != "350" {
		t.Errorf("position = (%q, %q)", p["x"], p["y"])
	}
}

func TestExtractParamsQuotedTextWins(t *testing.T) {
	p := ExtractParams(`Add a sticky with text "Ship it!"`)
	if p["text"] != "Ship it!" {
		t.Errorf("text = %q", p["text"])
	}
}

func TestExtractParamsLiteralHex(t *testing.T) {
	p := ExtractParams("make a rect with fill #1a2b3c")
	if p["colorHex"] != "#1A2B3C" {
		t.Errorf("colorHex = %q", p["colorHex"])
	}
}

func TestExtractParamsGridAndTopic(t *testing.T) {
	p := ExtractParams("Create a 4x2 grid of stickies about release planning")
	if p["gridCols"] != "4" || p["gridRows"] != "2" {
		t.Errorf("grid = %sx%s", p["gridCols"], p["gridRows"])
	}
	if p["topic"] != "release planning" {
		t.Errorf("topic = %q", p["topic"])
	}
}

func TestTemplatizeAndSubstituteRoundTrip(t *testing.T) {
	p := ExtractParams("Add a yellow sticky that says Hello at 200, 350")
	input := map[string]any{
		"type": "sticky",
		"fill": "#FFD700",
		"text": "Hello",
		"x":    200.0,
		"y":    350.0,
	}
	tmpl := templatizeMap(input, p)
	if tmpl["fill"] != "${colorHex}" || tmpl["text"] != "${text}" {
		t.Errorf("templatized = %v", tmpl)
	}
	if tmpl["x"] != "${x}" || tmpl["y"] != "${y}" {
		t.Errorf("positions not templatized: %v", tmpl)
	}
	if tmpl["type"] != "sticky" {
		t.Errorf("literal field changed: %v", tmpl["type"])
	}

	p2 := Params{"colorHex": "#87CEEB", "text": "World", "x": "10", "y": "20"}
	out := substituteMap(tmpl, p2)
	if out["fill"] != "#87CEEB" || out["text"] != "World" {
		t.Errorf("substituted = %v", out)
	}
	if out["x"] != 10.0 || out["y"] != 20.0 {
		t.Errorf("numeric params came back as %T/%T", out["x"], out["y"])
	}
}

func TestSubstituteMissingParamLeavesPlaceholder(t *testing.T) {
	out := substituteMap(map[string]any{"text": "${text}"}, Params{})
	if out["text"] != "${text}" {
		t.Errorf("missing param resolved to %v", out["text"])
	}
}
