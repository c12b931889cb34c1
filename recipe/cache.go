// Package recipe caches successful command executions as parameterized
// action templates keyed by intent, so repeated commands replay without a
// model call.
package recipe

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	mural "github.com/nevindra/mural"
)

const (
	// maxRecipes bounds the cache; the least-recently-used entry is evicted.
	maxRecipes = 50
	// maxActions bounds the length of a learnable action sequence.
	maxActions = 20
)

// ActionTemplate is one step of a recipe: a tool name and an input map whose
// string values may carry ${param} placeholders.
type ActionTemplate struct {
	Tool  string         `json:"tool"`
	Input map[string]any `json:"input"`
}

// Recipe is a learned command template.
type Recipe struct {
	ID               string           `json:"id"`
	IntentKey        string           `json:"intent_key"`
	ActionTemplates  []ActionTemplate `json:"action_templates"`
	ResponseTemplate string           `json:"response_template"`
	HitCount         int              `json:"hit_count"`
	CreatedAt        time.Time        `json:"created_at"`
	LastUsed         time.Time        `json:"last_used"`
}

// Cache is a bounded intent-keyed recipe store. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	recipes *lru.Cache[string, *Recipe]
	now     func() time.Time
}

// NewCache creates an empty cache holding up to maxRecipes entries.
func NewCache() *Cache {
	recipes, err := lru.New[string, *Recipe](maxRecipes)
	if err != nil {
		// Only reachable with a non-positive size.
		panic(err)
	}
	return &Cache{recipes: recipes, now: time.Now}
}

// Learn records a successful command execution as a recipe. It reports
// whether a new recipe was stored: empty or oversized action lists, generic
// intents and already-known intents are not learned (a known intent only has
// its last_used bumped, first-learned wins).
func (c *Cache) Learn(command string, actions []mural.ToolAction, response string) bool {
	if len(actions) == 0 || len(actions) > maxActions {
		return false
	}
	intent := DeriveIntent(command)
	if intent == "generic" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.recipes.Get(intent); ok {
		existing.LastUsed = c.now()
		return false
	}

	p := ExtractParams(command)
	templates := make([]ActionTemplate, 0, len(actions))
	for _, a := range actions {
		templates = append(templates, ActionTemplate{
			Tool:  a.Tool,
			Input: templatizeMap(a.Input, p),
		})
	}
	now := c.now()
	c.recipes.Add(intent, &Recipe{
		ID:               mural.NewID(),
		IntentKey:        intent,
		ActionTemplates:  templates,
		ResponseTemplate: templatizeText(response, p),
		CreatedAt:        now,
		LastUsed:         now,
	})
	return true
}

// Match returns the recipe for the command's intent, if one is cached.
// A hit bumps hit_count and last_used.
func (c *Cache) Match(command string) (*Recipe, bool) {
	intent := DeriveIntent(command)
	if intent == "generic" {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.recipes.Get(intent)
	if !ok {
		return nil, false
	}
	r.HitCount++
	r.LastUsed = c.now()
	return r, true
}

// Replay substitutes the command's parameters into the recipe's templates and
// dispatches each resulting action through tool. Missing position and color
// parameters fall back to (100, 100) and yellow. It returns the substituted
// response message and the executed actions.
func (c *Cache) Replay(ctx context.Context, r *Recipe, command string, tool mural.Tool) (string, []mural.ToolAction, error) {
	p := ExtractParams(command)
	if p["x"] == "" {
		p["x"] = "100"
	}
	if p["y"] == "" {
		p["y"] = "100"
	}
	if p["colorHex"] == "" {
		p["colorHex"] = "#FFD700"
	}

	actions := make([]mural.ToolAction, 0, len(r.ActionTemplates))
	for _, tmpl := range r.ActionTemplates {
		if err := ctx.Err(); err != nil {
			return "", actions, err
		}
		input := substituteMap(tmpl.Input, p)
		raw, err := json.Marshal(input)
		if err != nil {
			return "", actions, err
		}
		res, err := tool.Execute(ctx, tmpl.Tool, raw)
		if err != nil {
			return "", actions, err
		}
		result := res.Content
		if res.Error != "" {
			result = res.Error
		}
		actions = append(actions, mural.ToolAction{Tool: tmpl.Tool, Input: input, Result: result})
	}
	return substituteText(r.ResponseTemplate, p), actions, nil
}

// Len returns the number of cached recipes.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recipes.Len()
}

// Clear drops every cached recipe.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recipes.Purge()
}
