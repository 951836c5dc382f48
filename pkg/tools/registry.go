package tools

import (
	"context"
	"fmt"
	"sync"
)

// Tool is one model-invocable capability.
type Tool interface {
	Name() string
	Description() string
	Call(ctx context.Context, input string) (string, error)
}

// Definition is the listing view of a registered tool.
type Definition struct {
	ID             string
	Label          string
	Description    string
	DefaultEnabled bool
}

type entry struct {
	tool Tool
	def  Definition
}

// Registry manages the available tools. The chat engine only ever asks it
// for the subset selected by id to hand to the provider gateway.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	order   []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]entry),
	}
}

// Register adds a tool under its definition id.
func (r *Registry) Register(def Definition, tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if def.ID == "" {
		return fmt.Errorf("tool id cannot be empty")
	}
	if _, exists := r.entries[def.ID]; exists {
		return fmt.Errorf("tool %s already registered", def.ID)
	}

	r.entries[def.ID] = entry{tool: tool, def: def}
	r.order = append(r.order, def.ID)
	return nil
}

// Get retrieves a tool by id.
func (r *Registry) Get(id string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, exists := r.entries[id]
	if !exists {
		return nil, false
	}
	return e.tool, true
}

// List returns all definitions in registration order.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.order))
	for _, id := range r.order {
		defs = append(defs, r.entries[id].def)
	}
	return defs
}

// Select returns the tools matching the given ids, skipping unknown ones.
func (r *Registry) Select(ids []string) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	selected := make([]Tool, 0, len(ids))
	for _, id := range ids {
		if e, exists := r.entries[id]; exists {
			selected = append(selected, e.tool)
		}
	}
	return selected
}
