package tools

import (
	"sync"

	"github.com/go-go-golems/lampwick/pkg/generation"
	"github.com/pkg/errors"
)

// Registry manages available tools with thread-safe operations.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Definition
	order []string
}

func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Definition),
	}
}

// Register adds a tool to the registry. Registration order is preserved so
// declarations are presented to the backend deterministically.
func (r *Registry) Register(def Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if def.Name == "" {
		return errors.New("tool name cannot be empty")
	}
	if _, exists := r.tools[def.Name]; !exists {
		r.order = append(r.order, def.Name)
	}
	r.tools[def.Name] = def
	return nil
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, exists := r.tools[name]
	if !exists {
		return nil, errors.Errorf("tool not found: %s", name)
	}
	defCopy := def
	return &defCopy, nil
}

// Has checks if a tool exists in the registry.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.tools[name]
	return exists
}

// List returns all registered tools in registration order.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.tools))
	for _, name := range r.order {
		defs = append(defs, r.tools[name])
	}
	return defs
}

// Declarations returns the wire-facing declarations for all tools.
func (r *Registry) Declarations() []generation.ToolDeclaration {
	defs := r.List()
	decls := make([]generation.ToolDeclaration, 0, len(defs))
	for _, def := range defs {
		decls = append(decls, def.Declaration())
	}
	return decls
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tools)
}
