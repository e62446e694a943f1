package workflow

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps workflow names to validated definitions. Registration
// validates the definition and rejects invalid graphs, so anything
// handed out by Get is safe to execute. Registering an existing name
// replaces the definition for future executions; in-flight executions
// keep the definition they started with. It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	definitions map[string]*Definition
}

// NewRegistry creates an empty workflow registry.
func NewRegistry() *Registry {
	return &Registry{
		definitions: make(map[string]*Definition),
	}
}

// Register validates and stores a definition under its Name.
func (r *Registry) Register(def *Definition) error {
	if def.Name == "" {
		return fmt.Errorf("workflow: register: definition has no name")
	}
	if err := Validate(def); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.definitions[def.Name] = def
	return nil
}

// RegisterJSON decodes, validates, and stores a definition from its JSON
// document form, returning the decoded definition.
func (r *Registry) RegisterJSON(data []byte) (*Definition, error) {
	def, err := DecodeDefinition(data)
	if err != nil {
		return nil, err
	}
	if err := r.Register(def); err != nil {
		return nil, err
	}
	return def, nil
}

// Get returns the definition registered under name.
func (r *Registry) Get(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.definitions[name]
	return def, ok
}

// Names returns all registered workflow names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.definitions))
	for name := range r.definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
