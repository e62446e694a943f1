package task

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	recovery "github.com/fvgm-spec/disaster-recovery-agent"
	"github.com/fvgm-spec/disaster-recovery-agent/workflow"
)

// HandlerFunc is a type-erased task handler over raw JSON payloads.
// The typed Definition[T, R] is converted to a HandlerFunc at
// registration time by closing over JSON unmarshal + the typed handler.
type HandlerFunc func(ctx context.Context, input json.RawMessage) (json.RawMessage, error)

// Registry maps task resource names to type-erased handler functions.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewRegistry creates an empty task registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]HandlerFunc),
	}
}

// Register stores a handler under a resource name. Registering the same
// name twice is a configuration bug and returns ErrTaskAlreadyExists.
func (r *Registry) Register(name string, h HandlerFunc) error {
	if name == "" {
		return fmt.Errorf("task: register: resource name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("task: register %q: %w", name, recovery.ErrTaskAlreadyExists)
	}
	r.handlers[name] = h
	return nil
}

// RegisterDefinition registers a typed task definition. The generic
// handler is wrapped in a closure that JSON-unmarshals the payload into T
// before the call and marshals R after it.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func RegisterDefinition[T, R any](r *Registry, def *Definition[T, R]) error {
	handler := func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		var t T
		if len(input) > 0 {
			if err := json.Unmarshal(input, &t); err != nil {
				return nil, workflow.NewInvocationError(workflow.ErrorTaskFailed,
					fmt.Errorf("unmarshal input for task %q: %w", def.Name, err))
			}
		}

		out, err := def.Handler(ctx, t)
		if err != nil {
			return nil, err
		}

		data, err := json.Marshal(out)
		if err != nil {
			return nil, workflow.NewInvocationError(workflow.ErrorTaskFailed,
				fmt.Errorf("marshal result of task %q: %w", def.Name, err))
		}
		return data, nil
	}

	return r.Register(def.Name, handler)
}

// Get returns the handler for the given resource name.
// Returns false if no handler is registered.
func (r *Registry) Get(name string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns all registered resource names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
