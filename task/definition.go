package task

import "context"

// Definition is a typed task definition with a handler function.
// T is the input type and R the result type; both must be
// JSON-serializable.
type Definition[T, R any] struct {
	// Name is the resource identifier workflow Task states reference.
	Name string

	// Handler processes the input and returns the result that becomes
	// the execution payload for the next state.
	Handler func(ctx context.Context, input T) (R, error)
}

// NewDefinition creates a typed task definition.
func NewDefinition[T, R any](name string, handler func(ctx context.Context, input T) (R, error)) *Definition[T, R] {
	return &Definition[T, R]{
		Name:    name,
		Handler: handler,
	}
}
