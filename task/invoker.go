package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	recovery "github.com/fvgm-spec/disaster-recovery-agent"
	"github.com/fvgm-spec/disaster-recovery-agent/workflow"
)

// Invoker resolves task resources against a registry. It implements the
// interpreter's invoker port; the engine wraps it with the middleware
// chain before handing it to the interpreter.
type Invoker struct {
	registry *Registry
}

// NewInvoker creates an invoker backed by the given registry.
func NewInvoker(registry *Registry) *Invoker {
	return &Invoker{registry: registry}
}

var _ workflow.TaskInvoker = (*Invoker)(nil)

// Invoke dispatches to the registered handler. The invocation deadline is
// already on ctx; the duration is carried for middleware only.
func (v *Invoker) Invoke(ctx context.Context, resource string, input json.RawMessage, _ time.Duration) (json.RawMessage, error) {
	h, ok := v.registry.Get(resource)
	if !ok {
		return nil, fmt.Errorf("task %q: %w", resource, recovery.ErrTaskNotFound)
	}
	return h(ctx, input)
}
