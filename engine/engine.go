package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/trace"

	recovery "github.com/fvgm-spec/disaster-recovery-agent"
	"github.com/fvgm-spec/disaster-recovery-agent/admission"
	"github.com/fvgm-spec/disaster-recovery-agent/event"
	"github.com/fvgm-spec/disaster-recovery-agent/id"
	mw "github.com/fvgm-spec/disaster-recovery-agent/middleware"
	"github.com/fvgm-spec/disaster-recovery-agent/store"
	"github.com/fvgm-spec/disaster-recovery-agent/task"
	"github.com/fvgm-spec/disaster-recovery-agent/workflow"
)

// Engine is the public entry point. It wires the workflow registry, task
// registry, interpreter, middleware chain, admission controller, event
// bus, and store, and owns the lifecycle of every execution it triggers.
type Engine struct {
	config    recovery.Config
	logger    *slog.Logger
	store     store.Store
	registry  *workflow.Registry
	tasks     *task.Registry
	interp    *workflow.Interpreter
	bus       *event.Bus
	admission *admission.Controller

	workflowConfigs []admission.Config
	extraMws        []mw.Middleware
	tracerProvider  trace.TracerProvider

	mu      sync.Mutex
	running map[string]*runHandle
	stopped bool
	wg      sync.WaitGroup
}

// runHandle tracks one in-flight execution: its cancel function and the
// emergency record it responds to, if any.
type runHandle struct {
	cancel      context.CancelFunc
	emergencyID id.EmergencyID
}

// Option configures an Engine.
type Option func(*Engine) error

// WithStore sets the persistence backend. Required.
func WithStore(s store.Store) Option {
	return func(eng *Engine) error {
		eng.store = s
		return nil
	}
}

// WithConfig replaces the whole configuration. Combine with
// recovery.DefaultConfig() to override selected fields.
func WithConfig(cfg recovery.Config) Option {
	return func(eng *Engine) error {
		eng.config = cfg
		return nil
	}
}

// WithLogger sets the structured logger for the engine and every
// component it constructs.
func WithLogger(l *slog.Logger) Option {
	return func(eng *Engine) error {
		eng.logger = l
		return nil
	}
}

// WithMiddleware appends middleware to the invocation chain, after the
// default stack (recover, tracing, logging).
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) error {
		eng.extraMws = append(eng.extraMws, m)
		return nil
	}
}

// WithWorkflowConfig registers per-workflow concurrency and rate limits.
// Workflows not listed are bounded only by the engine-wide limits.
func WithWorkflowConfig(configs ...admission.Config) Option {
	return func(eng *Engine) error {
		eng.workflowConfigs = append(eng.workflowConfigs, configs...)
		return nil
	}
}

// WithTracerProvider sets a custom OTel TracerProvider for invocation
// spans. If not set, the global provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) error {
		eng.tracerProvider = tp
		return nil
	}
}

// New creates an Engine with the given options. A store is required.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{
		config:  recovery.DefaultConfig(),
		logger:  slog.Default(),
		running: make(map[string]*runHandle),
	}
	for _, opt := range opts {
		if err := opt(eng); err != nil {
			return nil, err
		}
	}
	if eng.store == nil {
		return nil, recovery.ErrNoStore
	}

	eng.registry = workflow.NewRegistry()
	eng.tasks = task.NewRegistry()
	eng.bus = event.NewBus(event.WithLogger(eng.logger))
	eng.admission = admission.NewController(admission.Limits{
		MaxConcurrent: eng.config.MaxConcurrent,
		RateLimit:     eng.config.TriggerRate,
		RateBurst:     eng.config.TriggerBurst,
	}, eng.workflowConfigs...)

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracer := eng.tracerProvider.Tracer("github.com/fvgm-spec/disaster-recovery-agent")
		tracingMw = mw.TracingWithTracer(tracer)
	} else {
		tracingMw = mw.Tracing()
	}

	// Default middleware stack: recover → tracing → logging.
	stack := []mw.Middleware{
		mw.Recover(eng.logger),
		tracingMw,
		mw.Logging(eng.logger),
	}
	stack = append(stack, eng.extraMws...)

	invoker := mw.Wrap(task.NewInvoker(eng.tasks), stack...)
	eng.interp = workflow.NewInterpreter(invoker,
		workflow.WithStore(eng.store),
		workflow.WithLogger(eng.logger),
		workflow.WithTaskTimeout(eng.config.TaskTimeout),
	)

	return eng, nil
}

// RegisterWorkflow validates and registers a workflow definition.
// Registering an existing name replaces the definition for future
// executions.
func (eng *Engine) RegisterWorkflow(def *workflow.Definition) error {
	return eng.registry.Register(def)
}

// RegisterWorkflowJSON decodes, validates, and registers a definition
// from its JSON document form.
func (eng *Engine) RegisterWorkflowJSON(data []byte) (*workflow.Definition, error) {
	return eng.registry.RegisterJSON(data)
}

// Workflow returns the definition registered under name.
func (eng *Engine) Workflow(name string) (*workflow.Definition, bool) {
	return eng.registry.Get(name)
}

// WorkflowNames returns all registered workflow names, sorted.
func (eng *Engine) WorkflowNames() []string {
	return eng.registry.Names()
}

// RegisterTaskFunc registers a raw task handler under name.
func (eng *Engine) RegisterTaskFunc(name string, h task.HandlerFunc) error {
	return eng.tasks.Register(name, h)
}

// RegisterTask registers a typed task handler with the engine. The
// handler's input and output are JSON-marshaled at the registry
// boundary:
//
//	engine.RegisterTask(eng, "assess-situation", func(ctx context.Context, in AssessInput) (AssessResult, error) {
//	    ...
//	})
func RegisterTask[T, R any](eng *Engine, name string, handler func(ctx context.Context, input T) (R, error)) error {
	return task.RegisterDefinition(eng.tasks, task.NewDefinition(name, handler))
}

// Events returns the engine's event bus for lifecycle subscriptions.
func (eng *Engine) Events() *event.Bus { return eng.bus }

// Admission returns the admission controller.
func (eng *Engine) Admission() *admission.Controller { return eng.admission }

// Store returns the engine's store.
func (eng *Engine) Store() store.Store { return eng.store }

// Config returns a copy of the engine's configuration.
func (eng *Engine) Config() recovery.Config { return eng.config }

// Ping verifies the store is reachable.
func (eng *Engine) Ping(ctx context.Context) error {
	return eng.store.Ping(ctx)
}

// Stop rejects new triggers and waits for in-flight executions to reach
// a terminal status. When ctx expires first, remaining executions are
// cancelled and left to crash resumption; their state is persisted at
// the cancellation point.
func (eng *Engine) Stop(ctx context.Context) error {
	eng.mu.Lock()
	if eng.stopped {
		eng.mu.Unlock()
		return nil
	}
	eng.stopped = true
	inFlight := len(eng.running)
	eng.mu.Unlock()

	eng.logger.Info("engine stopping", "in_flight", inFlight)

	done := make(chan struct{})
	go func() {
		eng.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		eng.bus.Close()
		return nil
	case <-ctx.Done():
		eng.mu.Lock()
		for _, h := range eng.running {
			h.cancel()
		}
		eng.mu.Unlock()
		eng.bus.Close()
		return fmt.Errorf("engine: shutdown wait: %w", ctx.Err())
	}
}
