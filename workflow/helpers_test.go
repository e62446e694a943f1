package workflow_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedInvoker routes task resources to scripted handlers. Handlers
// receive the 1-indexed call number so tests can fail the first N
// attempts and succeed afterwards.
type scriptedInvoker struct {
	mu       sync.Mutex
	calls    map[string]int
	handlers map[string]func(ctx context.Context, call int, input json.RawMessage) (json.RawMessage, error)
}

func newScriptedInvoker() *scriptedInvoker {
	return &scriptedInvoker{
		calls:    make(map[string]int),
		handlers: make(map[string]func(ctx context.Context, call int, input json.RawMessage) (json.RawMessage, error)),
	}
}

func (s *scriptedInvoker) handle(resource string, fn func(ctx context.Context, call int, input json.RawMessage) (json.RawMessage, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[resource] = fn
}

// succeed registers a handler that always returns the given JSON.
func (s *scriptedInvoker) succeed(resource string, output string) {
	s.handle(resource, func(_ context.Context, _ int, _ json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(output), nil
	})
}

func (s *scriptedInvoker) Invoke(ctx context.Context, resource string, input json.RawMessage, _ time.Duration) (json.RawMessage, error) {
	s.mu.Lock()
	fn, ok := s.handlers[resource]
	s.calls[resource]++
	call := s.calls[resource]
	s.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("no handler for resource %q", resource)
	}
	return fn(ctx, call, input)
}

func (s *scriptedInvoker) callCount(resource string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[resource]
}

// sleepRecorder records requested retry delays instead of sleeping, so
// timing tests run instantly.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Duration, len(r.delays))
	copy(out, r.delays)
	return out
}
