package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	recovery "github.com/fvgm-spec/disaster-recovery-agent"
	"github.com/fvgm-spec/disaster-recovery-agent/emergency"
	"github.com/fvgm-spec/disaster-recovery-agent/id"
	"github.com/fvgm-spec/disaster-recovery-agent/workflow"
)

// Ensure Store implements store.Store at compile time.
// We can't import store here (import cycle), so we verify each subsystem.
var (
	_ workflow.Store  = (*Store)(nil)
	_ emergency.Store = (*Store)(nil)
)

// Store is a fully in-memory implementation of store.Store.
// Safe for concurrent access. Intended for unit testing and development.
type Store struct {
	mu sync.RWMutex

	executions  map[string]*workflow.Execution
	emergencies map[string]*emergency.Record
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		executions:  make(map[string]*workflow.Execution),
		emergencies: make(map[string]*emergency.Record),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Execution Store
// ──────────────────────────────────────────────────

// cloneExecution copies an execution so callers can mutate their copy
// without racing with the store.
func cloneExecution(e *workflow.Execution) *workflow.Execution {
	cp := *e
	cp.History = append([]workflow.Event(nil), e.History...)
	return &cp
}

// CreateExecution persists a new execution.
func (m *Store) CreateExecution(_ context.Context, exec *workflow.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := exec.ID.String()
	if _, exists := m.executions[key]; exists {
		return recovery.ErrExecutionAlreadyExists
	}
	m.executions[key] = cloneExecution(exec)
	return nil
}

// GetExecution retrieves an execution by ID.
func (m *Store) GetExecution(_ context.Context, execID id.ExecutionID) (*workflow.Execution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.executions[execID.String()]
	if !ok {
		return nil, recovery.ErrExecutionNotFound
	}
	return cloneExecution(e), nil
}

// UpdateExecution persists changes to an existing execution.
func (m *Store) UpdateExecution(_ context.Context, exec *workflow.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := exec.ID.String()
	if _, ok := m.executions[key]; !ok {
		return recovery.ErrExecutionNotFound
	}
	m.executions[key] = cloneExecution(exec)
	return nil
}

// ListExecutions returns executions matching the given options, newest
// first.
func (m *Store) ListExecutions(_ context.Context, opts workflow.ListOpts) ([]*workflow.Execution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*workflow.Execution, 0, len(m.executions))
	for _, e := range m.executions {
		if opts.Status != "" && e.Status != opts.Status {
			continue
		}
		if opts.Workflow != "" && e.WorkflowName != opts.Workflow {
			continue
		}
		result = append(result, cloneExecution(e))
	}

	sort.Slice(result, func(i, k int) bool {
		if !result[i].StartedAt.Equal(result[k].StartedAt) {
			return result[i].StartedAt.After(result[k].StartedAt)
		}
		return result[i].ID.String() > result[k].ID.String()
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

// ──────────────────────────────────────────────────
// Emergency Store
// ──────────────────────────────────────────────────

func cloneRecord(r *emergency.Record) *emergency.Record {
	cp := *r
	cp.AffectedResources = append([]string(nil), r.AffectedResources...)
	return &cp
}

// CreateEmergency persists a new emergency record.
func (m *Store) CreateEmergency(_ context.Context, rec *emergency.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := rec.ID.String()
	if _, exists := m.emergencies[key]; exists {
		return recovery.ErrEmergencyAlreadyExists
	}
	m.emergencies[key] = cloneRecord(rec)
	return nil
}

// GetEmergency retrieves an emergency record by ID.
func (m *Store) GetEmergency(_ context.Context, emgID id.EmergencyID) (*emergency.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.emergencies[emgID.String()]
	if !ok {
		return nil, recovery.ErrEmergencyNotFound
	}
	return cloneRecord(r), nil
}

// UpdateEmergency persists changes to an existing emergency record.
func (m *Store) UpdateEmergency(_ context.Context, rec *emergency.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := rec.ID.String()
	if _, ok := m.emergencies[key]; !ok {
		return recovery.ErrEmergencyNotFound
	}
	cp := cloneRecord(rec)
	cp.UpdatedAt = time.Now().UTC()
	m.emergencies[key] = cp
	return nil
}

// ListEmergencies returns emergency records matching the given options,
// newest first.
func (m *Store) ListEmergencies(_ context.Context, opts emergency.ListOpts) ([]*emergency.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*emergency.Record, 0, len(m.emergencies))
	for _, r := range m.emergencies {
		if opts.Status != "" && r.Status != opts.Status {
			continue
		}
		if opts.Type != "" && r.Type != opts.Type {
			continue
		}
		if opts.Severity != "" && r.Severity != opts.Severity {
			continue
		}
		result = append(result, cloneRecord(r))
	}

	sort.Slice(result, func(i, k int) bool {
		if !result[i].CreatedAt.Equal(result[k].CreatedAt) {
			return result[i].CreatedAt.After(result[k].CreatedAt)
		}
		return result[i].ID.String() > result[k].ID.String()
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

// paginate applies offset and limit to a sorted result slice.
func paginate[T any](result []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(result) {
			return nil
		}
		result = result[offset:]
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}
