package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	recovery "github.com/fvgm-spec/disaster-recovery-agent"
	"github.com/fvgm-spec/disaster-recovery-agent/id"
	"github.com/fvgm-spec/disaster-recovery-agent/workflow"
)

// CreateExecution persists a new execution.
func (s *Store) CreateExecution(ctx context.Context, exec *workflow.Execution) error {
	eID := exec.ID.String()
	key := executionKey(eID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("recovery/redis: create execution exists: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("recovery/redis: execution %s: %w", eID, recovery.ErrExecutionAlreadyExists)
	}

	m, err := executionToMap(exec)
	if err != nil {
		return fmt.Errorf("recovery/redis: create execution: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, m)
	pipe.SAdd(ctx, executionIDsKey, eID)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("recovery/redis: create execution: %w", err)
	}
	return nil
}

// GetExecution retrieves an execution by ID.
func (s *Store) GetExecution(ctx context.Context, execID id.ExecutionID) (*workflow.Execution, error) {
	key := executionKey(execID.String())
	vals, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("recovery/redis: get execution: %w", err)
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("recovery/redis: execution %s: %w", execID, recovery.ErrExecutionNotFound)
	}
	return mapToExecution(vals)
}

// UpdateExecution persists the full current state of an execution.
func (s *Store) UpdateExecution(ctx context.Context, exec *workflow.Execution) error {
	key := executionKey(exec.ID.String())
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("recovery/redis: update execution exists: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("recovery/redis: execution %s: %w", exec.ID, recovery.ErrExecutionNotFound)
	}

	m, err := executionToMap(exec)
	if err != nil {
		return fmt.Errorf("recovery/redis: update execution: %w", err)
	}
	if _, err := s.client.HSet(ctx, key, m).Result(); err != nil {
		return fmt.Errorf("recovery/redis: update execution: %w", err)
	}
	return nil
}

// ListExecutions returns executions newest first, filtered and paginated
// per opts.
func (s *Store) ListExecutions(ctx context.Context, opts workflow.ListOpts) ([]*workflow.Execution, error) {
	ids, err := s.client.SMembers(ctx, executionIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("recovery/redis: list executions smembers: %w", err)
	}

	var execs []*workflow.Execution
	for _, eID := range ids {
		vals, getErr := s.client.HGetAll(ctx, executionKey(eID)).Result()
		if getErr != nil || len(vals) == 0 {
			continue
		}
		exec, convErr := mapToExecution(vals)
		if convErr != nil {
			continue
		}
		if opts.Status != "" && exec.Status != opts.Status {
			continue
		}
		if opts.Workflow != "" && exec.WorkflowName != opts.Workflow {
			continue
		}
		execs = append(execs, exec)
	}

	sort.Slice(execs, func(i, j int) bool {
		if !execs[i].StartedAt.Equal(execs[j].StartedAt) {
			return execs[i].StartedAt.After(execs[j].StartedAt)
		}
		return execs[i].ID.String() > execs[j].ID.String()
	})

	if opts.Offset >= len(execs) {
		return nil, nil
	}
	if opts.Offset > 0 {
		execs = execs[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(execs) {
		execs = execs[:opts.Limit]
	}
	return execs, nil
}

// ── helpers ──

func executionToMap(exec *workflow.Execution) (map[string]interface{}, error) {
	history, err := json.Marshal(exec.History)
	if err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}

	m := map[string]interface{}{
		"id":            exec.ID.String(),
		"workflow_name": exec.WorkflowName,
		"status":        string(exec.Status),
		"current_state": exec.CurrentState,
		"payload":       string(exec.Payload),
		"history":       string(history),
		"error_name":    exec.ErrorName,
		"error_cause":   exec.ErrorCause,
		"started_at":    exec.StartedAt.Format(time.RFC3339Nano),
		"deadline":      exec.Deadline.Format(time.RFC3339Nano),
	}
	if exec.CompletedAt != nil {
		m["completed_at"] = exec.CompletedAt.Format(time.RFC3339Nano)
	}
	return m, nil
}

func mapToExecution(m map[string]string) (*workflow.Execution, error) {
	eID, err := id.Parse(m["id"])
	if err != nil {
		return nil, fmt.Errorf("recovery/redis: parse execution id: %w", err)
	}

	startedAt, _ := time.Parse(time.RFC3339Nano, m["started_at"])
	deadline, _ := time.Parse(time.RFC3339Nano, m["deadline"])

	exec := &workflow.Execution{
		ID:           eID,
		WorkflowName: m["workflow_name"],
		Status:       workflow.Status(m["status"]),
		CurrentState: m["current_state"],
		ErrorName:    m["error_name"],
		ErrorCause:   m["error_cause"],
		StartedAt:    startedAt,
		Deadline:     deadline,
	}

	if v := m["payload"]; v != "" {
		exec.Payload = json.RawMessage(v)
	}
	if v := m["history"]; v != "" && v != "null" {
		if err := json.Unmarshal([]byte(v), &exec.History); err != nil {
			return nil, fmt.Errorf("recovery/redis: decode history: %w", err)
		}
	}
	if v := m["completed_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v)
		exec.CompletedAt = &t
	}
	return exec, nil
}
