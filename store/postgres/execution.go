package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	recovery "github.com/fvgm-spec/disaster-recovery-agent"
	"github.com/fvgm-spec/disaster-recovery-agent/id"
	"github.com/fvgm-spec/disaster-recovery-agent/workflow"
)

// CreateExecution inserts a new execution row.
func (s *Store) CreateExecution(ctx context.Context, exec *workflow.Execution) error {
	history, err := encodeHistory(exec.History)
	if err != nil {
		return fmt.Errorf("recovery/postgres: create execution: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO recovery_executions (
			id, workflow_name, status, current_state, payload, history,
			error_name, error_cause, started_at, deadline, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		exec.ID.String(), exec.WorkflowName, string(exec.Status), exec.CurrentState,
		exec.Payload, history, exec.ErrorName, exec.ErrorCause,
		exec.StartedAt, exec.Deadline, exec.CompletedAt,
	)
	if isDuplicateKey(err) {
		return fmt.Errorf("recovery/postgres: execution %s: %w", exec.ID, recovery.ErrExecutionAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("recovery/postgres: create execution: %w", err)
	}
	return nil
}

// GetExecution retrieves an execution by ID.
func (s *Store) GetExecution(ctx context.Context, execID id.ExecutionID) (*workflow.Execution, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT
			id, workflow_name, status, current_state, payload, history,
			error_name, error_cause, started_at, deadline, completed_at
		FROM recovery_executions
		WHERE id = $1`,
		execID.String(),
	)

	exec, err := scanExecution(row)
	if isNoRows(err) {
		return nil, fmt.Errorf("recovery/postgres: execution %s: %w", execID, recovery.ErrExecutionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("recovery/postgres: get execution: %w", err)
	}
	return exec, nil
}

// UpdateExecution persists the full current state of an execution.
func (s *Store) UpdateExecution(ctx context.Context, exec *workflow.Execution) error {
	history, err := encodeHistory(exec.History)
	if err != nil {
		return fmt.Errorf("recovery/postgres: update execution: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE recovery_executions SET
			status = $1, current_state = $2, payload = $3, history = $4,
			error_name = $5, error_cause = $6, completed_at = $7
		WHERE id = $8`,
		string(exec.Status), exec.CurrentState, exec.Payload, history,
		exec.ErrorName, exec.ErrorCause, exec.CompletedAt,
		exec.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("recovery/postgres: update execution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("recovery/postgres: execution %s: %w", exec.ID, recovery.ErrExecutionNotFound)
	}
	return nil
}

// ListExecutions returns executions newest first, filtered and paginated
// per opts.
func (s *Store) ListExecutions(ctx context.Context, opts workflow.ListOpts) ([]*workflow.Execution, error) {
	query := `
		SELECT
			id, workflow_name, status, current_state, payload, history,
			error_name, error_cause, started_at, deadline, completed_at
		FROM recovery_executions
		WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(opts.Status))
		argIdx++
	}
	if opts.Workflow != "" {
		query += fmt.Sprintf(" AND workflow_name = $%d", argIdx)
		args = append(args, opts.Workflow)
		argIdx++
	}

	query += " ORDER BY started_at DESC, id DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("recovery/postgres: list executions: %w", err)
	}
	defer rows.Close()

	return collectExecutions(rows)
}

func scanExecution(row pgx.Row) (*workflow.Execution, error) {
	var (
		exec      workflow.Execution
		idStr     string
		statusStr string
		history   []byte
	)
	err := row.Scan(
		&idStr, &exec.WorkflowName, &statusStr, &exec.CurrentState,
		&exec.Payload, &history, &exec.ErrorName, &exec.ErrorCause,
		&exec.StartedAt, &exec.Deadline, &exec.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	exec.Status = workflow.Status(statusStr)

	if exec.History, err = decodeHistory(history); err != nil {
		return nil, err
	}

	parsedID, parseErr := id.Parse(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("parse execution id %q: %w", idStr, parseErr)
	}
	exec.ID = parsedID

	return &exec, nil
}

func collectExecutions(rows pgx.Rows) ([]*workflow.Execution, error) {
	var execs []*workflow.Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("recovery/postgres: scan execution row: %w", err)
		}
		execs = append(execs, exec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recovery/postgres: iterate execution rows: %w", err)
	}
	return execs, nil
}
