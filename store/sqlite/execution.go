package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	recovery "github.com/fvgm-spec/disaster-recovery-agent"
	"github.com/fvgm-spec/disaster-recovery-agent/id"
	"github.com/fvgm-spec/disaster-recovery-agent/workflow"
)

// ─────────────────────────────────────────────────────────────────────────────
// Executions
// ─────────────────────────────────────────────────────────────────────────────

// CreateExecution inserts a new execution row.
func (s *Store) CreateExecution(ctx context.Context, exec *workflow.Execution) error {
	history, err := encodeHistory(exec.History)
	if err != nil {
		return fmt.Errorf("recovery/sqlite: create execution: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO recovery_executions
			(id, workflow_name, status, current_state, payload, history,
			 error_name, error_cause, started_at, deadline, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exec.ID, exec.WorkflowName, string(exec.Status), exec.CurrentState,
		string(exec.Payload), string(history),
		exec.ErrorName, exec.ErrorCause,
		formatTime(exec.StartedAt), formatTime(exec.Deadline),
		nullableTime(exec.CompletedAt),
	)
	if isDuplicateKey(err) {
		return fmt.Errorf("recovery/sqlite: execution %s: %w", exec.ID, recovery.ErrExecutionAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("recovery/sqlite: create execution: %w", err)
	}
	return nil
}

// GetExecution retrieves an execution by ID.
func (s *Store) GetExecution(ctx context.Context, execID id.ExecutionID) (*workflow.Execution, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, workflow_name, status, current_state, payload, history,
		       error_name, error_cause, started_at, deadline, completed_at
		FROM recovery_executions
		WHERE id = ?`, execID)

	exec, err := scanExecution(row)
	if isNoRows(err) {
		return nil, fmt.Errorf("recovery/sqlite: execution %s: %w", execID, recovery.ErrExecutionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("recovery/sqlite: get execution: %w", err)
	}
	return exec, nil
}

// UpdateExecution persists the full current state of an execution.
func (s *Store) UpdateExecution(ctx context.Context, exec *workflow.Execution) error {
	history, err := encodeHistory(exec.History)
	if err != nil {
		return fmt.Errorf("recovery/sqlite: update execution: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE recovery_executions
		SET status = ?, current_state = ?, payload = ?, history = ?,
		    error_name = ?, error_cause = ?, completed_at = ?
		WHERE id = ?`,
		string(exec.Status), exec.CurrentState, string(exec.Payload), string(history),
		exec.ErrorName, exec.ErrorCause, nullableTime(exec.CompletedAt),
		exec.ID,
	)
	if err != nil {
		return fmt.Errorf("recovery/sqlite: update execution: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("recovery/sqlite: update execution: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("recovery/sqlite: execution %s: %w", exec.ID, recovery.ErrExecutionNotFound)
	}
	return nil
}

// ListExecutions returns executions newest first, filtered and paginated
// per opts.
func (s *Store) ListExecutions(ctx context.Context, opts workflow.ListOpts) ([]*workflow.Execution, error) {
	query := `
		SELECT id, workflow_name, status, current_state, payload, history,
		       error_name, error_cause, started_at, deadline, completed_at
		FROM recovery_executions`

	var (
		conds []string
		args  []any
	)
	if opts.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(opts.Status))
	}
	if opts.Workflow != "" {
		conds = append(conds, "workflow_name = ?")
		args = append(args, opts.Workflow)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY started_at DESC, id DESC"

	// SQLite requires a LIMIT clause to use OFFSET; -1 means unlimited.
	switch {
	case opts.Limit > 0 && opts.Offset > 0:
		query += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, opts.Offset)
	case opts.Limit > 0:
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	case opts.Offset > 0:
		query += " LIMIT -1 OFFSET ?"
		args = append(args, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("recovery/sqlite: list executions: %w", err)
	}
	defer rows.Close()

	var execs []*workflow.Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("recovery/sqlite: list executions: %w", err)
		}
		execs = append(execs, exec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recovery/sqlite: list executions: %w", err)
	}
	return execs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecution(row rowScanner) (*workflow.Execution, error) {
	var (
		exec      workflow.Execution
		status    string
		payload   string
		history   []byte
		started   string
		deadline  string
		completed sql.NullString
	)
	err := row.Scan(
		&exec.ID, &exec.WorkflowName, &status, &exec.CurrentState,
		&payload, &history, &exec.ErrorName, &exec.ErrorCause,
		&started, &deadline, &completed,
	)
	if err != nil {
		return nil, err
	}

	exec.Status = workflow.Status(status)
	if payload != "" {
		exec.Payload = json.RawMessage(payload)
	}
	if exec.History, err = decodeHistory(history); err != nil {
		return nil, err
	}
	if exec.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if exec.Deadline, err = parseTime(deadline); err != nil {
		return nil, err
	}
	if completed.Valid {
		t, err := parseTime(completed.String)
		if err != nil {
			return nil, err
		}
		exec.CompletedAt = &t
	}
	return &exec, nil
}
