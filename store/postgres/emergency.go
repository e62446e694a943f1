package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	recovery "github.com/fvgm-spec/disaster-recovery-agent"
	"github.com/fvgm-spec/disaster-recovery-agent/emergency"
	"github.com/fvgm-spec/disaster-recovery-agent/id"
	"github.com/fvgm-spec/disaster-recovery-agent/triage"
)

// CreateEmergency inserts a new emergency record row.
func (s *Store) CreateEmergency(ctx context.Context, rec *emergency.Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO recovery_emergencies (
			id, type, severity, priority, status, description, location,
			reporter_contact, affected_resources, execution_id,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rec.ID.String(), string(rec.Type), string(rec.Severity), rec.Priority,
		string(rec.Status), rec.Description, rec.Location,
		rec.ReporterContact, rec.AffectedResources, rec.ExecutionID,
		rec.CreatedAt, rec.UpdatedAt,
	)
	if isDuplicateKey(err) {
		return fmt.Errorf("recovery/postgres: emergency %s: %w", rec.ID, recovery.ErrEmergencyAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("recovery/postgres: create emergency: %w", err)
	}
	return nil
}

// GetEmergency retrieves an emergency record by ID.
func (s *Store) GetEmergency(ctx context.Context, emgID id.EmergencyID) (*emergency.Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT
			id, type, severity, priority, status, description, location,
			reporter_contact, affected_resources, execution_id,
			created_at, updated_at
		FROM recovery_emergencies
		WHERE id = $1`,
		emgID.String(),
	)

	rec, err := scanEmergency(row)
	if isNoRows(err) {
		return nil, fmt.Errorf("recovery/postgres: emergency %s: %w", emgID, recovery.ErrEmergencyNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("recovery/postgres: get emergency: %w", err)
	}
	return rec, nil
}

// UpdateEmergency persists changes to an existing emergency record.
func (s *Store) UpdateEmergency(ctx context.Context, rec *emergency.Record) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE recovery_emergencies SET
			status = $1, description = $2, location = $3, reporter_contact = $4,
			affected_resources = $5, execution_id = $6, updated_at = $7
		WHERE id = $8`,
		string(rec.Status), rec.Description, rec.Location, rec.ReporterContact,
		rec.AffectedResources, rec.ExecutionID, rec.UpdatedAt,
		rec.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("recovery/postgres: update emergency: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("recovery/postgres: emergency %s: %w", rec.ID, recovery.ErrEmergencyNotFound)
	}
	return nil
}

// ListEmergencies returns emergency records newest first, filtered and
// paginated per opts.
func (s *Store) ListEmergencies(ctx context.Context, opts emergency.ListOpts) ([]*emergency.Record, error) {
	query := `
		SELECT
			id, type, severity, priority, status, description, location,
			reporter_contact, affected_resources, execution_id,
			created_at, updated_at
		FROM recovery_emergencies
		WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(opts.Status))
		argIdx++
	}
	if opts.Type != "" {
		query += fmt.Sprintf(" AND type = $%d", argIdx)
		args = append(args, string(opts.Type))
		argIdx++
	}
	if opts.Severity != "" {
		query += fmt.Sprintf(" AND severity = $%d", argIdx)
		args = append(args, string(opts.Severity))
		argIdx++
	}

	query += " ORDER BY created_at DESC, id DESC"

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
		return nil, fmt.Errorf("recovery/postgres: list emergencies: %w", err)
	}
	defer rows.Close()

	var recs []*emergency.Record
	for rows.Next() {
		rec, scanErr := scanEmergency(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("recovery/postgres: scan emergency row: %w", scanErr)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recovery/postgres: iterate emergency rows: %w", err)
	}
	return recs, nil
}

func scanEmergency(row pgx.Row) (*emergency.Record, error) {
	var (
		rec         emergency.Record
		idStr       string
		typeStr     string
		severityStr string
		statusStr   string
		execIDStr   *string
	)
	err := row.Scan(
		&idStr, &typeStr, &severityStr, &rec.Priority, &statusStr,
		&rec.Description, &rec.Location, &rec.ReporterContact,
		&rec.AffectedResources, &execIDStr, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Type = triage.Type(typeStr)
	rec.Severity = triage.Severity(severityStr)
	rec.Status = emergency.Status(statusStr)

	parsedID, parseErr := id.Parse(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("parse emergency id %q: %w", idStr, parseErr)
	}
	rec.ID = parsedID

	if execIDStr != nil {
		execID, parseErr := id.Parse(*execIDStr)
		if parseErr != nil {
			return nil, fmt.Errorf("parse execution id %q: %w", *execIDStr, parseErr)
		}
		rec.ExecutionID = execID
	}

	return &rec, nil
}
