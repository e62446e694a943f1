package sqlite

import (
	"context"
	"fmt"
	"strings"

	recovery "github.com/fvgm-spec/disaster-recovery-agent"
	"github.com/fvgm-spec/disaster-recovery-agent/emergency"
	"github.com/fvgm-spec/disaster-recovery-agent/id"
	"github.com/fvgm-spec/disaster-recovery-agent/triage"
)

// ─────────────────────────────────────────────────────────────────────────────
// Emergencies
// ─────────────────────────────────────────────────────────────────────────────

// CreateEmergency inserts a new emergency record row.
func (s *Store) CreateEmergency(ctx context.Context, rec *emergency.Record) error {
	resources, err := encodeStrings(rec.AffectedResources)
	if err != nil {
		return fmt.Errorf("recovery/sqlite: create emergency: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO recovery_emergencies
			(id, type, severity, priority, status, description, location,
			 reporter_contact, affected_resources, execution_id,
			 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Type), string(rec.Severity), rec.Priority,
		string(rec.Status), rec.Description, rec.Location,
		rec.ReporterContact, string(resources), rec.ExecutionID,
		formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt),
	)
	if isDuplicateKey(err) {
		return fmt.Errorf("recovery/sqlite: emergency %s: %w", rec.ID, recovery.ErrEmergencyAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("recovery/sqlite: create emergency: %w", err)
	}
	return nil
}

// GetEmergency retrieves an emergency record by ID.
func (s *Store) GetEmergency(ctx context.Context, emgID id.EmergencyID) (*emergency.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, severity, priority, status, description, location,
		       reporter_contact, affected_resources, execution_id,
		       created_at, updated_at
		FROM recovery_emergencies
		WHERE id = ?`, emgID)

	rec, err := scanEmergency(row)
	if isNoRows(err) {
		return nil, fmt.Errorf("recovery/sqlite: emergency %s: %w", emgID, recovery.ErrEmergencyNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("recovery/sqlite: get emergency: %w", err)
	}
	return rec, nil
}

// UpdateEmergency persists changes to an existing emergency record.
func (s *Store) UpdateEmergency(ctx context.Context, rec *emergency.Record) error {
	resources, err := encodeStrings(rec.AffectedResources)
	if err != nil {
		return fmt.Errorf("recovery/sqlite: update emergency: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE recovery_emergencies
		SET status = ?, description = ?, location = ?, reporter_contact = ?,
		    affected_resources = ?, execution_id = ?, updated_at = ?
		WHERE id = ?`,
		string(rec.Status), rec.Description, rec.Location, rec.ReporterContact,
		string(resources), rec.ExecutionID, formatTime(rec.UpdatedAt),
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("recovery/sqlite: update emergency: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("recovery/sqlite: update emergency: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("recovery/sqlite: emergency %s: %w", rec.ID, recovery.ErrEmergencyNotFound)
	}
	return nil
}

// ListEmergencies returns emergency records newest first, filtered and
// paginated per opts.
func (s *Store) ListEmergencies(ctx context.Context, opts emergency.ListOpts) ([]*emergency.Record, error) {
	query := `
		SELECT id, type, severity, priority, status, description, location,
		       reporter_contact, affected_resources, execution_id,
		       created_at, updated_at
		FROM recovery_emergencies`

	var (
		conds []string
		args  []any
	)
	if opts.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(opts.Status))
	}
	if opts.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, string(opts.Type))
	}
	if opts.Severity != "" {
		conds = append(conds, "severity = ?")
		args = append(args, string(opts.Severity))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

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
		return nil, fmt.Errorf("recovery/sqlite: list emergencies: %w", err)
	}
	defer rows.Close()

	var recs []*emergency.Record
	for rows.Next() {
		rec, err := scanEmergency(rows)
		if err != nil {
			return nil, fmt.Errorf("recovery/sqlite: list emergencies: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recovery/sqlite: list emergencies: %w", err)
	}
	return recs, nil
}

func scanEmergency(row rowScanner) (*emergency.Record, error) {
	var (
		rec       emergency.Record
		typ       string
		severity  string
		status    string
		resources []byte
		created   string
		updated   string
	)
	err := row.Scan(
		&rec.ID, &typ, &severity, &rec.Priority, &status,
		&rec.Description, &rec.Location, &rec.ReporterContact,
		&resources, &rec.ExecutionID, &created, &updated,
	)
	if err != nil {
		return nil, err
	}

	rec.Type = triage.Type(typ)
	rec.Severity = triage.Severity(severity)
	rec.Status = emergency.Status(status)
	if rec.AffectedResources, err = decodeStrings(resources); err != nil {
		return nil, err
	}
	if rec.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &rec, nil
}
