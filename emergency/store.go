package emergency

import (
	"context"

	"github.com/fvgm-spec/disaster-recovery-agent/id"
	"github.com/fvgm-spec/disaster-recovery-agent/triage"
)

// ListOpts controls filtering and pagination for emergency list queries.
type ListOpts struct {
	// Limit is the maximum number of records to return. Zero means no
	// limit.
	Limit int
	// Offset is the number of records to skip.
	Offset int
	// Status filters by record status. Empty means all statuses.
	Status Status
	// Type filters by emergency type. Empty means all types.
	Type triage.Type
	// Severity filters by severity. Empty means all severities.
	Severity triage.Severity
}

// Store defines the persistence contract for emergency records.
type Store interface {
	// CreateEmergency persists a new record.
	CreateEmergency(ctx context.Context, rec *Record) error

	// GetEmergency retrieves a record by ID.
	GetEmergency(ctx context.Context, emgID id.EmergencyID) (*Record, error)

	// UpdateEmergency persists changes to an existing record.
	UpdateEmergency(ctx context.Context, rec *Record) error

	// ListEmergencies returns records matching the given options, newest
	// first.
	ListEmergencies(ctx context.Context, opts ListOpts) ([]*Record, error)
}
