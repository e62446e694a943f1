package recovery

import "errors"

var (
	// Store errors.
	ErrNoStore         = errors.New("recovery: no store configured")
	ErrStoreClosed     = errors.New("recovery: store closed")
	ErrMigrationFailed = errors.New("recovery: migration failed")

	// Not found errors.
	ErrWorkflowNotFound  = errors.New("recovery: workflow not found")
	ErrExecutionNotFound = errors.New("recovery: execution not found")
	ErrEmergencyNotFound = errors.New("recovery: emergency not found")
	ErrTaskNotFound      = errors.New("recovery: task not found")

	// Conflict errors.
	ErrTaskAlreadyExists      = errors.New("recovery: task already registered")
	ErrExecutionAlreadyExists = errors.New("recovery: execution already exists")
	ErrEmergencyAlreadyExists = errors.New("recovery: emergency already exists")

	// State errors.
	ErrExecutionTerminal = errors.New("recovery: execution already terminal")
	ErrEngineStopped     = errors.New("recovery: engine stopped")

	// Admission errors.
	ErrLimitExceeded = errors.New("recovery: concurrency limit exceeded")
	ErrRateLimited   = errors.New("recovery: trigger rate limit exceeded")

	// Routing errors.
	ErrNoWorkflowForType = errors.New("recovery: no workflow mapped for emergency type")

	// Report intake errors.
	ErrMissingDescription = errors.New("recovery: report description is required")
	ErrMissingContact     = errors.New("recovery: reporter contact is required")
)
