package recovery

import "time"

// Config holds configuration for the engine.
type Config struct {
	// WorkflowTimeout is the wall-clock deadline for a whole execution.
	// Exceeding it forces status TIMED_OUT and cancels all branches.
	WorkflowTimeout time.Duration

	// TaskTimeout is the default timeout for a single task invocation
	// when the state does not set its own.
	TaskTimeout time.Duration

	// MaxConcurrent is the engine-wide cap on in-flight executions.
	// Per-workflow caps are configured through admission.Config.
	MaxConcurrent int

	// TriggerRate is the sustained rate of execution triggers per second.
	TriggerRate float64

	// TriggerBurst is the trigger rate limiter burst size.
	TriggerBurst int

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration

	// WorkflowMapping routes classified emergency types to workflow names.
	// Types without a mapping cannot be auto-triggered from a report.
	WorkflowMapping map[string]string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		WorkflowTimeout: 30 * time.Minute,
		TaskTimeout:     60 * time.Second,
		MaxConcurrent:   64,
		TriggerRate:     50,
		TriggerBurst:    100,
		ShutdownTimeout: 30 * time.Second,
		WorkflowMapping: map[string]string{
			"NATURAL_DISASTER":       "natural-disaster-response",
			"INFRASTRUCTURE_FAILURE": "infrastructure-failure-response",
			"SECURITY_INCIDENT":      "security-incident-response",
		},
	}
}
