package event

import (
	"encoding/json"
	"time"

	"github.com/fvgm-spec/disaster-recovery-agent/id"
)

// Lifecycle topics published by the engine. Subscribers match on exact
// topic names.
const (
	// TopicExecutionStarted fires when an execution is created and begins
	// running.
	TopicExecutionStarted = "execution.started"
	// TopicExecutionSucceeded fires when an execution reaches SUCCEEDED.
	TopicExecutionSucceeded = "execution.succeeded"
	// TopicExecutionFailed fires when an execution reaches FAILED.
	TopicExecutionFailed = "execution.failed"
	// TopicExecutionTimedOut fires when an execution reaches TIMED_OUT.
	TopicExecutionTimedOut = "execution.timed_out"
	// TopicExecutionCancelled fires when an execution reaches CANCELLED.
	TopicExecutionCancelled = "execution.cancelled"

	// TopicEmergencyReported fires when a new emergency record is created.
	TopicEmergencyReported = "emergency.reported"
	// TopicEmergencyUpdated fires when an emergency record changes status.
	TopicEmergencyUpdated = "emergency.updated"
)

// Envelope is one notification published on the bus.
type Envelope struct {
	ID        id.EventID      `json:"id"`
	Topic     string          `json:"topic"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// ExecutionEvent is the payload for execution.* topics.
type ExecutionEvent struct {
	ExecutionID string `json:"execution_id"`
	Workflow    string `json:"workflow"`
	Status      string `json:"status"`
	ErrorName   string `json:"error_name,omitempty"`
	ErrorCause  string `json:"error_cause,omitempty"`
}

// EmergencyEvent is the payload for emergency.* topics.
type EmergencyEvent struct {
	EmergencyID string `json:"emergency_id"`
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Status      string `json:"status"`
}
