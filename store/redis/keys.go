package redis

// Redis key naming conventions for recovery data.
// All keys are prefixed with "recovery:" to avoid collisions.

const keyPrefix = "recovery:"

// ── Execution keys ──

// executionKey returns the key for an execution entity: recovery:execution:{id}
func executionKey(id string) string { return keyPrefix + "execution:" + id }

// executionIDsKey is the Set tracking all execution IDs for enumeration.
const executionIDsKey = keyPrefix + "execution_ids"

// ── Emergency keys ──

// emergencyKey returns the key for an emergency record: recovery:emergency:{id}
func emergencyKey(id string) string { return keyPrefix + "emergency:" + id }

// emergencyIDsKey is the Set tracking all emergency record IDs for enumeration.
const emergencyIDsKey = keyPrefix + "emergency_ids"
