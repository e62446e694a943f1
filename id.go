package recovery

import "github.com/fvgm-spec/disaster-recovery-agent/id"

// ID is the primary identifier type for all recovery entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
