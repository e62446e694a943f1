// Package store defines the aggregate persistence interface. Each
// subsystem (workflow, emergency) defines its own store interface. The
// composite Store composes them. Backends: Postgres, SQLite, Redis, and
// Memory.
package store

import (
	"context"

	"github.com/fvgm-spec/disaster-recovery-agent/emergency"
	"github.com/fvgm-spec/disaster-recovery-agent/workflow"
)

// Store is the aggregate persistence interface. A single backend
// implements both subsystem contracts plus lifecycle management.
type Store interface {
	workflow.Store
	emergency.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
