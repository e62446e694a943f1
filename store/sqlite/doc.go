// Package sqlite implements store.Store on the pure-Go modernc.org/sqlite
// driver. No cgo is required. Suitable for single-node deployments, local
// development, and CLI tooling.
//
// The store owns the database handle -- Close releases it. Open by path,
// or pass ":memory:" for an ephemeral database:
//
//	import "github.com/fvgm-spec/disaster-recovery-agent/store/sqlite"
//
//	store, err := sqlite.New("/var/lib/recovery/recovery.db")
//	if err != nil { ... }
//	defer store.Close()
//	if err := store.Migrate(ctx); err != nil { ... }
//
// Timestamps are persisted as RFC 3339 text in UTC, and execution history
// and affected resources as JSON text columns.
package sqlite
