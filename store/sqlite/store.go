package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/fvgm-spec/disaster-recovery-agent/emergency"
	"github.com/fvgm-spec/disaster-recovery-agent/workflow"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Compile-time interface checks.
var (
	_ workflow.Store  = (*Store)(nil)
	_ emergency.Store = (*Store)(nil)
)

// Store is a SQLite-backed store. It persists executions and emergency
// records in a single database file, or in memory when opened with the
// ":memory:" path.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for migration progress messages.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New opens the SQLite database at path, creating the file if it does not
// exist. Pass ":memory:" for an ephemeral in-process database.
func New(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("recovery/sqlite: open %q: %w", path, err)
	}

	// SQLite permits a single writer. One pooled connection avoids
	// SQLITE_BUSY under concurrent writes and keeps ":memory:" databases
	// coherent, since each new connection would otherwise see a fresh
	// empty database.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("recovery/sqlite: %s: %w", pragma, err)
		}
	}

	s := &Store{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate applies any embedded migrations that have not yet run. Applied
// migration filenames are tracked in the recovery_migrations table, so
// calling Migrate repeatedly is safe.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS recovery_migrations (
			filename   TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		)`)
	if err != nil {
		return fmt.Errorf("recovery/sqlite: create migrations table: %w", err)
	}

	entries, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("recovery/sqlite: list migrations: %w", err)
	}
	sort.Strings(entries)

	for _, entry := range entries {
		var applied int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM recovery_migrations WHERE filename = ?`, entry,
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("recovery/sqlite: check migration %s: %w", entry, err)
		}
		if applied > 0 {
			continue
		}

		script, err := migrationsFS.ReadFile(entry)
		if err != nil {
			return fmt.Errorf("recovery/sqlite: read migration %s: %w", entry, err)
		}
		if _, err := s.db.ExecContext(ctx, string(script)); err != nil {
			return fmt.Errorf("recovery/sqlite: apply migration %s: %w", entry, err)
		}
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO recovery_migrations (filename) VALUES (?)`, entry,
		); err != nil {
			return fmt.Errorf("recovery/sqlite: record migration %s: %w", entry, err)
		}
		s.logger.Info("applied migration", "filename", entry)
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("recovery/sqlite: ping: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
