// Package storage implements the Persistence layer (spec.md §4.12): the
// single embedded database backing conversations, turns, memories, tasks,
// and the audit log. It follows original_source/infra/database.py's
// contract (startup schema protocol, startup-only pruning, nested-safe
// transactions) translated into database/sql over modernc.org/sqlite —
// a pure-Go, cgo-free driver, since no example in the pack embeds SQLite
// and the spec requires a single-file embedded store rather than a
// server-backed one.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/nova-labs/jarviscore/logging"
)

// DB wraps a *sql.DB open on a single SQLite file, after running the
// startup schema protocol and startup-only pruning.
type DB struct {
	sql    *sql.DB
	logger logging.Logger
}

// Config bounds what Open needs from config.StorageConfig without storage
// importing the config package back.
type Config struct {
	Path             string
	MaxTurnsPerConv  int
	MaxConversations int
}

// Open opens (creating if absent) the SQLite file at cfg.Path, runs the
// startup schema protocol, then prunes per cfg's retention bounds.
func Open(ctx context.Context, cfg Config, logger logging.Logger) (*DB, error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	sqlDB, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", cfg.Path, err)
	}
	// SQLite only accepts one writer at a time; serialize through a
	// single connection rather than surface "database is locked" errors.
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.ExecContext(ctx, `PRAGMA foreign_keys = ON;`); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("storage: enable foreign keys: %w", err)
	}

	if err := initialize(sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}

	db := &DB{sql: sqlDB, logger: logger}

	if err := db.IntegrityCheck(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("storage: startup integrity check: %w", err)
	}

	if err := db.pruneOnStartup(ctx, cfg.MaxTurnsPerConv, cfg.MaxConversations); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("storage: prune on startup: %w", err)
	}

	return db, nil
}

// Close releases the underlying database handle.
func (db *DB) Close() error {
	return db.sql.Close()
}

// IntegrityCheck runs SQLite's own `PRAGMA integrity_check` and returns an
// IntegrityError if the result is anything but "ok" (spec.md §4.12 step 4).
func (db *DB) IntegrityCheck(ctx context.Context) error {
	var result string
	if err := db.sql.QueryRowContext(ctx, `PRAGMA integrity_check;`).Scan(&result); err != nil {
		return fmt.Errorf("storage: integrity check: %w", err)
	}
	if result != "ok" {
		return &IntegrityError{Result: result}
	}
	return nil
}
