package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration is one forward schema step. Up runs inside its own transaction;
// a failure leaves the database at the last successfully applied version.
type Migration struct {
	Version int
	Up      func(tx *sql.Tx) error
}

// migrations lists every forward step after version 1, in ascending
// Version order. Empty today — CurrentSchemaVersion is still 1 — but the
// ordered-slice shape is what initialize walks, so adding schema changes
// later means appending here, never editing baseSchema in place.
var migrations = []Migration{}

// initialize runs the 4-step startup protocol from spec.md §4.12:
//  1. read the highest recorded schema_version
//  2. absent -> create the base schema and record CurrentSchemaVersion
//  3. equal -> continue, nothing to do
//  4. less -> migrate forward one version at a time, each in its own
//     transaction, halting with MigrationFailedError on the first failure;
//     greater -> halt with SchemaMismatchError, no mutation
func initialize(db *sql.DB) error {
	version, found, err := readSchemaVersion(db)
	if err != nil {
		return fmt.Errorf("storage: read schema version: %w", err)
	}

	if !found {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("storage: begin schema creation: %w", err)
		}
		if _, err := tx.Exec(baseSchema); err != nil {
			tx.Rollback()
			return fmt.Errorf("storage: create schema: %w", err)
		}
		if err := recordVersion(tx, CurrentSchemaVersion); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	}

	if version == CurrentSchemaVersion {
		return nil
	}

	if version > CurrentSchemaVersion {
		return &SchemaMismatchError{DBVersion: version, CodeVersion: CurrentSchemaVersion}
	}

	for _, m := range migrations {
		if m.Version <= version {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return &MigrationFailedError{ToVersion: m.Version, Err: err}
		}
		if err := m.Up(tx); err != nil {
			tx.Rollback()
			return &MigrationFailedError{ToVersion: m.Version, Err: err}
		}
		if err := recordVersion(tx, m.Version); err != nil {
			tx.Rollback()
			return &MigrationFailedError{ToVersion: m.Version, Err: err}
		}
		if err := tx.Commit(); err != nil {
			return &MigrationFailedError{ToVersion: m.Version, Err: err}
		}
		version = m.Version
	}

	return nil
}

func readSchemaVersion(db *sql.DB) (version int, found bool, err error) {
	row := db.QueryRow(`SELECT MAX(version) FROM schema_version`)
	var v sql.NullInt64
	if err := row.Scan(&v); err != nil {
		// A brand new database file has no schema_version table at all;
		// that query error is the "absent" case, not a real failure.
		return 0, false, nil
	}
	if !v.Valid {
		return 0, false, nil
	}
	return int(v.Int64), true, nil
}

func recordVersion(tx *sql.Tx, version int) error {
	_, err := tx.Exec(
		`INSERT INTO schema_version (version, applied_at) VALUES (?, ?)`,
		version, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("storage: record schema version %d: %w", version, err)
	}
	return nil
}
