package storage

import (
	"context"
	"database/sql"
	"fmt"
)

type txKey struct{}

// txFromContext returns the *sql.Tx carried by ctx, if WithTx is already
// active on it.
func txFromContext(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return tx, ok
}

// WithTx runs fn inside a transaction. A call nested inside an outer WithTx
// reuses the outer transaction instead of opening a second one — SQLite's
// single-writer model means a nested BEGIN would simply block forever —
// mirroring the reentrant transaction() context manager in
// original_source/infra/database.py.
func (db *DB) WithTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	if tx, ok := txFromContext(ctx); ok {
		return fn(ctx, tx)
	}

	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin transaction: %w", err)
	}

	nested := context.WithValue(ctx, txKey{}, tx)
	if err := fn(nested, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("storage: rollback after %w: %v", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// querier is satisfied by both *sql.DB and *sql.Tx, letting CRUD helpers
// run either standalone or inside a WithTx-managed transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// q resolves the querier that should run the given context's statements:
// the active transaction if one is on the context, else the raw *sql.DB.
func (db *DB) q(ctx context.Context) querier {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return db.sql
}
