package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Memory is one row of the memories table: a durable key/value fact the
// Memory Governor has chosen to retain across turns.
type Memory struct {
	ID        int64
	Key       string
	Value     string
	Embedding []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UpsertMemory inserts a new memory or overwrites the value (and
// updated_at) of an existing one with the same key.
func (db *DB) UpsertMemory(ctx context.Context, key, value string, embedding []byte) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := db.q(ctx).ExecContext(ctx, `
		INSERT INTO memories (key, value, embedding, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, embedding = excluded.embedding, updated_at = excluded.updated_at
	`, key, value, embedding, now, now)
	if err != nil {
		return fmt.Errorf("storage: upsert memory %q: %w", key, err)
	}
	return nil
}

// GetMemory returns the memory stored under key, or sql.ErrNoRows if none.
func (db *DB) GetMemory(ctx context.Context, key string) (*Memory, error) {
	row := db.q(ctx).QueryRowContext(ctx, `
		SELECT id, key, value, embedding, created_at, updated_at
		FROM memories WHERE key = ?`, key)
	return scanMemory(row)
}

// ListMemories returns every stored memory.
func (db *DB) ListMemories(ctx context.Context) ([]*Memory, error) {
	rows, err := db.q(ctx).QueryContext(ctx, `
		SELECT id, key, value, embedding, created_at, updated_at FROM memories ORDER BY key ASC`)
	if err != nil {
		return nil, fmt.Errorf("storage: list memories: %w", err)
	}
	defer rows.Close()

	var out []*Memory
	for rows.Next() {
		m, err := scanMemoryRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteMemory removes the memory stored under key, if any.
func (db *DB) DeleteMemory(ctx context.Context, key string) error {
	_, err := db.q(ctx).ExecContext(ctx, `DELETE FROM memories WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("storage: delete memory %q: %w", key, err)
	}
	return nil
}

// DeleteAllMemories clears the memories table entirely, backing the Memory
// Governor's forget_all operation (spec.md §4.11).
func (db *DB) DeleteAllMemories(ctx context.Context) error {
	_, err := db.q(ctx).ExecContext(ctx, `DELETE FROM memories`)
	if err != nil {
		return fmt.Errorf("storage: delete all memories: %w", err)
	}
	return nil
}

func scanMemory(row *sql.Row) (*Memory, error) {
	var m Memory
	var createdAt, updatedAt string
	if err := row.Scan(&m.ID, &m.Key, &m.Value, &m.Embedding, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	return finishMemory(&m, createdAt, updatedAt)
}

func scanMemoryRows(rows *sql.Rows) (*Memory, error) {
	var m Memory
	var createdAt, updatedAt string
	if err := rows.Scan(&m.ID, &m.Key, &m.Value, &m.Embedding, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("storage: scan memory: %w", err)
	}
	return finishMemory(&m, createdAt, updatedAt)
}

func finishMemory(m *Memory, createdAt, updatedAt string) (*Memory, error) {
	c, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("storage: parse memory created_at: %w", err)
	}
	u, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("storage: parse memory updated_at: %w", err)
	}
	m.CreatedAt = c
	m.UpdatedAt = u
	return m, nil
}
