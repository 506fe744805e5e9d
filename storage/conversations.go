package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Conversation is one row of the conversations table.
type Conversation struct {
	ID        string
	CreatedAt time.Time
	Meta      map[string]interface{}
}

// CreateConversation inserts a new conversation row.
func (db *DB) CreateConversation(ctx context.Context, id string, meta map[string]interface{}) error {
	metaJSON, err := marshalMeta(meta)
	if err != nil {
		return err
	}
	_, err = db.q(ctx).ExecContext(ctx,
		`INSERT INTO conversations (id, created_at, meta) VALUES (?, ?, ?)`,
		id, time.Now().UTC().Format(time.RFC3339Nano), metaJSON,
	)
	if err != nil {
		return fmt.Errorf("storage: create conversation %s: %w", id, err)
	}
	return nil
}

// GetConversation returns the conversation with the given id, or
// sql.ErrNoRows if none exists.
func (db *DB) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	row := db.q(ctx).QueryRowContext(ctx,
		`SELECT id, created_at, meta FROM conversations WHERE id = ?`, id)
	return scanConversation(row)
}

// ListConversations returns every conversation, most recently created first.
func (db *DB) ListConversations(ctx context.Context) ([]*Conversation, error) {
	rows, err := db.q(ctx).QueryContext(ctx,
		`SELECT id, created_at, meta FROM conversations ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("storage: list conversations: %w", err)
	}
	defer rows.Close()

	var out []*Conversation
	for rows.Next() {
		c, err := scanConversationRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteConversation removes a conversation and, via ON DELETE CASCADE,
// every turn that belongs to it.
func (db *DB) DeleteConversation(ctx context.Context, id string) error {
	_, err := db.q(ctx).ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("storage: delete conversation %s: %w", id, err)
	}
	return nil
}

func scanConversation(row *sql.Row) (*Conversation, error) {
	var c Conversation
	var createdAt, metaJSON string
	if err := row.Scan(&c.ID, &createdAt, &metaJSON); err != nil {
		return nil, err
	}
	return finishConversation(&c, createdAt, metaJSON)
}

func scanConversationRows(rows *sql.Rows) (*Conversation, error) {
	var c Conversation
	var createdAt, metaJSON string
	if err := rows.Scan(&c.ID, &createdAt, &metaJSON); err != nil {
		return nil, fmt.Errorf("storage: scan conversation: %w", err)
	}
	return finishConversation(&c, createdAt, metaJSON)
}

func finishConversation(c *Conversation, createdAt, metaJSON string) (*Conversation, error) {
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("storage: parse conversation created_at: %w", err)
	}
	c.CreatedAt = t
	if metaJSON != "" {
		if err := json.Unmarshal([]byte(metaJSON), &c.Meta); err != nil {
			return nil, fmt.Errorf("storage: parse conversation meta: %w", err)
		}
	}
	return c, nil
}

func marshalMeta(meta map[string]interface{}) (string, error) {
	if meta == nil {
		return "", nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("storage: marshal meta: %w", err)
	}
	return string(b), nil
}
