package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// TurnRole is the closed set of turn speakers persisted alongside content.
type TurnRole string

const (
	RoleUser      TurnRole = "user"
	RoleAssistant TurnRole = "assistant"
)

// Turn is one row of the turns table: a single user or assistant utterance
// within a conversation.
type Turn struct {
	ID             int64
	ConversationID string
	TurnID         string
	Role           TurnRole
	Content        string
	Timestamp      time.Time
	Meta           map[string]interface{}
}

// AppendTurn inserts a turn row under an existing conversation.
func (db *DB) AppendTurn(ctx context.Context, t Turn) error {
	metaJSON, err := marshalMeta(t.Meta)
	if err != nil {
		return err
	}
	ts := t.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err = db.q(ctx).ExecContext(ctx, `
		INSERT INTO turns (conversation_id, turn_id, role, content, timestamp, meta)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ConversationID, t.TurnID, string(t.Role), t.Content,
		ts.Format(time.RFC3339Nano), metaJSON,
	)
	if err != nil {
		return fmt.Errorf("storage: append turn to conversation %s: %w", t.ConversationID, err)
	}
	return nil
}

// DeleteTurn removes a single turn by its row id.
func (db *DB) DeleteTurn(ctx context.Context, id int64) error {
	_, err := db.q(ctx).ExecContext(ctx, `DELETE FROM turns WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("storage: delete turn %d: %w", id, err)
	}
	return nil
}

// ListTurns returns every turn for a conversation, oldest first.
func (db *DB) ListTurns(ctx context.Context, conversationID string) ([]*Turn, error) {
	rows, err := db.q(ctx).QueryContext(ctx, `
		SELECT id, conversation_id, turn_id, role, content, timestamp, meta
		FROM turns WHERE conversation_id = ? ORDER BY timestamp ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("storage: list turns for %s: %w", conversationID, err)
	}
	defer rows.Close()

	var out []*Turn
	for rows.Next() {
		var t Turn
		var role, ts, metaJSON string
		if err := rows.Scan(&t.ID, &t.ConversationID, &t.TurnID, &role, &t.Content, &ts, &metaJSON); err != nil {
			return nil, fmt.Errorf("storage: scan turn: %w", err)
		}
		t.Role = TurnRole(role)
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("storage: parse turn timestamp: %w", err)
		}
		t.Timestamp = parsed
		if metaJSON != "" {
			if err := json.Unmarshal([]byte(metaJSON), &t.Meta); err != nil {
				return nil, fmt.Errorf("storage: parse turn meta: %w", err)
			}
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
