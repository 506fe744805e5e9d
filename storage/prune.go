package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// pruneOnStartup enforces the two retention bounds from spec.md §4.12:
// at most maxTurnsPerConv turns kept per conversation, and at most
// maxConversations conversations kept overall (oldest dropped first).
// Pruning only ever runs once, at startup, never mid-session — matching
// original_source/infra/database.py's _prune_on_startup().
func (db *DB) pruneOnStartup(ctx context.Context, maxTurnsPerConv, maxConversations int) error {
	return db.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if maxTurnsPerConv > 0 {
			rows, err := tx.QueryContext(ctx, `SELECT id FROM conversations`)
			if err != nil {
				return fmt.Errorf("list conversations for pruning: %w", err)
			}
			var convIDs []string
			for rows.Next() {
				var id string
				if err := rows.Scan(&id); err != nil {
					rows.Close()
					return fmt.Errorf("scan conversation id: %w", err)
				}
				convIDs = append(convIDs, id)
			}
			rows.Close()

			for _, convID := range convIDs {
				if _, err := tx.ExecContext(ctx, `
					DELETE FROM turns
					WHERE conversation_id = ? AND id NOT IN (
						SELECT id FROM turns
						WHERE conversation_id = ?
						ORDER BY timestamp DESC
						LIMIT ?
					)`, convID, convID, maxTurnsPerConv); err != nil {
					return fmt.Errorf("prune turns for conversation %s: %w", convID, err)
				}
			}
		}

		if maxConversations > 0 {
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM conversations
				WHERE id NOT IN (
					SELECT id FROM conversations
					ORDER BY created_at DESC
					LIMIT ?
				)`, maxConversations); err != nil {
				return fmt.Errorf("prune conversations: %w", err)
			}
		}

		return nil
	})
}
