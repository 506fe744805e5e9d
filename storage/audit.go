package storage

import (
	"context"
	"fmt"
	"time"
)

// AuditRow is the storage-layer shape of one audit_log row. The audit
// package owns canonicalization and HMAC chaining; storage only persists
// and retrieves the already-hashed row.
type AuditRow struct {
	ID        int64
	TurnID    string
	Timestamp time.Time
	EventType string
	Actor     string
	Action    string
	Target    string
	Details   string // canonical JSON, already encoded by the audit package
	PrevHash  string
	EntryHash string
}

// AppendAuditRow inserts one already-hashed audit row. Audit rows are
// never updated or deleted once written (spec.md §4.10: append-only).
func (db *DB) AppendAuditRow(ctx context.Context, r AuditRow) (int64, error) {
	res, err := db.q(ctx).ExecContext(ctx, `
		INSERT INTO audit_log (turn_id, timestamp, event_type, actor, action, target, details, prev_hash, entry_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.TurnID, r.Timestamp.UTC().Format(time.RFC3339Nano), r.EventType,
		r.Actor, r.Action, r.Target, r.Details, r.PrevHash, r.EntryHash,
	)
	if err != nil {
		return 0, fmt.Errorf("storage: append audit row: %w", err)
	}
	return res.LastInsertId()
}

// LastAuditRow returns the most recently written audit row, or nil if the
// log is empty — the audit package uses this to find the chain tip.
func (db *DB) LastAuditRow(ctx context.Context) (*AuditRow, error) {
	row := db.q(ctx).QueryRowContext(ctx, `
		SELECT id, turn_id, timestamp, event_type, actor, action, target, details, prev_hash, entry_hash
		FROM audit_log ORDER BY id DESC LIMIT 1`)

	var r AuditRow
	var ts string
	if err := row.Scan(&r.ID, &r.TurnID, &ts, &r.EventType, &r.Actor, &r.Action, &r.Target, &r.Details, &r.PrevHash, &r.EntryHash); err != nil {
		return nil, err
	}
	parsed, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, fmt.Errorf("storage: parse audit row timestamp: %w", err)
	}
	r.Timestamp = parsed
	return &r, nil
}

// ListAuditRowsByTurn returns every audit row for a given turn, in
// insertion order.
func (db *DB) ListAuditRowsByTurn(ctx context.Context, turnID string) ([]*AuditRow, error) {
	return db.queryAuditRows(ctx, `
		SELECT id, turn_id, timestamp, event_type, actor, action, target, details, prev_hash, entry_hash
		FROM audit_log WHERE turn_id = ? ORDER BY id ASC`, turnID)
}

// ListAllAuditRows returns the entire audit log, in insertion (chain) order.
func (db *DB) ListAllAuditRows(ctx context.Context) ([]*AuditRow, error) {
	return db.queryAuditRows(ctx, `
		SELECT id, turn_id, timestamp, event_type, actor, action, target, details, prev_hash, entry_hash
		FROM audit_log ORDER BY id ASC`)
}

// ListAuditRowsInRange returns audit rows with id between start and end
// inclusive, in chain order. A nil bound is unbounded on that side.
func (db *DB) ListAuditRowsInRange(ctx context.Context, start, end *int64) ([]*AuditRow, error) {
	query := `SELECT id, turn_id, timestamp, event_type, actor, action, target, details, prev_hash, entry_hash
		FROM audit_log WHERE (? IS NULL OR id >= ?) AND (? IS NULL OR id <= ?) ORDER BY id ASC`
	return db.queryAuditRows(ctx, query, start, start, end, end)
}

func (db *DB) queryAuditRows(ctx context.Context, query string, args ...interface{}) ([]*AuditRow, error) {
	rows, err := db.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: query audit rows: %w", err)
	}
	defer rows.Close()

	var out []*AuditRow
	for rows.Next() {
		var r AuditRow
		var ts string
		if err := rows.Scan(&r.ID, &r.TurnID, &ts, &r.EventType, &r.Actor, &r.Action, &r.Target, &r.Details, &r.PrevHash, &r.EntryHash); err != nil {
			return nil, fmt.Errorf("storage: scan audit row: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("storage: parse audit row timestamp: %w", err)
		}
		r.Timestamp = parsed
		out = append(out, &r)
	}
	return out, rows.Err()
}
