package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/nova-labs/jarviscore/storage"
)

// Record is the caller-facing view of one verified-or-not audit row.
type Record struct {
	ID        int64
	TurnID    string
	Timestamp string
	EventType string
	Actor     string
	Action    string
	Target    string
	Details   string
	EntryHash string
}

// GetTurnTrail returns every entry recorded for a single turn, in the
// order they were written.
func (l *Log) GetTurnTrail(ctx context.Context, turnID string) ([]Record, error) {
	rows, err := l.db.ListAuditRowsByTurn(ctx, turnID)
	if err != nil {
		return nil, fmt.Errorf("audit: get turn trail: %w", err)
	}
	return toRecords(rows), nil
}

// GetEntries returns the entire audit log, in chain order.
func (l *Log) GetEntries(ctx context.Context) ([]Record, error) {
	rows, err := l.db.ListAllAuditRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit: get entries: %w", err)
	}
	return toRecords(rows), nil
}

// VerifyChain recomputes every entry's hash in order and confirms each
// prev_hash matches the previous entry's entry_hash and each entry_hash
// matches what Append would have produced. Returns the index of the first
// broken link, or -1 if the whole chain verifies.
func (l *Log) VerifyChain(ctx context.Context) (brokenAt int, err error) {
	rows, err := l.db.ListAllAuditRows(ctx)
	if err != nil {
		return -1, fmt.Errorf("audit: verify chain: %w", err)
	}

	expectedPrev := genesisHash
	for i, r := range rows {
		if r.PrevHash != expectedPrev {
			return i, nil
		}
		canonical, err := canonicalize(r.PrevHash, r.TurnID, r.Timestamp, r.EventType, r.Actor, r.Action, r.Target, r.Details)
		if err != nil {
			return i, fmt.Errorf("audit: canonicalize row %d: %w", r.ID, err)
		}
		if l.sign(canonical) != r.EntryHash {
			return i, nil
		}
		expectedPrev = r.EntryHash
	}
	return -1, nil
}

// exportBundleVersion is the export format's version tag (spec.md §6,
// "Audit export format (stable)").
const exportBundleVersion = "0.7.0"

// ExportBundle is the signed, self-describing envelope produced by
// ExportForReview: the included entries with their hashes, the id range,
// the final hash, and a fingerprint of the HMAC key. It does not carry the
// key or the entries' prev_hash values; recomputing the entry hashes needs
// the key.
type ExportBundle struct {
	Version      string   `json:"version"`
	ExportedAt   string   `json:"exported_at"`
	EntryCount   int      `json:"entry_count"`
	FirstEntryID int64    `json:"first_entry_id"`
	LastEntryID  int64    `json:"last_entry_id"`
	FinalHash    string   `json:"final_hash"`
	KeyID        string   `json:"key_id"`
	Entries      []Record `json:"entries"`
}

// ExportForReview assembles the human-review export bundle (spec.md §4.10,
// §6): start/end bound the included entry ids inclusive, nil meaning
// unbounded on that side. FinalHash is the last included entry's own hash,
// or the genesis hash when the range holds no entries.
func (l *Log) ExportForReview(ctx context.Context, start, end *int64) (*ExportBundle, error) {
	rows, err := l.db.ListAuditRowsInRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("audit: export for review: %w", err)
	}

	entries := toRecords(rows)
	bundle := &ExportBundle{
		Version:    exportBundleVersion,
		ExportedAt: time.Now().UTC().Format(time.RFC3339Nano),
		EntryCount: len(entries),
		KeyID:      l.keyID(),
		Entries:    entries,
	}
	if len(rows) > 0 {
		bundle.FirstEntryID = rows[0].ID
		bundle.LastEntryID = rows[len(rows)-1].ID
		bundle.FinalHash = rows[len(rows)-1].EntryHash
	} else {
		bundle.FinalHash = genesisHash
	}
	return bundle, nil
}

// keyID fingerprints the HMAC key so a reviewer can confirm two exports
// were signed with the same key without ever seeing the key itself.
func (l *Log) keyID() string {
	sum := sha256.Sum256(l.key)
	return hex.EncodeToString(sum[:])[:16]
}

func toRecords(rows []*storage.AuditRow) []Record {
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, Record{
			ID:        r.ID,
			TurnID:    r.TurnID,
			Timestamp: r.Timestamp.Format("2006-01-02T15:04:05.999999999Z07:00"),
			EventType: r.EventType,
			Actor:     r.Actor,
			Action:    r.Action,
			Target:    r.Target,
			Details:   r.Details,
			EntryHash: r.EntryHash,
		})
	}
	return out
}
