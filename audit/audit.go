// Package audit implements the HMAC-chained Audit Log (spec.md §4.10):
// every privileged action, grant, confirmation, and execution is recorded
// as an append-only entry whose hash depends on the entry before it, so
// tampering with or deleting any entry breaks the chain from that point
// forward. Canonicalization and chaining are grounded directly on
// original_source/infra/audit.py, since spec.md itself leaves the exact
// wire format as an implementation detail.
package audit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/nova-labs/jarviscore/logging"
	"github.com/nova-labs/jarviscore/storage"
)

// genesisHash is the prev_hash of the first entry ever written: 64 zero
// characters (the width of a hex-encoded SHA-256 sum), the same sentinel
// original_source/infra/audit.py uses.
var genesisHash = strings.Repeat("0", 64)

// Entry is one audit record, before hashing.
type Entry struct {
	TurnID    string
	EventType string
	Actor     string
	Action    string
	Target    string
	Details   map[string]interface{}
}

// Log is the append-only, HMAC-chained audit trail. Writes are serialized
// through storage's single-writer SQLite handle, so entry order and the
// hash chain are never raced.
type Log struct {
	db     *storage.DB
	key    []byte
	logger logging.Logger
}

// New builds a Log backed by db, using key for HMAC-SHA256 chaining. Use
// LoadKey to resolve key from the environment with its machine-identity
// fallback.
func New(db *storage.DB, key []byte, logger logging.Logger) *Log {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Log{db: db, key: key, logger: logger}
}

// LoadKey resolves the HMAC key from JARVIS_AUDIT_KEY, falling back to a
// weak machine-identity-derived key so a fresh install still produces a
// verifiable (if not secret) chain — matching infra/audit.py's own
// fallback, which trades confidentiality of the key for availability of
// chain integrity checking on a machine with no key provisioned.
func LoadKey() []byte {
	if k := os.Getenv("JARVIS_AUDIT_KEY"); k != "" {
		return []byte(k)
	}
	host, err := os.Hostname()
	if err != nil {
		host = "jarvis-unknown-host"
	}
	sum := sha256.Sum256([]byte("jarvis-fallback-audit-key:" + host))
	return sum[:]
}

// Append writes one entry to the log, computing its hash from the current
// chain tip. Returns the entry's own hash so callers (e.g. confirmation
// receipts) can cite it.
func (l *Log) Append(ctx context.Context, e Entry) (string, error) {
	var entryHash string
	err := l.db.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		prevHash := genesisHash
		last, err := l.db.LastAuditRow(ctx)
		if err == nil {
			prevHash = last.EntryHash
		} else if err != sql.ErrNoRows {
			return fmt.Errorf("audit: read chain tip: %w", err)
		}

		ts := time.Now().UTC()
		detailsJSON, err := canonicalDetails(e.Details)
		if err != nil {
			return fmt.Errorf("audit: canonicalize details: %w", err)
		}

		canonical, err := canonicalize(prevHash, e.TurnID, ts, e.EventType, e.Actor, e.Action, e.Target, detailsJSON)
		if err != nil {
			return err
		}
		entryHash = l.sign(canonical)

		_, err = l.db.AppendAuditRow(ctx, storage.AuditRow{
			TurnID:    e.TurnID,
			Timestamp: ts,
			EventType: e.EventType,
			Actor:     e.Actor,
			Action:    e.Action,
			Target:    e.Target,
			Details:   detailsJSON,
			PrevHash:  prevHash,
			EntryHash: entryHash,
		})
		return err
	})
	if err != nil {
		return "", err
	}
	return entryHash, nil
}

// sign computes HMAC-SHA256 over canonical, hex-encoded.
func (l *Log) sign(canonical []byte) string {
	mac := hmac.New(sha256.New, l.key)
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil))
}

// canonicalDetails renders details as JSON with sorted keys and no
// whitespace, matching infra/audit.py's
// json.dumps(details, sort_keys=True, separators=(',', ':')).
func canonicalDetails(details map[string]interface{}) (string, error) {
	if details == nil {
		return "{}", nil
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make(map[string]interface{}, len(details))
	for _, k := range keys {
		ordered[k] = details[k]
	}
	b, err := json.Marshal(ordered)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// canonicalize builds the exact byte string that gets HMAC'd, with the
// fixed field order {prev_hash, turn_id, timestamp, event_type, actor,
// action, target, details} from infra/audit.py.
func canonicalize(prevHash, turnID string, ts time.Time, eventType, actor, action, target, detailsJSON string) ([]byte, error) {
	doc := map[string]interface{}{
		"prev_hash":  prevHash,
		"turn_id":    turnID,
		"timestamp":  ts.Format(time.RFC3339Nano),
		"event_type": eventType,
		"actor":      actor,
		"action":     action,
		"target":     target,
		"details":    json.RawMessage(detailsJSON),
	}
	keys := []string{"prev_hash", "turn_id", "timestamp", "event_type", "actor", "action", "target", "details"}
	var buf []byte
	buf = append(buf, '{')
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, _ := json.Marshal(k)
		buf = append(buf, kb...)
		buf = append(buf, ':')
		vb, err := json.Marshal(doc[k])
		if err != nil {
			return nil, err
		}
		buf = append(buf, vb...)
	}
	buf = append(buf, '}')
	return buf, nil
}
