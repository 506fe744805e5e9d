// Package confirmation implements the Confirmation Workflow (spec.md
// §4.6): when Authority returns REQUIRES_CONFIRMATION, a PendingConfirmation
// is created and either approved synchronously (via a caller-supplied
// function) or resolved later through ConfirmPending.
package confirmation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultExpirySeconds = 60

// Outcome is the closed set of confirmation resolutions.
type Outcome string

const (
	OutcomeApproved Outcome = "APPROVED"
	OutcomeDenied   Outcome = "DENIED"
	OutcomeTimeout  Outcome = "TIMEOUT"
	OutcomePending  Outcome = "PENDING"
)

// PendingConfirmation is a short-lived record awaiting approval or denial
// (spec.md §3 Pending Confirmation).
type PendingConfirmation struct {
	ID               string
	ToolName         string
	Args             map[string]interface{}
	RequestedAt      time.Time
	ExpiresInSeconds int
	TurnID           string
}

func (p *PendingConfirmation) expired(now time.Time) bool {
	return now.After(p.RequestedAt.Add(time.Duration(p.ExpiresInSeconds) * time.Second))
}

// ApproveFunc is a caller-supplied synchronous approval hook (e.g. a voice
// prompt, a UI dialog). Returning immediately lets Request resolve inline;
// a nil ApproveFunc means the caller wants asynchronous resolution via
// ConfirmPending instead.
type ApproveFunc func(p *PendingConfirmation) bool

// AuditFunc records CONFIRM_REQUEST / CONFIRM_RESPONSE entries.
type AuditFunc func(ctx context.Context, turnID, action, target string, details map[string]interface{})

// Store holds pending confirmations in memory, keyed by id.
type Store struct {
	mu      sync.Mutex
	pending map[string]*PendingConfirmation
	audit   AuditFunc
}

// NewStore builds an empty confirmation Store.
func NewStore(audit AuditFunc) *Store {
	if audit == nil {
		audit = func(context.Context, string, string, string, map[string]interface{}) {}
	}
	return &Store{pending: make(map[string]*PendingConfirmation), audit: audit}
}

// Request creates a PendingConfirmation and, if approve is non-nil,
// resolves it synchronously. It returns the pending record and, when
// resolved synchronously, the outcome; callers performing asynchronous
// resolution should treat a nil approve's OutcomePending as "return
// CONFIRMATION_REQUIRED to the caller and wait for ConfirmPending".
//
// expiresInSeconds is optional and defaults to defaultExpirySeconds when
// omitted; pass an explicit value (including 0, for spec.md §8's
// expires_in_seconds=0 boundary) to override it.
func (s *Store) Request(ctx context.Context, turnID, toolName string, args map[string]interface{}, approve ApproveFunc, expiresInSeconds ...int) (*PendingConfirmation, Outcome) {
	expires := defaultExpirySeconds
	if len(expiresInSeconds) > 0 {
		expires = expiresInSeconds[0]
	}
	p := &PendingConfirmation{
		ID:               uuid.NewString(),
		ToolName:         toolName,
		Args:             args,
		RequestedAt:      time.Now(),
		ExpiresInSeconds: expires,
		TurnID:           turnID,
	}

	s.mu.Lock()
	s.pending[p.ID] = p
	s.mu.Unlock()

	s.audit(ctx, turnID, "CONFIRM_REQUEST", toolName, map[string]interface{}{
		"confirmation_id": p.ID,
	})

	if approve == nil {
		return p, OutcomePending
	}

	approved := approve(p)
	outcome := OutcomeDenied
	if approved {
		outcome = OutcomeApproved
	}
	s.resolve(ctx, p.ID, outcome)
	return p, outcome
}

// ConfirmPending resolves a previously-issued pending confirmation
// asynchronously. Expired pendings always resolve as OutcomeTimeout
// regardless of the approved argument.
func (s *Store) ConfirmPending(ctx context.Context, id string, approved bool) (Outcome, error) {
	s.mu.Lock()
	p, ok := s.pending[id]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("confirmation: unknown pending id %q", id)
	}

	if p.expired(time.Now()) {
		s.resolve(ctx, id, OutcomeTimeout)
		return OutcomeTimeout, nil
	}

	outcome := OutcomeDenied
	if approved {
		outcome = OutcomeApproved
	}
	s.resolve(ctx, id, outcome)
	return outcome, nil
}

// Get returns the pending confirmation with the given id, if it still
// exists (resolution removes it).
func (s *Store) Get(id string) (*PendingConfirmation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[id]
	return p, ok
}

// resolve removes the pending record and audits CONFIRM_RESPONSE — always
// audited per spec.md §4.6, whatever the outcome.
func (s *Store) resolve(ctx context.Context, id string, outcome Outcome) {
	s.mu.Lock()
	p, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	s.audit(ctx, p.TurnID, "CONFIRM_RESPONSE", p.ToolName, map[string]interface{}{
		"confirmation_id": id,
		"outcome":         string(outcome),
	})
}
