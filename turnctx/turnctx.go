// Package turnctx mints and propagates the turn_id that every layer of the
// orchestration core threads through its calls and audit entries
// (spec.md §4.1).
package turnctx

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

// unset is the literal used when no turn is in scope.
const unset = "-"

type contextKey struct{}

var turnIDKey = contextKey{}

// New mints an opaque turn id with at least 96 bits of entropy, as
// recommended by spec.md §4.1. 16 random bytes (128 bits) hex-encoded.
func New() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means the platform RNG is broken; there is no
		// safe fallback for an identifier whose whole job is uniqueness.
		panic("turnctx: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// With returns a context carrying turnID. Entering a turn scope sets the id;
// the returned context restores the prior value when its lifetime ends
// (standard context.Context semantics: the parent is unaffected).
func With(ctx context.Context, turnID string) context.Context {
	return context.WithValue(ctx, turnIDKey, turnID)
}

// FromContext returns the turn id in scope, or "-" if none is set.
func FromContext(ctx context.Context) string {
	v, ok := ctx.Value(turnIDKey).(string)
	if !ok || v == "" {
		return unset
	}
	return v
}

// MustFromContext is like FromContext but panics if no turn id is set. Use
// in code paths that are only ever reached from inside a turn scope, to
// surface a wiring bug immediately rather than silently auditing as "-".
func MustFromContext(ctx context.Context) string {
	v := FromContext(ctx)
	if v == unset {
		panic("turnctx: no turn_id in scope")
	}
	return v
}
