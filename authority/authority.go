// Package authority implements the Authority gate (spec.md §4.5): the
// single checkpoint every tool execution passes through before anything
// runs. It holds default grants (seeded from config), session grants
// (in-memory, cleared by ClearSessionGrants), and the confirmation-required
// permission set, and audits every decision it makes.
package authority

import (
	"context"
	"sync"
	"time"

	"github.com/nova-labs/jarviscore/tool"
)

// Source is the closed set of grant origins.
type Source string

const (
	SourceDefault Source = "default"
	SourceUser    Source = "user"
	SourceSession Source = "session"
)

// Grant is a permission record authorizing a target (a tool name or a
// permission level) to be used (spec.md §3 Permission Grant).
type Grant struct {
	Target    string
	Level     tool.PermissionLevel
	GrantedAt time.Time
	ExpiresAt *time.Time
	OneTime   bool
	Revoked   bool
	Source    Source
}

func (g *Grant) expired(now time.Time) bool {
	return g.ExpiresAt != nil && !now.Before(*g.ExpiresAt)
}

// DecisionStatus is the closed set of authority outcomes.
type DecisionStatus string

const (
	Granted             DecisionStatus = "GRANTED"
	DeniedNoGrant       DecisionStatus = "DENIED_NO_GRANT"
	DeniedExpired       DecisionStatus = "DENIED_EXPIRED"
	DeniedRevoked       DecisionStatus = "DENIED_REVOKED"
	DeniedLevelMismatch DecisionStatus = "DENIED_LEVEL_MISMATCH"
	RequiresConfirm     DecisionStatus = "REQUIRES_CONFIRMATION"
)

// Decision is the typed result of a Check call.
type Decision struct {
	Status DecisionStatus
	Grant  *Grant
}

// AuditFunc records one AUTHORITY_CHECK entry. Authority depends on this
// narrow function rather than the concrete audit.Log type so it can be
// tested without a database.
type AuditFunc func(ctx context.Context, turnID, action, target string, details map[string]interface{})

// Authority is the central permission gate.
type Authority struct {
	mu                   sync.Mutex
	sessionGrants        []*Grant
	defaultGrants        []*Grant
	confirmationRequired map[tool.PermissionLevel]bool
	audit                AuditFunc
}

// New builds an Authority seeded with defaultGrants and the set of
// permission levels that always require confirmation even with a default
// grant (spec.md §4.5: "default grants do not bypass confirmation for
// destructive levels").
func New(defaultGrants []*Grant, confirmationRequired []tool.PermissionLevel, audit AuditFunc) *Authority {
	required := make(map[tool.PermissionLevel]bool, len(confirmationRequired))
	for _, l := range confirmationRequired {
		required[l] = true
	}
	if audit == nil {
		audit = func(context.Context, string, string, string, map[string]interface{}) {}
	}
	return &Authority{
		defaultGrants:        defaultGrants,
		confirmationRequired: required,
		audit:                audit,
	}
}

// Check is the single authorization checkpoint every tool call passes
// through. Lookup order is session grants, then default grants (spec.md
// §4.5). A one-time grant that is used successfully (status GRANTED, not
// merely found) is revoked immediately so it cannot be reused.
func (a *Authority) Check(ctx context.Context, toolName string, level tool.PermissionLevel, turnID string) Decision {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	grant := a.lookupLocked(toolName, level)

	decision := a.evaluate(grant, level, now)

	if decision.Status == Granted && grant.OneTime {
		grant.Revoked = true
	}

	a.audit(ctx, turnID, "AUTHORITY_CHECK", toolName, map[string]interface{}{
		"level":  string(level),
		"status": string(decision.Status),
	})

	return decision
}

func (a *Authority) evaluate(grant *Grant, level tool.PermissionLevel, now time.Time) Decision {
	if grant == nil {
		if a.confirmationRequired[level] {
			return Decision{Status: RequiresConfirm}
		}
		return Decision{Status: DeniedNoGrant}
	}
	if grant.Revoked {
		return Decision{Status: DeniedRevoked, Grant: grant}
	}
	if grant.expired(now) {
		return Decision{Status: DeniedExpired, Grant: grant}
	}
	if grant.Level != level && grant.Target != "*" {
		return Decision{Status: DeniedLevelMismatch, Grant: grant}
	}
	if a.confirmationRequired[level] && grant.Source == SourceDefault {
		return Decision{Status: RequiresConfirm, Grant: grant}
	}
	return Decision{Status: Granted, Grant: grant}
}

// lookupLocked finds the most specific matching grant for toolName/level:
// session grants first, then defaults, each searched for an exact target
// match before a wildcard ("*") match. Callers must hold a.mu.
func (a *Authority) lookupLocked(toolName string, level tool.PermissionLevel) *Grant {
	if g := findGrant(a.sessionGrants, toolName, level); g != nil {
		return g
	}
	return findGrant(a.defaultGrants, toolName, level)
}

func findGrant(grants []*Grant, toolName string, level tool.PermissionLevel) *Grant {
	var wildcard *Grant
	for _, g := range grants {
		if g.Target == toolName {
			return g
		}
		if g.Target == "*" && g.Level == level && wildcard == nil {
			wildcard = g
		}
	}
	return wildcard
}

// Grant adds a new grant. Session grants live only in memory and are
// cleared by ClearSessionGrants; default/user grants persist across the
// process lifetime held by this Authority instance. Always audited as
// GRANT_CREATED.
func (a *Authority) Grant(ctx context.Context, turnID, target string, level tool.PermissionLevel, expiresIn *time.Duration, oneTime bool, source Source) *Grant {
	a.mu.Lock()

	g := &Grant{
		Target:    target,
		Level:     level,
		GrantedAt: time.Now(),
		OneTime:   oneTime,
		Source:    source,
	}
	if expiresIn != nil {
		exp := g.GrantedAt.Add(*expiresIn)
		g.ExpiresAt = &exp
	}

	if source == SourceSession {
		a.sessionGrants = append(a.sessionGrants, g)
	} else {
		a.defaultGrants = append(a.defaultGrants, g)
	}
	a.mu.Unlock()

	a.audit(ctx, turnID, "GRANT_CREATED", target, map[string]interface{}{
		"level":  string(level),
		"source": string(source),
	})
	return g
}

// Revoke marks every grant (session and default) matching target as
// revoked. Revocation is immediate and visible to any subsequent Check —
// there is no cache to invalidate. Always audited as GRANT_REVOKED.
func (a *Authority) Revoke(ctx context.Context, turnID, target string) {
	a.mu.Lock()
	for _, g := range a.sessionGrants {
		if g.Target == target {
			g.Revoked = true
		}
	}
	for _, g := range a.defaultGrants {
		if g.Target == target {
			g.Revoked = true
		}
	}
	a.mu.Unlock()

	a.audit(ctx, turnID, "GRANT_REVOKED", target, nil)
}

// ClearSessionGrants discards every in-memory session grant, typically
// called when a conversation ends.
func (a *Authority) ClearSessionGrants() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessionGrants = nil
}

// ListGrants returns every grant, optionally including revoked ones.
func (a *Authority) ListGrants(includeRevoked bool) []*Grant {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*Grant
	for _, g := range append(append([]*Grant{}, a.sessionGrants...), a.defaultGrants...) {
		if g.Revoked && !includeRevoked {
			continue
		}
		out = append(out, g)
	}
	return out
}
