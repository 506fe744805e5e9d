// Package memory implements the Memory Governor (spec.md §4.11): static
// regex redaction, retention enforcement, and explicit forget operations,
// all of which are audited. It also carries a small Preferences store as a
// supplemented feature (spec.md §9's memory layer implies user-settable
// preferences; the distilled spec stops at raw key/value memories).
package memory

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/nova-labs/jarviscore/storage"
)

// Policy governs redaction and retention (spec.md §4.11).
type Policy struct {
	MaxTurns            int
	MaxAgeDays          int
	MaxTokensPerTurn    int
	SensitivePatterns   []*regexp.Regexp
	RedactOnStore       bool
	RedactionPlaceholder string
}

// defaultPatterns are static regular expressions only — no learned
// heuristics, so behavior stays auditable (spec.md §4.11).
var defaultPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(?:\d[ -]*?){13,16}\b`),      // credit-card-like digit groups
	regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),         // SSN-like
	regexp.MustCompile(`\b[\w.+-]+@[\w-]+\.[\w.-]+\b`), // email, optional
}

// DefaultPolicy returns spec.md §4.11's defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxTurns:             500,
		MaxAgeDays:           90,
		MaxTokensPerTurn:     4000,
		SensitivePatterns:    defaultPatterns,
		RedactOnStore:        true,
		RedactionPlaceholder: "[REDACTED]",
	}
}

// RedactionResult reports what a Redact call changed.
type RedactionResult struct {
	OriginalLength   int
	RedactedLength   int
	RedactionCount   int
	PatternsMatched  []string
}

// DeletionResult reports what an EnforceRetention or Forget* call removed.
type DeletionResult struct {
	TurnsRemoved         int
	ConversationsRemoved int
}

// AuditFunc records MEMORY_DELETE (and redaction) entries.
type AuditFunc func(ctx context.Context, turnID, action, target string, details map[string]interface{})

// Governor enforces Policy against the persistence layer.
type Governor struct {
	db     *storage.DB
	policy Policy
	audit  AuditFunc
}

// New builds a Governor over db using policy.
func New(db *storage.DB, policy Policy, audit AuditFunc) *Governor {
	if audit == nil {
		audit = func(context.Context, string, string, string, map[string]interface{}) {}
	}
	return &Governor{db: db, policy: policy, audit: audit}
}

// Redact scans content for every sensitive pattern and replaces matches
// with the configured placeholder.
func (g *Governor) Redact(ctx context.Context, content, turnID string) (string, RedactionResult) {
	result := RedactionResult{OriginalLength: len(content)}
	redacted := content

	for _, pattern := range g.policy.SensitivePatterns {
		matches := pattern.FindAllString(redacted, -1)
		if len(matches) == 0 {
			continue
		}
		redacted = pattern.ReplaceAllString(redacted, g.policy.RedactionPlaceholder)
		result.RedactionCount += len(matches)
		result.PatternsMatched = append(result.PatternsMatched, pattern.String())
	}
	result.RedactedLength = len(redacted)

	if result.RedactionCount > 0 {
		g.audit(ctx, turnID, "REDACT", "", map[string]interface{}{
			"redaction_count":  result.RedactionCount,
			"patterns_matched": result.PatternsMatched,
		})
	}

	return redacted, result
}

// EnforceRetention deletes turns in conversationID older than MaxAgeDays
// and caps the remaining count at MaxTurns, oldest first.
func (g *Governor) EnforceRetention(ctx context.Context, conversationID, turnID string) (DeletionResult, error) {
	turns, err := g.db.ListTurns(ctx, conversationID)
	if err != nil {
		return DeletionResult{}, fmt.Errorf("memory: enforce retention: list turns: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -g.policy.MaxAgeDays)
	var toDelete []int64
	var kept int

	for _, t := range turns {
		if t.Timestamp.Before(cutoff) {
			toDelete = append(toDelete, t.ID)
			continue
		}
		kept++
	}

	// turns is oldest-first (ListTurns orders ASC); cap the remainder by
	// dropping from the front until at most MaxTurns survive.
	remaining := len(turns) - len(toDelete)
	if g.policy.MaxTurns > 0 && remaining > g.policy.MaxTurns {
		excess := remaining - g.policy.MaxTurns
		for _, t := range turns {
			if excess == 0 {
				break
			}
			if containsID(toDelete, t.ID) {
				continue
			}
			toDelete = append(toDelete, t.ID)
			excess--
		}
	}

	for _, id := range toDelete {
		if err := g.db.DeleteTurn(ctx, id); err != nil {
			return DeletionResult{}, fmt.Errorf("memory: enforce retention: delete turn %d: %w", id, err)
		}
	}

	result := DeletionResult{TurnsRemoved: len(toDelete)}
	if result.TurnsRemoved > 0 {
		g.audit(ctx, turnID, "MEMORY_DELETE", conversationID, map[string]interface{}{
			"turns_removed": result.TurnsRemoved,
			"reason":        "retention",
		})
	}
	return result, nil
}

func containsID(ids []int64, id int64) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// ForgetAll deletes every memory, conversation, and turn — an explicit
// user command, always audited.
func (g *Governor) ForgetAll(ctx context.Context, turnID string) (DeletionResult, error) {
	convs, err := g.db.ListConversations(ctx)
	if err != nil {
		return DeletionResult{}, fmt.Errorf("memory: forget all: list conversations: %w", err)
	}
	for _, c := range convs {
		if err := g.db.DeleteConversation(ctx, c.ID); err != nil {
			return DeletionResult{}, fmt.Errorf("memory: forget all: delete conversation %s: %w", c.ID, err)
		}
	}
	if err := g.db.DeleteAllMemories(ctx); err != nil {
		return DeletionResult{}, fmt.Errorf("memory: forget all: delete memories: %w", err)
	}

	result := DeletionResult{ConversationsRemoved: len(convs)}
	g.audit(ctx, turnID, "MEMORY_DELETE", "*", map[string]interface{}{
		"conversations_removed": result.ConversationsRemoved,
		"reason":                "forget_all",
	})
	return result, nil
}

// ForgetConversation deletes a single conversation (and, via cascade, its
// turns) — an explicit user command, always audited.
func (g *Governor) ForgetConversation(ctx context.Context, conversationID, turnID string) (DeletionResult, error) {
	if err := g.db.DeleteConversation(ctx, conversationID); err != nil {
		return DeletionResult{}, fmt.Errorf("memory: forget conversation %s: %w", conversationID, err)
	}
	result := DeletionResult{ConversationsRemoved: 1}
	g.audit(ctx, turnID, "MEMORY_DELETE", conversationID, map[string]interface{}{
		"reason": "forget_conversation",
	})
	return result, nil
}

// Summary is get_memory_summary()'s return shape.
type Summary struct {
	ConversationCount int
	MemoryCount       int
}

// GetMemorySummary reports the current size of persisted memory.
func (g *Governor) GetMemorySummary(ctx context.Context) (Summary, error) {
	convs, err := g.db.ListConversations(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("memory: get summary: list conversations: %w", err)
	}
	mems, err := g.db.ListMemories(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("memory: get summary: list memories: %w", err)
	}
	return Summary{ConversationCount: len(convs), MemoryCount: len(mems)}, nil
}
