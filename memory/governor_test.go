package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nova-labs/jarviscore/storage"
)

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(context.Background(), storage.Config{Path: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func recordingAudit() (AuditFunc, *[]string) {
	events := []string{}
	return func(ctx context.Context, turnID, action, target string, details map[string]interface{}) {
		events = append(events, action+":"+target)
	}, &events
}

func TestRedactReplacesEmailAndSSN(t *testing.T) {
	g := New(openTestDB(t), DefaultPolicy(), nil)
	redacted, result := g.Redact(context.Background(), "contact me at a@b.com, ssn 123-45-6789", "turn-1")

	assert.NotContains(t, redacted, "a@b.com")
	assert.NotContains(t, redacted, "123-45-6789")
	assert.Equal(t, 2, result.RedactionCount)
}

func TestRedactNoMatchLeavesContentUnchanged(t *testing.T) {
	g := New(openTestDB(t), DefaultPolicy(), nil)
	redacted, result := g.Redact(context.Background(), "nothing sensitive here", "turn-1")

	assert.Equal(t, "nothing sensitive here", redacted)
	assert.Equal(t, 0, result.RedactionCount)
}

func TestRedactAuditsOnlyWhenSomethingMatched(t *testing.T) {
	audit, events := recordingAudit()
	g := New(openTestDB(t), DefaultPolicy(), audit)

	g.Redact(context.Background(), "no match", "turn-1")
	assert.Empty(t, *events)

	g.Redact(context.Background(), "a@b.com", "turn-1")
	assert.Contains(t, *events, "REDACT:")
}

func TestEnforceRetentionRemovesTurnsOlderThanMaxAge(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.CreateConversation(ctx, "conv-1", nil))
	require.NoError(t, db.AppendTurn(ctx, storage.Turn{
		ConversationID: "conv-1", TurnID: "old", Role: storage.RoleUser, Content: "old",
		Timestamp: time.Now().AddDate(0, 0, -100),
	}))
	require.NoError(t, db.AppendTurn(ctx, storage.Turn{
		ConversationID: "conv-1", TurnID: "new", Role: storage.RoleUser, Content: "new",
		Timestamp: time.Now(),
	}))

	policy := DefaultPolicy()
	policy.MaxAgeDays = 90
	g := New(db, policy, nil)

	result, err := g.EnforceRetention(ctx, "conv-1", "turn-x")
	require.NoError(t, err)
	assert.Equal(t, 1, result.TurnsRemoved)

	turns, err := db.ListTurns(ctx, "conv-1")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "new", turns[0].TurnID)
}

func TestEnforceRetentionCapsAtMaxTurns(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.CreateConversation(ctx, "conv-1", nil))
	for i := 0; i < 5; i++ {
		require.NoError(t, db.AppendTurn(ctx, storage.Turn{
			ConversationID: "conv-1", TurnID: "t", Role: storage.RoleUser, Content: "x",
			Timestamp: time.Now().Add(time.Duration(i) * time.Minute),
		}))
	}

	policy := DefaultPolicy()
	policy.MaxAgeDays = 9999
	policy.MaxTurns = 2
	g := New(db, policy, nil)

	result, err := g.EnforceRetention(ctx, "conv-1", "turn-x")
	require.NoError(t, err)
	assert.Equal(t, 3, result.TurnsRemoved)

	turns, err := db.ListTurns(ctx, "conv-1")
	require.NoError(t, err)
	assert.Len(t, turns, 2)
}

func TestEnforceRetentionAuditsOnlyWhenSomethingRemoved(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.CreateConversation(ctx, "conv-1", nil))

	audit, events := recordingAudit()
	policy := DefaultPolicy()
	g := New(db, policy, audit)

	_, err := g.EnforceRetention(ctx, "conv-1", "turn-x")
	require.NoError(t, err)
	assert.Empty(t, *events)
}

func TestForgetAllRemovesEverything(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.CreateConversation(ctx, "conv-1", nil))
	require.NoError(t, db.UpsertMemory(ctx, "wake_word", "jarvis", nil))

	audit, events := recordingAudit()
	g := New(db, DefaultPolicy(), audit)

	result, err := g.ForgetAll(ctx, "turn-x")
	require.NoError(t, err)
	assert.Equal(t, 1, result.ConversationsRemoved)

	convs, err := db.ListConversations(ctx)
	require.NoError(t, err)
	assert.Empty(t, convs)

	mems, err := db.ListMemories(ctx)
	require.NoError(t, err)
	assert.Empty(t, mems)

	assert.Contains(t, *events, "MEMORY_DELETE:*")
}

func TestForgetConversationRemovesOnlyThatConversation(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.CreateConversation(ctx, "conv-1", nil))
	require.NoError(t, db.CreateConversation(ctx, "conv-2", nil))

	g := New(db, DefaultPolicy(), nil)
	_, err := g.ForgetConversation(ctx, "conv-1", "turn-x")
	require.NoError(t, err)

	convs, err := db.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "conv-2", convs[0].ID)
}

func TestGetMemorySummaryCountsConversationsAndMemories(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.CreateConversation(ctx, "conv-1", nil))
	require.NoError(t, db.UpsertMemory(ctx, "a", "1", nil))
	require.NoError(t, db.UpsertMemory(ctx, "b", "2", nil))

	g := New(db, DefaultPolicy(), nil)
	summary, err := g.GetMemorySummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ConversationCount)
	assert.Equal(t, 2, summary.MemoryCount)
}
