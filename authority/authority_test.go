package authority

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nova-labs/jarviscore/tool"
)

func recordingAudit() (AuditFunc, *[]string) {
	var events []string
	return func(ctx context.Context, turnID, action, target string, details map[string]interface{}) {
		events = append(events, action+":"+target)
	}, &events
}

func TestCheckDeniedWithNoGrant(t *testing.T) {
	audit, _ := recordingAudit()
	a := New(nil, nil, audit)

	d := a.Check(context.Background(), "delete_file", tool.PermissionWrite, "turn-1")
	assert.Equal(t, DeniedNoGrant, d.Status)
}

func TestCheckGrantedByWildcardDefault(t *testing.T) {
	audit, _ := recordingAudit()
	a := New([]*Grant{{Target: "*", Level: tool.PermissionRead, Source: SourceDefault}}, nil, audit)

	d := a.Check(context.Background(), "get_current_time", tool.PermissionRead, "turn-1")
	assert.Equal(t, Granted, d.Status)
}

func TestCheckRequiresConfirmationForDefaultGrantAtConfirmLevel(t *testing.T) {
	audit, _ := recordingAudit()
	a := New(
		[]*Grant{{Target: "*", Level: tool.PermissionExecute, Source: SourceDefault}},
		[]tool.PermissionLevel{tool.PermissionExecute},
		audit,
	)

	d := a.Check(context.Background(), "open_application", tool.PermissionExecute, "turn-1")
	assert.Equal(t, RequiresConfirm, d.Status)
}

func TestCheckSessionGrantBypassesConfirmation(t *testing.T) {
	audit, _ := recordingAudit()
	a := New(nil, []tool.PermissionLevel{tool.PermissionExecute}, audit)
	a.Grant(context.Background(), "turn-1", "open_application", tool.PermissionExecute, nil, false, SourceSession)

	d := a.Check(context.Background(), "open_application", tool.PermissionExecute, "turn-1")
	assert.Equal(t, Granted, d.Status)
}

func TestCheckDeniedWhenExpired(t *testing.T) {
	audit, _ := recordingAudit()
	a := New(nil, nil, audit)
	past := -time.Hour
	a.Grant(context.Background(), "turn-1", "open_application", tool.PermissionExecute, &past, false, SourceSession)

	d := a.Check(context.Background(), "open_application", tool.PermissionExecute, "turn-1")
	assert.Equal(t, DeniedExpired, d.Status)
}

func TestCheckDeniedWhenRevoked(t *testing.T) {
	audit, _ := recordingAudit()
	a := New(nil, nil, audit)
	a.Grant(context.Background(), "turn-1", "open_application", tool.PermissionExecute, nil, false, SourceSession)
	a.Revoke(context.Background(), "turn-1", "open_application")

	d := a.Check(context.Background(), "open_application", tool.PermissionExecute, "turn-1")
	assert.Equal(t, DeniedRevoked, d.Status)
}

func TestCheckDeniedOnLevelMismatch(t *testing.T) {
	audit, _ := recordingAudit()
	a := New(nil, nil, audit)
	a.Grant(context.Background(), "turn-1", "open_application", tool.PermissionExecute, nil, false, SourceSession)

	d := a.Check(context.Background(), "open_application", tool.PermissionRead, "turn-1")
	assert.Equal(t, DeniedLevelMismatch, d.Status)
}

func TestOneTimeGrantRevokedAfterSuccessfulUse(t *testing.T) {
	audit, _ := recordingAudit()
	a := New(nil, nil, audit)
	a.Grant(context.Background(), "turn-1", "open_application", tool.PermissionExecute, nil, true, SourceSession)

	d1 := a.Check(context.Background(), "open_application", tool.PermissionExecute, "turn-1")
	require.Equal(t, Granted, d1.Status)

	d2 := a.Check(context.Background(), "open_application", tool.PermissionExecute, "turn-1")
	assert.Equal(t, DeniedRevoked, d2.Status)
}

func TestClearSessionGrantsRemovesSessionButNotDefault(t *testing.T) {
	audit, _ := recordingAudit()
	a := New([]*Grant{{Target: "*", Level: tool.PermissionRead, Source: SourceDefault}}, nil, audit)
	a.Grant(context.Background(), "turn-1", "thermostat", tool.PermissionWrite, nil, false, SourceSession)

	a.ClearSessionGrants()

	d := a.Check(context.Background(), "thermostat", tool.PermissionWrite, "turn-1")
	assert.Equal(t, DeniedNoGrant, d.Status)

	d2 := a.Check(context.Background(), "get_current_time", tool.PermissionRead, "turn-1")
	assert.Equal(t, Granted, d2.Status)
}

func TestEveryCheckCallsAudit(t *testing.T) {
	audit, events := recordingAudit()
	a := New(nil, nil, audit)

	a.Check(context.Background(), "thermostat", tool.PermissionWrite, "turn-1")
	require.Len(t, *events, 1)
	assert.Equal(t, "AUTHORITY_CHECK:thermostat", (*events)[0])
}

func TestListGrantsExcludesRevokedByDefault(t *testing.T) {
	audit, _ := recordingAudit()
	a := New(nil, nil, audit)
	a.Grant(context.Background(), "turn-1", "a", tool.PermissionRead, nil, false, SourceSession)
	a.Revoke(context.Background(), "turn-1", "a")
	a.Grant(context.Background(), "turn-1", "b", tool.PermissionRead, nil, false, SourceSession)

	assert.Len(t, a.ListGrants(false), 1)
	assert.Len(t, a.ListGrants(true), 2)
}
