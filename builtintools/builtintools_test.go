package builtintools

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nova-labs/jarviscore/tool"
)

func TestRegisterAddsBothBuiltinTools(t *testing.T) {
	reg := tool.NewRegistry()

	require.NoError(t, Register(reg))

	_, ok := reg.Get("get_current_time")
	assert.True(t, ok)
	_, ok = reg.Get("open_application")
	assert.True(t, ok)
}

func TestRegisterRejectsOnDuplicateRegistration(t *testing.T) {
	reg := tool.NewRegistry()
	require.NoError(t, Register(reg))
	assert.Error(t, Register(reg))
}

func TestGetCurrentTimeToolReturnsTwelveHourClockString(t *testing.T) {
	tl := getCurrentTimeTool()
	assert.Equal(t, tool.PermissionRead, tl.PermissionLevel)
	assert.False(t, tl.RequiresConfirmation)

	result, err := tl.Exec(nil)
	require.NoError(t, err)
	text, ok := result.(string)
	require.True(t, ok)
	assert.Regexp(t, regexp.MustCompile(`^\d{1,2}:\d{2} (AM|PM)$`), text)
}

func TestOpenApplicationToolRequiresConfirmationAndExecutePermission(t *testing.T) {
	tl := openApplicationTool()
	assert.Equal(t, tool.PermissionExecute, tl.PermissionLevel)
	assert.True(t, tl.RequiresConfirmation)
	require.Len(t, tl.ParameterSchema, 1)
	assert.Equal(t, "app_name", tl.ParameterSchema[0].Name)
	assert.True(t, tl.ParameterSchema[0].Required)
}
