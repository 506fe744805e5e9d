package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nova-labs/jarviscore/turnctx"
)

func TestJSONLoggerWritesOneLinePerEntry(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLoggerTo(&buf)

	logger.Info("hello", map[string]interface{}{"x": 1})
	logger.Error("oops", nil)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &first))
	assert.Equal(t, "info", first["level"])
	assert.Equal(t, "hello", first["msg"])
	assert.Equal(t, float64(1), first["x"])
}

func TestJSONLoggerWithComponentTagsEntries(t *testing.T) {
	var buf bytes.Buffer
	base := NewJSONLoggerTo(&buf)
	scoped := base.WithComponent("core/executor")

	scoped.Info("started", nil)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "core/executor", entry["component"])
}

func TestJSONLoggerWithContextIncludesTurnID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLoggerTo(&buf)
	ctx := turnctx.With(context.Background(), "turn-1")

	logger.InfoWithContext(ctx, "processing", nil)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "turn-1", entry["turn_id"])
}

func TestNoOpLoggerDoesNotPanic(t *testing.T) {
	var l Logger = NoOpLogger{}
	l.Info("x", nil)
	l.Error("x", nil)
	l.Warn("x", nil)
	l.Debug("x", nil)
	l.InfoWithContext(context.Background(), "x", nil)
}
