package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// JSONLogger writes one JSON object per line to an io.Writer (stdout by
// default). It is the production implementation; NoOpLogger is used where
// log output is not wanted (most unit tests).
type JSONLogger struct {
	mu        sync.Mutex
	out       io.Writer
	component string
}

// NewJSONLogger returns a JSONLogger writing to stdout.
func NewJSONLogger() *JSONLogger {
	return &JSONLogger{out: os.Stdout}
}

// NewJSONLoggerTo returns a JSONLogger writing to an arbitrary writer, for
// tests that want to capture and assert on log output.
func NewJSONLoggerTo(w io.Writer) *JSONLogger {
	return &JSONLogger{out: w}
}

// WithComponent returns a logger that tags every entry with component, e.g.
// "core/authority", "core/executor" — mirrors the teacher's component
// naming convention so log aggregation can filter by layer.
func (l *JSONLogger) WithComponent(component string) Logger {
	return &JSONLogger{out: l.out, component: component}
}

func (l *JSONLogger) write(level, msg string, fields map[string]interface{}) {
	entry := make(map[string]interface{}, len(fields)+4)
	for k, v := range fields {
		entry[k] = v
	}
	entry["level"] = level
	entry["msg"] = msg
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)
	if l.component != "" {
		entry["component"] = l.component
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	enc := json.NewEncoder(l.out)
	if err := enc.Encode(entry); err != nil {
		// Logging must never panic the caller; fall back to a plain line.
		fmt.Fprintf(l.out, "%s %s log_encode_error=%v\n", level, msg, err)
	}
}

func (l *JSONLogger) Info(msg string, fields map[string]interface{})  { l.write("info", msg, fields) }
func (l *JSONLogger) Error(msg string, fields map[string]interface{}) { l.write("error", msg, fields) }
func (l *JSONLogger) Warn(msg string, fields map[string]interface{})  { l.write("warn", msg, fields) }
func (l *JSONLogger) Debug(msg string, fields map[string]interface{}) { l.write("debug", msg, fields) }

func (l *JSONLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.write("info", msg, withTurnID(ctx, fields))
}
func (l *JSONLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.write("error", msg, withTurnID(ctx, fields))
}
func (l *JSONLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.write("warn", msg, withTurnID(ctx, fields))
}
func (l *JSONLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.write("debug", msg, withTurnID(ctx, fields))
}
