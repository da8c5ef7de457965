package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	entry := map[string]any{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
	return entry
}

func TestContextFieldsFollowEntries(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Output: buf, Format: FormatJSON})

	ctx := log.WithRequestID(context.Background(), "req-123")
	ctx = log.WithTenantID(ctx, "tenant-1")
	ctx = log.WithFields(ctx, map[string]any{"order_id": "o-9", "status": "Ready"})
	log.Error(ctx, "status change failed", errors.New("conflict"))

	entry := decode(t, buf)
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "tenant-1", entry["tenant_id"])
	assert.Equal(t, "o-9", entry["order_id"])
	assert.Equal(t, "conflict", entry["error"])
	assert.Equal(t, "api", entry["service"])
	assert.Contains(t, entry, "stack")
}

func TestFieldsDoNotLeakToParentContext(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Output: buf, Format: FormatJSON})

	parent := log.WithField(context.Background(), "tenant_id", "t-1")
	_ = log.WithField(parent, "order_id", "o-1")
	log.Info(parent, "parent")

	entry := decode(t, buf)
	assert.NotContains(t, entry, "order_id")
}

func TestWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{Output: buf, WarnStack: true, Format: FormatJSON}).Warn(context.Background(), "w")
	assert.Contains(t, buf.String(), `"stack"`)

	buf.Reset()
	New(Options{Output: buf, Format: FormatJSON}).Warn(context.Background(), "w")
	assert.NotContains(t, buf.String(), `"stack"`)
}

func TestLevelFiltersDebug(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{Level: zerolog.InfoLevel, Output: buf, Format: FormatJSON}).Debug(context.Background(), "hidden")
	assert.Zero(t, buf.Len())
}

func TestConsoleFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{ServiceName: "api", Output: buf, Format: FormatConsole}).Info(context.Background(), "hello")
	assert.Contains(t, buf.String(), "hello")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())), "console output is not json")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" WARN "))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
}
