package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level Level, format Format) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, Level: level, Format: format})
	return l, &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestLogger_JSONLine(t *testing.T) {
	l, buf := newBufferLogger(LevelDebug, FormatJSON)
	l.Info("record updated", GuildID(1), MemberID(42), XPAmount(20))

	out := decodeLine(t, buf)
	assert.Equal(t, "INFO", out["level"])
	assert.Equal(t, "record updated", out["message"])

	fields, ok := out["fields"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), fields["guild_id"])
	assert.Equal(t, float64(42), fields["member_id"])
	assert.Equal(t, float64(20), fields["xp_amount"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(LevelWarn, FormatJSON)

	l.Debug("dropped")
	l.Info("dropped")
	assert.Zero(t, buf.Len())

	l.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestLogger_WithBindsFields(t *testing.T) {
	l, buf := newBufferLogger(LevelInfo, FormatJSON)
	bound := l.With(Component("progression"), GuildID(7))

	bound.Info("level up", LevelValue(3))

	fields := decodeLine(t, buf)["fields"].(map[string]any)
	assert.Equal(t, "progression", fields["component"])
	assert.Equal(t, float64(7), fields["guild_id"])
	assert.Equal(t, float64(3), fields["level"])

	// The parent logger is unaffected.
	buf.Reset()
	l.Info("plain")
	_, hasFields := decodeLine(t, buf)["fields"]
	assert.False(t, hasFields)
}

func TestLogger_CallSiteFieldOverridesBound(t *testing.T) {
	l, buf := newBufferLogger(LevelInfo, FormatJSON)
	bound := l.With(GuildID(1))

	bound.Info("msg", GuildID(2))

	fields := decodeLine(t, buf)["fields"].(map[string]any)
	assert.Equal(t, float64(2), fields["guild_id"])
}

func TestLogger_TextFormat(t *testing.T) {
	l, buf := newBufferLogger(LevelInfo, FormatText)
	l.Info("cooldown changed", Int("rate", 2))

	line := buf.String()
	assert.Contains(t, line, "[INFO] cooldown changed")
	assert.Contains(t, line, "rate=2")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestLogger_WithLevel(t *testing.T) {
	l, buf := newBufferLogger(LevelError, FormatJSON)
	verbose := l.WithLevel(LevelDebug)

	verbose.Debug("visible")
	assert.Contains(t, buf.String(), "visible")

	buf.Reset()
	l.Debug("hidden")
	assert.Zero(t, buf.Len())
}

func TestErrField(t *testing.T) {
	assert.Equal(t, "boom", Err(errors.New("boom")).Value)
	assert.Nil(t, Err(nil).Value)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" WARNING "))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatText, ParseFormat("text"))
	assert.Equal(t, FormatJSON, ParseFormat("json"))
	assert.Equal(t, FormatJSON, ParseFormat(""))
}

func TestDurationAndTimeFields(t *testing.T) {
	assert.Equal(t, "1m30s", Duration("d", 90*time.Second).Value)

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-06-01T12:00:00Z", Time("t", ts).Value)
}
