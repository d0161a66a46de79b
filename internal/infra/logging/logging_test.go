package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"asyncsql/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWith_AttachesContextIDs(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter(config.LogConfig{Level: "debug", Format: "json"}, false, &buf)

	ctx := WithTaskID(context.Background(), 42)
	ctx = WithConnID(ctx, 3)
	With(ctx, base).Info().Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.EqualValues(t, 42, line["task_id"])
	assert.EqualValues(t, 3, line["conn_id"])
	assert.Equal(t, "hello", line["message"])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(config.LogConfig{Level: "warn", Format: "json"}, false, &buf)
	l.Info().Msg("dropped")
	assert.Zero(t, buf.Len())
	l.Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	l := Component(NewWithWriter(config.LogConfig{Format: "json"}, false, &buf), "dispatcher")
	l.Info().Msg("x")
	assert.Contains(t, buf.String(), `"component":"dispatcher"`)
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "SELECT 1", Redact("SELECT 1", true))
	assert.Equal(t, "***", Redact("SELECT 1", false))
	assert.Equal(t, "SELE...1;", Redact("SELECT 11;", false))
	long := "SELECT * FROM players WHERE name = 'someone'"
	got := Redact(long, false)
	assert.Less(t, len(got), len(long))
	assert.Equal(t, long[:24], got[:24])
}

func TestRedact_KeepsUTF8Valid(t *testing.T) {
	short := "SELECT 'ÿÿÿ'"
	got := Redact(short, false)
	assert.True(t, utf8.ValidString(got), got)
	assert.Equal(t, "SELE...'", got)

	long := "SELECT name" + strings.Repeat("é", 17) + " FROM x"
	got = Redact(long, false)
	assert.True(t, utf8.ValidString(got), got)
	assert.Equal(t, "SELECT name"+strings.Repeat("é", 6)+"...OM x", got)
}
