package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&buf, "debug", "json", "session-api", "test")
	require.NoError(t, err)

	log.Info().Str("conversation_id", "conv_1").Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "session-api", entry["service"])
	assert.Equal(t, "test", entry["environment"])
	assert.Equal(t, "conv_1", entry["conversation_id"])
	assert.Equal(t, "hello", entry["message"])
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := NewWithWriter(&bytes.Buffer{}, "loud", "json", "s", "e")
	assert.Error(t, err)

	_, err = NewWithWriter(&bytes.Buffer{}, "info", "xml", "s", "e")
	assert.Error(t, err)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&buf, "warn", "json", "s", "e")
	require.NoError(t, err)

	log.Info().Msg("dropped")
	assert.Zero(t, buf.Len())

	log.Warn().Msg("kept")
	assert.NotZero(t, buf.Len())
	assert.Equal(t, log.GetLevel(), GetLogger().GetLevel())
}
