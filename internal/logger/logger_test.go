package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesServiceField(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("quiz-engine", "debug", &buf)

	log.WithField("quiz_id", "1").Debug("opened")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "quiz-engine", line["service"])
	assert.Equal(t, "1", line["quiz_id"])
	assert.Equal(t, "opened", line["message"])
	assert.Equal(t, "debug", line["level"])
}

func TestLoggerFallsBackToInfo(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	var buf bytes.Buffer
	log := NewWithOutput("quiz-engine", "nonsense", &buf)

	log.Debug("hidden")
	assert.Empty(t, buf.String())
}
