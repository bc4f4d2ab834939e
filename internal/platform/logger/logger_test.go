package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelInfo, Format: "json", Output: &buf})

	log.Debug("hidden")
	log.Info("recommendation completed", "restaurants", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "recommendation completed", entry["msg"])
	assert.Equal(t, "cureat", entry["service"])
	assert.EqualValues(t, 3, entry["restaurants"])
	assert.Same(t, log, slog.Default())
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelDebug, Format: "text", Output: &buf})

	log.Debug("embedding cache hit")
	assert.Contains(t, buf.String(), "msg=\"embedding cache hit\"")
	assert.Contains(t, buf.String(), "service=cureat")
}
