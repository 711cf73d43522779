package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.name)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.name)
	}

	_, err := ParseLevel("trace")
	assert.Error(t, err)
}

func TestInit_JSONLevelFilter(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	logger, closer, err := Init(Options{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)
	defer closer.Close()

	logger.Info("dropped")
	logger.Warn("kept", "offset", 7)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "kept", record["msg"])
	assert.Equal(t, float64(7), record["offset"])
	assert.Same(t, logger, slog.Default())
}

func TestInit_File(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	path := filepath.Join(t.TempDir(), "logs", "e2e.log")
	var buf bytes.Buffer
	logger, closer, err := Init(Options{Level: "debug", Format: "text", File: path}, &buf)
	require.NoError(t, err)

	logger.Debug("to both", "message_id", "M1")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "message_id=M1")
	assert.Contains(t, buf.String(), "message_id=M1")
}

func TestInit_Errors(t *testing.T) {
	_, _, err := Init(Options{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)

	_, _, err = Init(Options{Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
}
