package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_WritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "graphrag.log")
	log, err := New(Config{File: path, Level: "debug"})
	require.NoError(t, err)

	log.Named("query").Info("query submitted", zap.Uint64("generation", 3))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "query submitted", entry["message"])
	assert.Equal(t, "query", entry["logger"])
	assert.EqualValues(t, 3, entry["generation"])
	assert.Contains(t, entry, "timestamp")
}

func TestNew_LevelFilter(t *testing.T) {
	var console bytes.Buffer
	log, err := New(Config{Level: "warn", Console: &console})
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("shown")
	_ = log.Sync()

	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "shown")
}

func TestNew_NoOutputs(t *testing.T) {
	log, err := New(Config{})
	require.NoError(t, err)
	assert.NotNil(t, log)
	log.Info("dropped")
}
