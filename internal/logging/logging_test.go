package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/pricetracker/internal/config"
)

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	logger, flush, err := New(config.LoggingConfig{Level: "info", Format: "json", Output: path}, false)
	require.NoError(t, err)

	logger.With("component", "engine").Info("scrape finished", "product_id", "7", "price", 12499.0)
	logger.Debug("hidden at info level")
	flush()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "scrape finished", entry["msg"])
	assert.Equal(t, "engine", entry["component"])
	assert.Equal(t, "7", entry["product_id"])
}

func TestVerboseForcesDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	logger, flush, err := New(config.LoggingConfig{Level: "error", Format: "text", Output: path}, true)
	require.NoError(t, err)
	logger.Debug("tier attempt", "tier", "A")
	flush()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "tier attempt")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, _, err := New(config.LoggingConfig{Level: "loud"}, false)
	assert.Error(t, err)
}
