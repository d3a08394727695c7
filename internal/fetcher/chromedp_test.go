package fetcher

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/pricetracker/internal/config"
)

func chromeBinary() string {
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return ""
}

// Requires a local Chrome or Chromium; skipped otherwise.
func TestChromedpSessionScreenshotAndEvaluate(t *testing.T) {
	bin := chromeBinary()
	if bin == "" {
		t.Skip("Chrome is not available, skipping test")
	}
	cfg := config.DefaultConfig().Browser
	cfg.BinPath = bin
	cp := NewChromedpProvider(cfg, testLogger)
	defer cp.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sess, err := cp.Load(ctx, "data:text/html,<html><body><p>₹12,499</p></body></html>", LoadOptions{Timeout: 20 * time.Second})
	require.NoError(t, err)
	defer sess.Close()

	state, err := sess.Evaluate(`() => document.readyState`)
	require.NoError(t, err)
	assert.Equal(t, "complete", state)

	path := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, sess.Screenshot(path))
	img, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, []byte("\x89PNG\r\n\x1a\n")), "screenshot must be PNG encoded")
}
