package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"DB", "DEDUP_WINDOW", "NOTIFY_DEBOUNCE", "UPLOAD_INTERVAL", "STUDIO_URL", "UTLS", "HEADLESS", "HOST", "PORT", "SSE_API_KEY"} {
		t.Setenv(envPrefix+k, "")
	}

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "emoji-bridge.db", cfg.DBPath)
	assert.Equal(t, 5*time.Second, cfg.DedupWindow)
	assert.Equal(t, 10*time.Second, cfg.NotifyDebounce)
	assert.Equal(t, 30*time.Second, cfg.PendingTTL)
	assert.Equal(t, 500*time.Millisecond, cfg.UploadInterval)
	assert.Equal(t, 24*time.Hour, cfg.AutoSync)
	assert.Equal(t, DefaultStudioURL, cfg.StudioURL)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, "13080", cfg.Port)
	assert.Empty(t, cfg.SSEAPIKey)
	assert.True(t, cfg.Fingerprint)
	assert.False(t, cfg.Headless)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("EMOJI_BRIDGE_DEDUP_WINDOW", "2s")
	t.Setenv("EMOJI_BRIDGE_NOTIFY_DEBOUNCE", "1m")
	t.Setenv("EMOJI_BRIDGE_STUDIO_URL", "http://localhost:3000/")
	t.Setenv("EMOJI_BRIDGE_UTLS", "false")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.DedupWindow)
	assert.Equal(t, time.Minute, cfg.NotifyDebounce)
	assert.Equal(t, "http://localhost:3000", cfg.StudioURL)
	assert.False(t, cfg.Fingerprint)
}

func TestFromEnvRejectsInvalid(t *testing.T) {
	t.Run("upload interval below floor", func(t *testing.T) {
		t.Setenv("EMOJI_BRIDGE_UPLOAD_INTERVAL", "100ms")
		_, err := FromEnv()
		require.Error(t, err)
	})

	t.Run("garbage duration", func(t *testing.T) {
		t.Setenv("EMOJI_BRIDGE_DEDUP_WINDOW", "soon")
		_, err := FromEnv()
		require.Error(t, err)
	})

	t.Run("garbage bool", func(t *testing.T) {
		t.Setenv("EMOJI_BRIDGE_HEADLESS", "maybe")
		_, err := FromEnv()
		require.Error(t, err)
	})
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("EMOJI_BRIDGE_DB="+filepath.Join(dir, "x.db")+"\n"), 0o600))
	t.Setenv("EMOJI_BRIDGE_DB", "")
	os.Unsetenv("EMOJI_BRIDGE_DB")

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "x.db"), cfg.DBPath)
}

func TestLoadMissingFileIsFine(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
}
