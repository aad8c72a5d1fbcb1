package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "http://localhost:4000", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, 0.8, cfg.Tracker.AniList.SyncThreshold)
	assert.Equal(t, 5*time.Second, cfg.Player.SeekStep)
	assert.Equal(t, 0.1, cfg.Player.VolumeStep)
	assert.Equal(t, int64(2*1024*1024), cfg.Proxy.InitialChunk)
	assert.Equal(t, "database", cfg.Tracker.AniList.TokenStore)
	require.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	t.Run("reads file over defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := []byte("api:\n  base_url: http://backend:9000\ntracker:\n  anilist:\n    sync_threshold: 0.9\n")
		require.NoError(t, os.WriteFile(path, content, 0644))

		cfg, v, err := Load(path)
		require.NoError(t, err)
		require.NotNil(t, v)

		assert.Equal(t, "http://backend:9000", cfg.API.BaseURL)
		assert.Equal(t, 0.9, cfg.Tracker.AniList.SyncThreshold)
		assert.Equal(t, "text", cfg.Logging.Format)
	})

	t.Run("env overrides", func(t *testing.T) {
		t.Setenv("YORU_API_BASE_URL", "http://env:1234")
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0644))

		cfg, _, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "http://env:1234", cfg.API.BaseURL)
	})

	t.Run("rejects bad threshold", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("tracker:\n  anilist:\n    sync_threshold: 1.5\n"), 0644))

		_, _, err := Load(path)
		assert.Error(t, err)
	})
}

func TestProxyBase(t *testing.T) {
	cfg := Default()
	assert.Equal(t, cfg.API.BaseURL, cfg.ProxyBase())

	cfg.Proxy.PublicURL = "http://public"
	assert.Equal(t, "http://public", cfg.ProxyBase())
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), in)
	}
}

func TestLevelColorHandler(t *testing.T) {
	var buf bytes.Buffer
	h := NewLevelColorHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, h.Enabled(context.Background(), slog.LevelWarn))

	logger := slog.New(h).With("session", "abc")
	logger.Info("sources resolved", "count", 3)

	out := buf.String()
	assert.Contains(t, out, "sources resolved")
	assert.Contains(t, out, "session=abc")
	assert.Contains(t, out, "count=3")
}

func TestSaveDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, SaveDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "base_url: http://localhost:4000")
	assert.Contains(t, string(data), "seek_step: 5s")

	cfg, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	assert.Error(t, SaveDefaultConfig(path), "existing file is kept")
}
