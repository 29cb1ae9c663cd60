package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 500, cfg.SnapshotInterval)
	assert.Equal(t, []string{"localhost:5173", "localhost:3000"}, cfg.OriginPatterns())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ALLOWED_ORIGINS", "https://board.example.com,*.example.org")
	t.Setenv("MDNS_ENABLED", "true")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.True(t, cfg.MDNSEnabled)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, []string{"board.example.com", "*.example.org"}, cfg.OriginPatterns())
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("LOG_LEVEL", "loud")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadClient(t *testing.T) {
	t.Setenv("SYNC_THROTTLE", "40ms")
	cfg, err := LoadClient()
	require.NoError(t, err)
	assert.Equal(t, 40*time.Millisecond, cfg.SyncThrottle)
	assert.Equal(t, 500*time.Millisecond, cfg.UndoCaptureTimeout)
	assert.Equal(t, "inkdrift.db", cfg.OfflineDBPath)
}
