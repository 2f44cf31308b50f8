package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("APP_ENV", "test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "file", cfg.Database.Driver)
	assert.Equal(t, "data/discordlite.yaml", cfg.Database.File.Path)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Security.Linking.CodeTTL)
	assert.Equal(t, time.Minute, cfg.Security.Challenge.Timeout)
	assert.Equal(t, 3, cfg.Security.Ban.FailedAttemptLimit)
	assert.Equal(t, 80, cfg.Security.Risk.CriticalThreshold)
	assert.Equal(t, 12*time.Hour, cfg.Admin.TokenTTL)
}

func TestLoadFromFile(t *testing.T) {
	viper.Reset()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
database:
  driver: redis
  redis:
    addr: redis.internal:6379
security:
  challenge:
    timeout: 90s
`), 0o644))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Database.Driver)
	assert.Equal(t, "redis.internal:6379", cfg.Database.Redis.Addr)
	assert.Equal(t, 90*time.Second, cfg.Security.Challenge.Timeout)
	// Everything the file omits falls back to defaults.
	assert.Equal(t, time.Hour, cfg.Security.Risk.Window)
}

func TestLoadEnvOverride(t *testing.T) {
	viper.Reset()
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("APP_ENV", "test")
	t.Setenv("DISCORDLITE_SERVER_PORT", "7070")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}
