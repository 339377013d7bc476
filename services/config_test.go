package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigWithDefaults(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "mongo", config.Database.Driver)
	assert.Equal(t, 1000, config.Usernames.MaxAttempts)
	assert.Equal(t, 3, config.Usernames.CreateRetries)
	assert.Contains(t, config.Usernames.Reserved, "admin")
	assert.Equal(t, 2048, config.Media.MaxWidth)
	assert.Equal(t, 24*time.Hour, config.Auth.TokenTTL)
}

func TestLoadConfigFromFile(t *testing.T) {
	configData := `
database:
  driver: postgres
usernames:
  reserved: [staff, billing]
  max_attempts: 50
media:
  max_width: 1024
log:
  level: debug
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(configData), 0o600))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", config.Database.Driver)
	assert.Equal(t, []string{"staff", "billing"}, config.Usernames.Reserved)
	assert.Equal(t, 50, config.Usernames.MaxAttempts)
	assert.Equal(t, 1024, config.Media.MaxWidth)
	assert.Equal(t, "debug", config.Log.Level)
	// untouched sections keep defaults
	assert.Equal(t, 512, config.Media.AvatarSize)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("USERNAMES_RESERVED", "ops,help")
	t.Setenv("JWT_TTL", "2h")

	config, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "postgres", config.Database.Driver)
	assert.Equal(t, "localhost:6379", config.Redis.Addr)
	assert.Equal(t, []string{"ops", "help"}, config.Usernames.Reserved)
	assert.Equal(t, 2*time.Hour, config.Auth.TokenTTL)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: [unclosed"), 0o600))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	log := NewLogger(LogConfig{Level: "warn", Format: "text"})
	assert.Equal(t, "warning", log.GetLevel().String())

	log = NewLogger(LogConfig{Level: "nonsense"})
	assert.Equal(t, "info", log.GetLevel().String())
}
