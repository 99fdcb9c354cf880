package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirEmpty moves into a directory tree with no .env files.
func chdirEmpty(t *testing.T) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "a", "b", "c", "d")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	t.Chdir(dir)
}

func TestLoad_Defaults(t *testing.T) {
	chdirEmpty(t)
	for _, k := range []string{"HTTP_ADDR", "ROLE_SOURCE", "SESSION_TTL", "STORAGE_MODE", "ROLE_OVERRIDES", "QUEUE_WORKERS", "QUEUE_MODE", "REDIS_URL"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, RoleSourceCSV, cfg.RoleSource)
	assert.Equal(t, 12*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "none", cfg.StorageMode)
	assert.Equal(t, "Researcher=map,export", cfg.RoleOverrides)
	assert.Equal(t, 2, cfg.QueueWorkers)
	assert.Equal(t, QueueModeMemory, cfg.QueueMode)
	assert.Equal(t, "minedash:exports", cfg.QueueStream)
}

func TestLoad_RedisQueueNeedsRedis(t *testing.T) {
	chdirEmpty(t)
	t.Setenv("QUEUE_MODE", "redis")
	t.Setenv("REDIS_URL", "")
	assert.Equal(t, QueueModeMemory, Load().QueueMode)

	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	assert.Equal(t, QueueModeRedis, Load().QueueMode)
}

func TestLoad_Overrides(t *testing.T) {
	chdirEmpty(t)
	t.Setenv("ROLE_SOURCE", "Postgres")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("COOKIE_SECURE", "1")
	t.Setenv("LOGIN_RATE_LIMIT", "3")

	cfg := Load()
	assert.Equal(t, RoleSourcePostgres, cfg.RoleSource)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, 3, cfg.LoginRateLimit)
}

func TestLoad_BadValuesFallBack(t *testing.T) {
	chdirEmpty(t)
	t.Setenv("ROLE_SOURCE", "ldap")
	t.Setenv("SESSION_TTL", "soon")
	t.Setenv("QUEUE_WORKERS", "many")
	t.Setenv("COOKIE_SECURE", "maybe")

	cfg := Load()
	assert.Equal(t, RoleSourceCSV, cfg.RoleSource)
	assert.Equal(t, 12*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 2, cfg.QueueWorkers)
	assert.False(t, cfg.CookieSecure)
}

func TestLoad_EnvFileFromParent(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte("DATA_DIR_TEST_ONLY=/srv/data\n"), 0o644))
	child := filepath.Join(root, "cmd")
	require.NoError(t, os.MkdirAll(child, 0o755))
	t.Chdir(child)
	t.Setenv("DATA_DIR_TEST_ONLY", "")
	os.Unsetenv("DATA_DIR_TEST_ONLY")

	loadEnvFiles()
	assert.Equal(t, "/srv/data", os.Getenv("DATA_DIR_TEST_ONLY"))
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, Config{LogLevel: "debug"}.SlogLevel())
	assert.Equal(t, slog.LevelWarn, Config{LogLevel: "WARN"}.SlogLevel())
	assert.Equal(t, slog.LevelInfo, Config{LogLevel: "loud"}.SlogLevel())
}

func TestGetList(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, getList("CORS_ALLOWED_ORIGINS", ""))

	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	assert.Equal(t, []string{"http://localhost:*"}, getList("CORS_ALLOWED_ORIGINS", "http://localhost:*"))
}
