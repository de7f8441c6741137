package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/avivheldman/WorkFlow/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into an empty directory so no config.yaml or .env is picked up.
func chdir(t *testing.T) string {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		chdir(t)
		cfg, err := config.LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, 8000, cfg.HTTP.Port)
		assert.Equal(t, "INFO", cfg.Log.Level)
		assert.Equal(t, config.BackendRedis, cfg.Store.Backend)
		assert.Equal(t, 2*time.Second, cfg.Store.ProbeTimeout)
		assert.Equal(t, "localhost:6379", cfg.RedisAddr())
		assert.Equal(t, "workflow:", cfg.Redis.KeyPrefix)
		assert.Equal(t, 10, cfg.Workflow.MaxConcurrent)
		assert.Equal(t, "reject", cfg.Workflow.Admission)
		assert.Equal(t, ":8000", cfg.HTTPAddr())
	})

	t.Run("EnvironmentOverrides", func(t *testing.T) {
		chdir(t)
		t.Setenv("HTTP_PORT", "9090")
		t.Setenv("REDIS_HOST", "cache")
		t.Setenv("REDIS_PORT", "6380")
		t.Setenv("REDIS_DB", "2")
		t.Setenv("STORE_BACKEND", "Memory")
		t.Setenv("STORE_PROBE_TIMEOUT", "500ms")
		t.Setenv("MAX_CONCURRENT_WORKFLOWS", "3")
		t.Setenv("WORKFLOW_ADMISSION", "queue")
		t.Setenv("LOG_LEVEL", "DEBUG")

		cfg, err := config.LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.HTTP.Port)
		assert.Equal(t, "cache:6380", cfg.RedisAddr())
		assert.Equal(t, 2, cfg.Redis.DB)
		assert.Equal(t, config.BackendMemory, cfg.Store.Backend)
		assert.Equal(t, 500*time.Millisecond, cfg.Store.ProbeTimeout)
		assert.Equal(t, 3, cfg.Workflow.MaxConcurrent)
		assert.Equal(t, "queue", cfg.Workflow.Admission)
		assert.Equal(t, "DEBUG", cfg.Log.Level)
	})

	t.Run("ConfigFile", func(t *testing.T) {
		dir := chdir(t)
		yaml := "http:\n  port: 7000\nredis:\n  key_prefix: \"wf:\"\nworkflow:\n  max_concurrent: 0\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
		t.Setenv("HTTP_PORT", "7100")

		cfg, err := config.LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, 7100, cfg.HTTP.Port, "environment wins over file")
		assert.Equal(t, "wf:", cfg.Redis.KeyPrefix)
		assert.Equal(t, 0, cfg.Workflow.MaxConcurrent)
	})

	t.Run("DotEnvFile", func(t *testing.T) {
		dir := chdir(t)
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("POSTGRES_DSN=postgres://u:p@db/wf\n"), 0o644))
		t.Setenv("POSTGRES_DSN", "")
		require.NoError(t, os.Unsetenv("POSTGRES_DSN"))

		cfg, err := config.LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, "postgres://u:p@db/wf", cfg.Postgres.DSN)
	})

	t.Run("InvalidValues", func(t *testing.T) {
		chdir(t)
		t.Setenv("STORE_BACKEND", "mongo")
		_, err := config.LoadConfig()
		assert.ErrorContains(t, err, "unknown store backend 'mongo'")

		t.Setenv("STORE_BACKEND", "redis")
		t.Setenv("WORKFLOW_ADMISSION", "drop")
		_, err = config.LoadConfig()
		assert.ErrorContains(t, err, "unknown workflow admission mode 'drop'")

		t.Setenv("WORKFLOW_ADMISSION", "reject")
		t.Setenv("MAX_CONCURRENT_WORKFLOWS", "-1")
		_, err = config.LoadConfig()
		assert.ErrorContains(t, err, "cannot be negative")
	})
}
