package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp runs the test from an empty directory so a developer's
// config.yaml cannot leak into assertions.
func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		chdirTemp(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "autoparts-inventory", cfg.App.Name)
		assert.Equal(t, ":3000", cfg.HTTP.Addr)
		assert.True(t, cfg.GRPC.Enabled)
		assert.Equal(t, ":50051", cfg.GRPC.Addr)
		assert.Equal(t, "mysql", cfg.Database.Driver)
		assert.Equal(t, 3306, cfg.Database.Port)
		assert.True(t, cfg.Database.AutoMigrate)
		assert.False(t, cfg.Redis.Enabled)
		assert.Equal(t, "gpt-3.5-turbo", cfg.OpenAI.Model)
		assert.Equal(t, 500, cfg.OpenAI.MaxTokens)
		assert.Equal(t, "openai", cfg.Transcription.Provider)
		assert.Equal(t, "whisper-1", cfg.Transcription.Model)
		assert.Equal(t, "ru", cfg.Transcription.Language)
		assert.Equal(t, "/transcribe/", cfg.Transcription.WhisperPath)
		assert.Equal(t, 60*time.Second, cfg.Transcription.Timeout)
		assert.Equal(t, 30*time.Second, cfg.Extraction.Timeout)
		assert.Equal(t, 10*time.Minute, cfg.Extraction.CacheTTL)
		assert.False(t, cfg.Reconcile.Atomic)
		assert.Equal(t, "uploads", cfg.Upload.Dir)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Equal(t, "/metrics", cfg.Metrics.Path)
	})

	t.Run("loads values from environment variables with PARTS prefix", func(t *testing.T) {
		chdirTemp(t)
		t.Setenv("PARTS_DATABASE_DRIVER", "sqlite")
		t.Setenv("PARTS_DATABASE_SQLITE_PATH", "/tmp/parts.db")
		t.Setenv("PARTS_OPENAI_API_KEY", "sk-test")
		t.Setenv("PARTS_OPENAI_MODEL", "gpt-4o-mini")
		t.Setenv("PARTS_TRANSCRIPTION_PROVIDER", "whisper")
		t.Setenv("PARTS_RECONCILE_ATOMIC", "true")
		t.Setenv("PARTS_EXTRACTION_TIMEOUT", "5s")
		t.Setenv("PARTS_GRPC_ENABLED", "false")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "sqlite", cfg.Database.Driver)
		assert.Equal(t, "/tmp/parts.db", cfg.Database.SQLitePath)
		assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
		assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
		assert.Equal(t, "whisper", cfg.Transcription.Provider)
		assert.True(t, cfg.Reconcile.Atomic)
		assert.Equal(t, 5*time.Second, cfg.Extraction.Timeout)
		assert.False(t, cfg.GRPC.Enabled)
	})

	t.Run("zero cache ttl disables the extraction cache", func(t *testing.T) {
		chdirTemp(t)
		t.Setenv("PARTS_EXTRACTION_CACHE_TTL", "0s")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, time.Duration(0), cfg.Extraction.CacheTTL)
	})

	t.Run("rejects unknown database driver", func(t *testing.T) {
		chdirTemp(t)
		t.Setenv("PARTS_DATABASE_DRIVER", "postgres")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.driver")
	})

	t.Run("rejects unknown transcription provider", func(t *testing.T) {
		chdirTemp(t)
		t.Setenv("PARTS_TRANSCRIPTION_PROVIDER", "deepgram")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "transcription.provider")
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		chdirTemp(t)
		t.Setenv("PARTS_DATABASE_MAX_OPEN_CONNS", "5")
		t.Setenv("PARTS_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})
}

func TestLoadFile(t *testing.T) {
	chdirTemp(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
http:
  addr: ":8088"
database:
  driver: sqlite
  sqlite_path: ":memory:"
redis:
  enabled: true
  addr: "cache:6379"
reconcile:
  atomic: true
log:
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("PARTS_LOG_LEVEL", "debug")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":8088", cfg.HTTP.Addr)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, ":memory:", cfg.Database.SQLitePath)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.True(t, cfg.Reconcile.Atomic)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
