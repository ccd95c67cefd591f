package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"MEMENGINE_CONFIG_PATH", "MEMENGINE_TRANSPORT", "MEMENGINE_SERVER_HOST",
		"MEMENGINE_SERVER_PORT", "MEMENGINE_DAEMON_HOST", "MEMENGINE_DAEMON_PORT",
		"MEMENGINE_DATA_DIR", "MEMENGINE_LOG_LEVEL", "MEMENGINE_LOG_FILE",
		"MEMENGINE_LLM_PROVIDER", "MEMENGINE_LLM_MODEL", "MEMENGINE_EMBEDDING_MODE",
		"REDIS_ADDR", "OPENAI_API_KEY", "GEMINI_API_KEY",
	}
	for _, k := range keys {
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "stdio", cfg.Transport.Mode)
	require.Equal(t, 8099, cfg.Server.Port)
	require.Equal(t, 8098, cfg.Daemon.Port)
	require.Equal(t, "tfidf", cfg.Embedding.Mode)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("MEMENGINE_DAEMON_HOST", "0.0.0.0")
	t.Setenv("MEMENGINE_DAEMON_PORT", "9001")
	t.Setenv("MEMENGINE_SERVER_PORT", "9002")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0", cfg.Daemon.Host)
	require.Equal(t, 9001, cfg.Daemon.Port)
	require.Equal(t, 9002, cfg.Server.Port)
}

func TestLoad_InvalidPortEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("MEMENGINE_DAEMON_PORT", "not-a-port")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_FileBeatsDefaultsEnvBeatsFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("daemon:\n  port: 7000\nserver:\n  port: 7001\n"), 0o644))

	t.Setenv("MEMENGINE_CONFIG_PATH", path)
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 7000, cfg.Daemon.Port)
	require.Equal(t, 7001, cfg.Server.Port)

	t.Setenv("MEMENGINE_SERVER_PORT", "7002")
	cfg, err = Load()
	require.NoError(t, err)
	require.Equal(t, 7002, cfg.Server.Port, "env must win over file")
	require.Equal(t, 7000, cfg.Daemon.Port, "file value survives when no env override")
}
