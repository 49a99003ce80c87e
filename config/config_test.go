package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "SERVER_ADDR", "PIPELINE", "MEMORY_SIZE", "GROQ_API_KEY",
		"GROQ_MODEL", "GOOGLE_API_KEY", "GEMINI_MODEL", "SERPER_API_KEY",
		"LLM_TIMEOUT", "LLM_MAX_TOKENS", "REDIS_ADDR", "DATABASE_URL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.ServerAddr)
	assert.Equal(t, "graph", cfg.Pipeline)
	assert.Equal(t, 5, cfg.MemorySize)
	assert.Equal(t, 512, cfg.LLM.MaxTokens)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "autism_data.csv", cfg.RecordsFile)
	assert.False(t, cfg.Groq.Enabled())
	assert.False(t, cfg.Gemini.Enabled())
	assert.False(t, cfg.Redis.Enabled())
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("GROQ_API_KEY", "gk")
	t.Setenv("GROQ_MODEL", "llama-custom")
	t.Setenv("LLM_TIMEOUT", "5s")
	t.Setenv("PIPELINE", "DIRECT")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Groq.Enabled())
	assert.Equal(t, "llama-custom", cfg.Groq.Model)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "direct", cfg.Pipeline)
}

func TestLoadConfigFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "auticare.yaml")
	require.NoError(t, os.WriteFile(path, []byte("SERVER_ADDR: \":8088\"\nMEMORY_SIZE: 3\n"), 0o644))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8088", cfg.ServerAddr)
	assert.Equal(t, 3, cfg.MemorySize)
}

func TestLoadRejectsUnknownPipeline(t *testing.T) {
	clearEnv(t)
	t.Setenv("PIPELINE", "langgraph")

	_, err := Load()
	assert.Error(t, err)
}
