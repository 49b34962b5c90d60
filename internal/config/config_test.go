package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
target_llm_provider: gemini

server:
  port: 9090
  read_timeout: 10s
  write_timeout: 60s

providers:
  gemini:
    api_key: ${TEST_API_KEY}
    base_url: https://generativelanguage.googleapis.com/v1beta/openai
    models:
      claude-3-haiku: gemini-2.5-flash
      claude-3-opus: gemini-2.5-pro
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	t.Setenv("TEST_API_KEY", "my-secret-key")

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "gemini", cfg.TargetLLM)

	gemini, ok := cfg.Providers["gemini"]
	assert.True(t, ok, "gemini provider should exist")
	assert.Equal(t, "my-secret-key", gemini.APIKey)
	assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta/openai", gemini.BaseURL)
	assert.Equal(t, "gemini-2.5-flash", gemini.Models["claude-3-haiku"])
	assert.Equal(t, "gemini-2.5-pro", gemini.Models["claude-3-opus"])
}

func TestLoadEnvOverride(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
target_llm_provider: openai

server:
  port: 8080
  read_timeout: 30s
  write_timeout: 120s

providers:
  openai:
    api_key: test-key
    base_url: https://api.openai.com/v1
    models:
      claude-3-haiku: gpt-4o
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	// This should override server.port from 8080 to 3000.
	t.Setenv("LLMPROXY_SERVER_PORT", "3000")

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoadFallsBackToProviderEnvVar(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
target_llm_provider: openai

server:
  port: 8080

providers:
  openai:
    base_url: https://api.openai.com/v1
    models:
      claude-3-haiku: gpt-4o
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	t.Setenv("OPENAI_API_KEY", "sk-fallback")

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "sk-fallback", cfg.Providers["openai"].APIKey)
}

func TestLoadRejectsMissingTargetProvider(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	err := os.WriteFile(configPath, []byte("server:\n  port: 8080\n"), 0644)
	require.NoError(t, err)

	_, err = Load(configPath)
	require.Error(t, err)
}
