// Package config handles loading and validating the proxy's configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the top-level configuration for the proxy.
type Config struct {
	Server       ServerConfig              `koanf:"server"`
	TargetLLM    string                    `koanf:"target_llm_provider"`
	LogLevel     string                    `koanf:"log_level"`
	TokenizerPath string                   `koanf:"tokenizer_path"`
	Providers    map[string]ProviderConfig `koanf:"providers"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `koanf:"port"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// ProviderConfig holds the routing table entry for a single upstream: its
// base URL, credential, and the caller-model-id -> upstream-model-id map it
// serves. For the "anthropic-passthrough" provider this map is ignored: the
// caller id is forwarded unchanged (spec.md §4.2).
type ProviderConfig struct {
	APIKey  string            `koanf:"api_key"`
	BaseURL string            `koanf:"base_url"`
	Models  map[string]string `koanf:"models"`
}

// Load reads configuration from a YAML file, layers environment variable
// overrides on top under the LLMPROXY_ prefix, and returns a fully
// populated Config. Per spec.md §5, the result is read once at startup and
// treated as immutable for the process lifetime — callers must not mutate
// it or reload it.
func Load(path string) (*Config, error) {
	// Load .env file into the process environment (ignored if not present).
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}

	// Layer environment variables on top. Any env var starting with
	// "LLMPROXY_" can override a config value. The callback transforms
	// the env var name into a koanf key path:
	//   LLMPROXY_SERVER_PORT -> server.port
	if err := k.Load(env.Provider("LLMPROXY_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "LLMPROXY_")),
			"_", ".",
		)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	if v := os.Getenv("PORT"); v != "" {
		_ = k.Set("server.port", v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		_ = k.Set("log_level", v)
	}
	if v := os.Getenv("TARGET_LLM_PROVIDER"); v != "" {
		_ = k.Set("target_llm_provider", v)
	}
	if v := os.Getenv("TOKENIZER_PATH"); v != "" {
		_ = k.Set("tokenizer_path", v)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR_NAME} placeholders in provider API keys, falling back to
	// the provider-specific *_API_KEY convention named in spec.md §6 when the
	// YAML omits api_key entirely.
	fallbackEnvVar := map[string]string{
		"openai":                "OPENAI_API_KEY",
		"gemini":                "GEMINI_API_KEY",
		"anthropic-passthrough": "ANTHROPIC_API_KEY",
	}
	for name, p := range cfg.Providers {
		switch {
		case strings.HasPrefix(p.APIKey, "${") && strings.HasSuffix(p.APIKey, "}"):
			envVar := p.APIKey[2 : len(p.APIKey)-1]
			p.APIKey = os.Getenv(envVar)
		case p.APIKey == "":
			if envVar, ok := fallbackEnvVar[name]; ok {
				p.APIKey = os.Getenv(envVar)
			}
		}
		cfg.Providers[name] = p
	}

	if cfg.TargetLLM == "" {
		return nil, fmt.Errorf("config: target_llm_provider must be set (no default substitution)")
	}
	if _, ok := cfg.Providers[cfg.TargetLLM]; !ok {
		return nil, fmt.Errorf("config: target_llm_provider %q has no matching providers entry", cfg.TargetLLM)
	}

	return &cfg, nil
}
