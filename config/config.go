// Package config loads the application configuration from YAML, filling
// defaults for anything the file leaves out. API keys are never stored in
// the file; each provider names the environment variable that carries its
// key.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chansereyvath/lessonsearch/search"
)

// ProviderConfig configures one LLM provider in the gateway chain. Order
// in the Providers list is priority order.
type ProviderConfig struct {
	Type      string `yaml:"type"` // openai, ollama, anthropic
	BaseURL   string `yaml:"base_url,omitempty"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
	Model     string `yaml:"model,omitempty"`
	ChatModel string `yaml:"chat_model,omitempty"`
}

// APIKey resolves the provider's key from the environment.
func (p ProviderConfig) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(p.APIKeyEnv)
}

// ChunkingConfig holds the token-window parameters.
type ChunkingConfig struct {
	MaxTokens     int `yaml:"max_tokens"`
	OverlapTokens int `yaml:"overlap_tokens"`
}

// CacheConfig holds the embedding cache sizing and lifetimes. Durations
// are plain integers so the file stays trivially parseable.
type CacheConfig struct {
	LRUCapacity     int `yaml:"lru_capacity"`
	SharedTTLHours  int `yaml:"shared_ttl_hours"`
	ResultTTLMinute int `yaml:"result_ttl_minutes"`
}

// SharedTTL returns the shared embedding cache lifetime.
func (c CacheConfig) SharedTTL() time.Duration {
	return time.Duration(c.SharedTTLHours) * time.Hour
}

// ResultTTL returns the search result cache lifetime.
func (c CacheConfig) ResultTTL() time.Duration {
	return time.Duration(c.ResultTTLMinute) * time.Minute
}

// ResilienceConfig holds the retry and circuit-breaker knobs.
type ResilienceConfig struct {
	RetryAttempts       int `yaml:"retry_attempts"`
	RetryDelayMillis    int `yaml:"retry_delay_ms"`
	CircuitThreshold    int `yaml:"circuit_threshold"`
	CircuitCooldownSecs int `yaml:"circuit_cooldown_secs"`
}

// RetryDelay returns the initial backoff delay.
func (r ResilienceConfig) RetryDelay() time.Duration {
	return time.Duration(r.RetryDelayMillis) * time.Millisecond
}

// CircuitCooldown returns how long an open circuit rejects calls.
func (r ResilienceConfig) CircuitCooldown() time.Duration {
	return time.Duration(r.CircuitCooldownSecs) * time.Second
}

// Config is the root application configuration.
type Config struct {
	ListenAddr string               `yaml:"listen_addr"`
	StoreDSN   string               `yaml:"store_dsn"`
	Dimension  int                  `yaml:"dimension"`
	Providers  []ProviderConfig     `yaml:"providers"`
	Chunking   ChunkingConfig       `yaml:"chunking"`
	Cache      CacheConfig          `yaml:"cache"`
	Resilience ResilienceConfig     `yaml:"resilience"`
	Fusion     search.FusionWeights `yaml:"fusion"`
}

// Load reads the config at path. A missing file yields the defaults; a
// present but malformed file is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns the stock configuration: SQLite store, OpenAI-first
// provider chain with a local Ollama fallback, production cache and
// circuit settings.
func Default() *Config {
	return &Config{
		ListenAddr: ":8080",
		StoreDSN:   "data/lessonsearch.db",
		Dimension:  1536,
		Providers: []ProviderConfig{
			{Type: "openai", APIKeyEnv: "OPENAI_API_KEY"},
			{Type: "ollama"},
		},
		Chunking: ChunkingConfig{MaxTokens: 400, OverlapTokens: 50},
		Cache: CacheConfig{
			LRUCapacity:     2048,
			SharedTTLHours:  24,
			ResultTTLMinute: 5,
		},
		Resilience: ResilienceConfig{
			RetryAttempts:       3,
			RetryDelayMillis:    500,
			CircuitThreshold:    3,
			CircuitCooldownSecs: 60,
		},
		Fusion: search.DefaultFusionWeights(),
	}
}

// applyDefaults fills zero values left by a partial config file.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = def.ListenAddr
	}
	if cfg.StoreDSN == "" {
		cfg.StoreDSN = def.StoreDSN
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = def.Dimension
	}
	if len(cfg.Providers) == 0 {
		cfg.Providers = def.Providers
	}
	if cfg.Chunking.MaxTokens <= 0 {
		cfg.Chunking.MaxTokens = def.Chunking.MaxTokens
	}
	if cfg.Chunking.OverlapTokens <= 0 {
		cfg.Chunking.OverlapTokens = def.Chunking.OverlapTokens
	}
	if cfg.Cache.LRUCapacity <= 0 {
		cfg.Cache.LRUCapacity = def.Cache.LRUCapacity
	}
	if cfg.Cache.SharedTTLHours <= 0 {
		cfg.Cache.SharedTTLHours = def.Cache.SharedTTLHours
	}
	if cfg.Cache.ResultTTLMinute <= 0 {
		cfg.Cache.ResultTTLMinute = def.Cache.ResultTTLMinute
	}
	if cfg.Resilience.RetryAttempts <= 0 {
		cfg.Resilience.RetryAttempts = def.Resilience.RetryAttempts
	}
	if cfg.Resilience.RetryDelayMillis <= 0 {
		cfg.Resilience.RetryDelayMillis = def.Resilience.RetryDelayMillis
	}
	if cfg.Resilience.CircuitThreshold <= 0 {
		cfg.Resilience.CircuitThreshold = def.Resilience.CircuitThreshold
	}
	if cfg.Resilience.CircuitCooldownSecs <= 0 {
		cfg.Resilience.CircuitCooldownSecs = def.Resilience.CircuitCooldownSecs
	}
	if cfg.Fusion == (search.FusionWeights{}) {
		cfg.Fusion = def.Fusion
	}
}
