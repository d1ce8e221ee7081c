// Package config loads krishi settings from an optional YAML file and
// KRISHI_* environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/creastat/krishi"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "KRISHI_"

// Config is the full client configuration.
type Config struct {
	Backend  BackendConfig  `yaml:"backend" envPrefix:"BACKEND_"`
	Chat     ChatConfig     `yaml:"chat" envPrefix:"CHAT_"`
	Storage  StorageConfig  `yaml:"storage" envPrefix:"STORAGE_"`
	Supabase SupabaseConfig `yaml:"supabase" envPrefix:"SUPABASE_"`
	Qdrant   QdrantConfig   `yaml:"qdrant" envPrefix:"QDRANT_"`
	OpenAI   OpenAIConfig   `yaml:"openai" envPrefix:"OPENAI_"`
	Logging  LoggingConfig  `yaml:"logging" envPrefix:"LOG_"`
	Profile  ProfileConfig  `yaml:"profile" envPrefix:"PROFILE_"`
}

// BackendConfig locates the advisory backend.
type BackendConfig struct {
	HTTPURL          string        `yaml:"http_url" env:"HTTP_URL"`
	WSURL            string        `yaml:"ws_url" env:"WS_URL"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" env:"HANDSHAKE_TIMEOUT"`
	RequestTimeout   time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
}

// ChatConfig tunes the chat session.
type ChatConfig struct {
	Language             string        `yaml:"language" env:"LANGUAGE"`
	ReconnectDelay       time.Duration `yaml:"reconnect_delay" env:"RECONNECT_DELAY"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts" env:"MAX_RECONNECT_ATTEMPTS"`
	FallbackMinLatency   time.Duration `yaml:"fallback_min_latency" env:"FALLBACK_MIN_LATENCY"`
	FallbackMaxLatency   time.Duration `yaml:"fallback_max_latency" env:"FALLBACK_MAX_LATENCY"`
}

// StorageConfig selects the session store.
type StorageConfig struct {
	Driver          string        `yaml:"driver" env:"DRIVER"` // memory or redis
	RedisAddr       string        `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword   string        `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB         int           `yaml:"redis_db" env:"REDIS_DB"`
	TTL             time.Duration `yaml:"ttl" env:"TTL"`
	HistoryMessages int           `yaml:"history_messages" env:"HISTORY_MESSAGES"`
	HistoryTokens   int           `yaml:"history_tokens" env:"HISTORY_TOKENS"`
}

// SupabaseConfig enables the remote user directory when URL is set.
type SupabaseConfig struct {
	URL      string        `yaml:"url" env:"URL"`
	APIKey   string        `yaml:"api_key" env:"API_KEY"`
	CacheTTL time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
}

// QdrantConfig enables knowledge hints when URL is set.
type QdrantConfig struct {
	URL        string  `yaml:"url" env:"URL"`
	APIKey     string  `yaml:"api_key" env:"API_KEY"`
	Collection string  `yaml:"collection" env:"COLLECTION"`
	MinScore   float32 `yaml:"min_score" env:"MIN_SCORE"`
	Limit      int     `yaml:"limit" env:"LIMIT"`
}

// OpenAIConfig configures query embeddings.
type OpenAIConfig struct {
	APIKey         string `yaml:"api_key" env:"API_KEY"`
	BaseURL        string `yaml:"base_url" env:"BASE_URL"`
	EmbeddingModel string `yaml:"embedding_model" env:"EMBEDDING_MODEL"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level       string `yaml:"level" env:"LEVEL"`
	Development bool   `yaml:"development" env:"DEVELOPMENT"`
}

// ProfileConfig locates the local profile file.
type ProfileConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			HTTPURL:          "http://localhost:8000",
			WSURL:            "ws://localhost:8000/ws",
			HandshakeTimeout: 10 * time.Second,
			RequestTimeout:   15 * time.Second,
		},
		Chat: ChatConfig{
			Language:           krishi.DefaultLanguage,
			ReconnectDelay:     3 * time.Second,
			FallbackMinLatency: time.Second,
			FallbackMaxLatency: 3 * time.Second,
		},
		Storage: StorageConfig{
			Driver:          "memory",
			RedisAddr:       "localhost:6379",
			TTL:             7 * 24 * time.Hour,
			HistoryMessages: 200,
			HistoryTokens:   16000,
		},
		Supabase: SupabaseConfig{
			CacheTTL: 5 * time.Minute,
		},
		Qdrant: QdrantConfig{
			Collection: "krishi_knowledge",
			MinScore:   0.35,
			Limit:      3,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads path (missing file means defaults), applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the components cannot run with.
func (c *Config) Validate() error {
	if err := checkURL(c.Backend.WSURL, "ws", "wss"); err != nil {
		return fmt.Errorf("%w: backend.ws_url: %v", krishi.ErrInvalidConfig, err)
	}
	if err := checkURL(c.Backend.HTTPURL, "http", "https"); err != nil {
		return fmt.Errorf("%w: backend.http_url: %v", krishi.ErrInvalidConfig, err)
	}
	if c.Chat.ReconnectDelay <= 0 {
		return fmt.Errorf("%w: chat.reconnect_delay must be positive", krishi.ErrInvalidConfig)
	}
	if c.Chat.MaxReconnectAttempts < 0 {
		return fmt.Errorf("%w: chat.max_reconnect_attempts must not be negative", krishi.ErrInvalidConfig)
	}
	if c.Chat.FallbackMinLatency < 0 || c.Chat.FallbackMaxLatency < c.Chat.FallbackMinLatency {
		return fmt.Errorf("%w: chat fallback latency range [%s, %s] is invalid",
			krishi.ErrInvalidConfig, c.Chat.FallbackMinLatency, c.Chat.FallbackMaxLatency)
	}
	switch c.Storage.Driver {
	case "memory":
	case "redis":
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("%w: storage.redis_addr is required for the redis driver", krishi.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: %q", krishi.ErrInvalidStoreType, c.Storage.Driver)
	}
	if c.Supabase.URL != "" && c.Supabase.APIKey == "" {
		return fmt.Errorf("%w: supabase.api_key is required when supabase.url is set", krishi.ErrInvalidConfig)
	}
	if c.Qdrant.URL != "" && c.OpenAI.APIKey == "" {
		return fmt.Errorf("%w: openai.api_key is required when qdrant.url is set", krishi.ErrInvalidConfig)
	}
	return nil
}

// KnowledgeEnabled reports whether knowledge hints are configured.
func (c *Config) KnowledgeEnabled() bool { return c.Qdrant.URL != "" }

// DirectoryEnabled reports whether the remote user directory is configured.
func (c *Config) DirectoryEnabled() bool { return c.Supabase.URL != "" }

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%q must be an absolute %v URL", raw, schemes)
}
