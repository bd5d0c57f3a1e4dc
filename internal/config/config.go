// Package config loads service configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the art layer service.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Auth        AuthConfig        `yaml:"auth"`
	Costs       CostsConfig       `yaml:"costs"`
	ImageGen    ImageGenConfig    `yaml:"imagegen"`
	ChatModel   ChatModelConfig   `yaml:"chatmodel"`
	ObjectStore ObjectStoreConfig `yaml:"objectstore"`
	Chain       ChainConfig       `yaml:"chain"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	CORS        CORSConfig        `yaml:"cors"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL settings. An empty URL selects the
// in-memory store.
type DatabaseConfig struct {
	URL          string        `yaml:"url"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
	Migrate      bool          `yaml:"migrate"`
}

// RedisConfig holds the optional identity cache settings. An empty address
// disables the cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// AuthConfig holds session token settings.
type AuthConfig struct {
	TokenSecret string        `yaml:"token_secret"`
	TokenTTL    time.Duration `yaml:"token_ttl"`
}

// CostsConfig is the single source of truth for per-action credit costs.
type CostsConfig struct {
	Generation int64 `yaml:"generation"`
	Chat       int64 `yaml:"chat"`
}

// ImageGenConfig holds image model settings.
type ImageGenConfig struct {
	BaseURL      string        `yaml:"base_url"`
	APIToken     string        `yaml:"api_token"`
	ModelVersion string        `yaml:"model_version"`
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// ChatModelConfig holds chat model settings. An empty base URL disables the
// chat endpoint.
type ChatModelConfig struct {
	BaseURL  string        `yaml:"base_url"`
	APIToken string        `yaml:"api_token"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ObjectStoreConfig holds object storage settings.
type ObjectStoreConfig struct {
	BaseURL    string        `yaml:"base_url"`
	ServiceKey string        `yaml:"service_key"`
	Bucket     string        `yaml:"bucket"`
	Timeout    time.Duration `yaml:"timeout"`
}

// ChainConfig holds blockchain RPC settings. An empty URL disables on-chain
// signature verification.
type ChainConfig struct {
	RPCURL  string        `yaml:"rpc_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// RateLimitConfig holds per-caller request limits.
type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	Burst             int `yaml:"burst"`
}

// CORSConfig holds allowed origins for browser callers.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    90 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			QueryTimeout: 10 * time.Second,
			Migrate:      true,
		},
		Redis: RedisConfig{CacheTTL: 30 * time.Second},
		Auth:  AuthConfig{TokenTTL: 24 * time.Hour},
		Costs: CostsConfig{Generation: 5, Chat: 1},
		ImageGen: ImageGenConfig{
			Timeout:      60 * time.Second,
			PollInterval: 2 * time.Second,
		},
		ChatModel:   ChatModelConfig{Timeout: 30 * time.Second},
		ObjectStore: ObjectStoreConfig{Bucket: "images", Timeout: 30 * time.Second},
		Chain:       ChainConfig{Timeout: 10 * time.Second},
		RateLimit:   RateLimitConfig{RequestsPerSecond: 10, Burst: 20},
		CORS:        CORSConfig{AllowedOrigins: []string{"*"}},
	}
}

// Load reads the config file at path (optional) and applies environment
// overrides on top of defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Addr, "SERVER_ADDR")
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Auth.TokenSecret, "AUTH_TOKEN_SECRET")
	setString(&cfg.ImageGen.BaseURL, "IMAGEGEN_BASE_URL")
	setString(&cfg.ImageGen.APIToken, "IMAGEGEN_API_TOKEN")
	setString(&cfg.ImageGen.ModelVersion, "IMAGEGEN_MODEL_VERSION")
	setString(&cfg.ChatModel.BaseURL, "CHATMODEL_BASE_URL")
	setString(&cfg.ChatModel.APIToken, "CHATMODEL_API_TOKEN")
	setString(&cfg.ChatModel.Model, "CHATMODEL_MODEL")
	setString(&cfg.ObjectStore.BaseURL, "OBJECTSTORE_BASE_URL")
	setString(&cfg.ObjectStore.ServiceKey, "OBJECTSTORE_SERVICE_KEY")
	setString(&cfg.ObjectStore.Bucket, "OBJECTSTORE_BUCKET")
	setString(&cfg.Chain.RPCURL, "CHAIN_RPC_URL")
	setInt64(&cfg.Costs.Generation, "GENERATION_COST")
	setInt64(&cfg.Costs.Chat, "CHAT_COST")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = parsed
		}
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Costs.Generation <= 0 {
		return fmt.Errorf("costs.generation must be positive")
	}
	if c.Costs.Chat <= 0 {
		return fmt.Errorf("costs.chat must be positive")
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("rate_limit.requests_per_second must be positive")
	}
	return nil
}
