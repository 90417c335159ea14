package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"memcat/pkg/categorizer"
)

// Categorization modes.
const (
	ModeSync  = "sync"
	ModeAsync = "async"
	ModeOff   = "off"
)

// Categorization providers.
const (
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderNone      = "none"
)

// DefaultDatabaseURL matches the local SQLite file used when nothing is configured.
const DefaultDatabaseURL = "sqlite:///./memcat.db"

// PricingInfo holds cost details per token for a specific model.
type PricingInfo struct {
	InputPerToken  float64 `mapstructure:"input_per_token"`
	OutputPerToken float64 `mapstructure:"output_per_token"`
}

// DatabaseConfig describes the primary database and its connection pool.
type DatabaseConfig struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size"`
	MaxOverflow  int           `mapstructure:"max_overflow"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
	PoolRecycle  time.Duration `mapstructure:"pool_recycle"`
	PoolPrePing  bool          `mapstructure:"pool_pre_ping"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
}

// MaxConns is the hard connection ceiling: the steady pool plus its overflow.
func (d DatabaseConfig) MaxConns() int {
	return d.PoolSize + d.MaxOverflow
}

type CacheConfig struct {
	Enabled     bool  `mapstructure:"enabled"`
	NumCounters int64 `mapstructure:"num_counters"`
	MaxCost     int64 `mapstructure:"max_cost"`
}

type CategorizationConfig struct {
	Provider        string                  `mapstructure:"provider"`
	Model           string                  `mapstructure:"model"`
	Mode            string                  `mapstructure:"mode"`
	PromptTemplate  string                  `mapstructure:"prompt_template"`
	BaseURL         string                  `mapstructure:"base_url"`
	MaxTokens       int                     `mapstructure:"max_tokens"`
	OpenaiApiKey    string                  `mapstructure:"openai_api_key"`
	GeminiApiKey    string                  `mapstructure:"gemini_api_key"`
	AnthropicApiKey string                  `mapstructure:"anthropic_api_key"`
	Retry           categorizer.RetryPolicy `mapstructure:"retry"`
	Cache           CacheConfig             `mapstructure:"cache"`
}

// APIKey returns the key configured for the selected provider.
func (c CategorizationConfig) APIKey() string {
	switch c.Provider {
	case ProviderOpenAI:
		return c.OpenaiApiKey
	case ProviderGemini:
		return c.GeminiApiKey
	case ProviderAnthropic:
		return c.AnthropicApiKey
	}
	return ""
}

type Config struct {
	Database       DatabaseConfig       `mapstructure:"database"`
	Categorization CategorizationConfig `mapstructure:"categorization"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	Redis struct {
		Address  string `mapstructure:"address"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Worker struct {
		Concurrency int            `mapstructure:"concurrency"`
		Queues      map[string]int `mapstructure:"queues"`
	} `mapstructure:"worker"`

	Server struct {
		Addr string `mapstructure:"addr"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"server"`

	// Pricing: map[provider][model] = struct{input_per_token, output_per_token}
	Pricing map[string]map[string]PricingInfo `mapstructure:"pricing"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.url", DefaultDatabaseURL)
	v.SetDefault("database.pool_size", 5)
	v.SetDefault("database.max_overflow", 10)
	v.SetDefault("database.pool_timeout", 30*time.Second)
	v.SetDefault("database.pool_recycle", time.Duration(0))
	v.SetDefault("database.pool_pre_ping", true)
	v.SetDefault("database.ping_interval", time.Minute)

	v.SetDefault("categorization.provider", ProviderOpenAI)
	v.SetDefault("categorization.model", "gpt-4o-mini")
	v.SetDefault("categorization.mode", ModeSync)
	v.SetDefault("categorization.prompt_template", "")
	v.SetDefault("categorization.max_tokens", 512)
	v.SetDefault("categorization.retry.max_attempts", categorizer.DefaultRetryPolicy.MaxAttempts)
	v.SetDefault("categorization.retry.multiplier", categorizer.DefaultRetryPolicy.Multiplier)
	v.SetDefault("categorization.retry.min", categorizer.DefaultRetryPolicy.Min)
	v.SetDefault("categorization.retry.max", categorizer.DefaultRetryPolicy.Max)
	v.SetDefault("categorization.retry.unit", categorizer.DefaultRetryPolicy.Unit)
	v.SetDefault("categorization.cache.enabled", true)
	v.SetDefault("categorization.cache.num_counters", int64(10000))
	v.SetDefault("categorization.cache.max_cost", int64(1000))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.queues", map[string]int{"categorization": 5, "default": 1})

	v.SetDefault("server.addr", "0.0.0.0")
	v.SetDefault("server.port", 8080)
}

// bindEnv maps the conventional unprefixed variables onto config keys.
func bindEnv(v *viper.Viper) error {
	binds := map[string][]string{
		"database.url":                     {"MEMCAT_DATABASE_URL", "DATABASE_URL"},
		"categorization.openai_api_key":    {"MEMCAT_CATEGORIZATION_OPENAI_API_KEY", "OPENAI_API_KEY"},
		"categorization.gemini_api_key":    {"MEMCAT_CATEGORIZATION_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"},
		"categorization.anthropic_api_key": {"MEMCAT_CATEGORIZATION_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"},
		"categorization.base_url":          {"MEMCAT_CATEGORIZATION_BASE_URL", "OPENAI_BASE_URL"},
	}
	for key, envs := range binds {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

// LoadConfig reads .env, config.yaml and the environment into a Config.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "memcat"))
	}
	return load(v)
}

// LoadConfigFile reads a specific config file instead of searching for one.
func LoadConfigFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	// A missing .env is normal.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warnf("Failed to load .env file: %v", err)
	}

	SetDefaults(v)
	v.SetEnvPrefix("MEMCAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		// No config file is fine; defaults and env vars still apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		log.Debugf("Using config file: %s", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Categorization.Provider = strings.ToLower(strings.TrimSpace(cfg.Categorization.Provider))
	cfg.Categorization.Mode = strings.ToLower(strings.TrimSpace(cfg.Categorization.Mode))
	return &cfg, nil
}

// Default returns the configuration LoadConfig produces with no file and no env.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: unmarshal defaults: %v", err))
	}
	return &cfg
}

// ConfigureLogging applies log.level and log.format to the standard logrus logger.
func (c *Config) ConfigureLogging() error {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return fmt.Errorf("invalid log.level %q: %w", c.Log.Level, err)
	}
	log.SetLevel(level)
	switch c.Log.Format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid log.format %q: must be text or json", c.Log.Format)
	}
	return nil
}
