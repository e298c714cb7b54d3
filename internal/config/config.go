// Package config loads service configuration from .env, an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AppName is used for the default config file name and log fields.
const AppName = "git-gauge"

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	GitHub   GitHubConfig   `mapstructure:"github"`
	AI       AIConfig       `mapstructure:"ai"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	Version  string `mapstructure:"version"`
	HTTPPort int    `mapstructure:"http-port"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type GitHubConfig struct {
	Token             string        `mapstructure:"token"`
	Timeout           time.Duration `mapstructure:"timeout"`
	PerPage           int           `mapstructure:"per-page"`
	MaxPages          int           `mapstructure:"max-pages"`
	MaxRetries        int           `mapstructure:"max-retries"`
	RequestsPerSecond float64       `mapstructure:"requests-per-second"`
	Concurrency       int           `mapstructure:"concurrency"`
}

type AIConfig struct {
	Provider    string        `mapstructure:"provider"`
	APIKey      string        `mapstructure:"api-key"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base-url"`
	MaxTokens   int           `mapstructure:"max-tokens"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max-retries"`
}

type WorkerConfig struct {
	IdleInterval        time.Duration `mapstructure:"idle-interval"`
	ErrorBackoff        time.Duration `mapstructure:"error-backoff"`
	EstimatedJobSeconds int           `mapstructure:"estimated-job-seconds"`
	// Jobs left RUNNING longer than StaleAfter are failed by the sweeper.
	StaleAfter    time.Duration `mapstructure:"stale-after"`
	SweepSchedule string        `mapstructure:"sweep-schedule"`
}

type QueueConfig struct {
	Driver string `mapstructure:"driver"`
}

type WebhookConfig struct {
	DiscordURL string `mapstructure:"discord-url"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt-secret"`
}

type LogConfig struct {
	JSON  bool `mapstructure:"json"`
	Debug bool `mapstructure:"debug"`
}

// AI providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderNone   = "none"
)

// Queue drivers.
const (
	QueueRedis  = "redis"
	QueueMemory = "memory"
)

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app.name", AppName)
	v.SetDefault("app.version", "dev")
	v.SetDefault("app.http-port", 8000)

	v.SetDefault("database.dsn", "host=localhost user=postgres password=postgres dbname=git_gauge port=5432 sslmode=disable")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", time.Hour)

	v.SetDefault("github.timeout", 30*time.Second)
	v.SetDefault("github.per-page", 100)
	v.SetDefault("github.max-pages", 20)
	v.SetDefault("github.max-retries", 2)
	v.SetDefault("github.requests-per-second", 10)
	v.SetDefault("github.concurrency", 1)

	v.SetDefault("ai.provider", ProviderGemini)
	v.SetDefault("ai.max-tokens", 4096)
	v.SetDefault("ai.temperature", 0.3)
	v.SetDefault("ai.timeout", 60*time.Second)
	v.SetDefault("ai.max-retries", 2)

	v.SetDefault("worker.idle-interval", time.Second)
	v.SetDefault("worker.error-backoff", 5*time.Second)
	v.SetDefault("worker.estimated-job-seconds", 300)
	v.SetDefault("worker.stale-after", 30*time.Minute)
	v.SetDefault("worker.sweep-schedule", "@every 5m")

	v.SetDefault("queue.driver", QueueRedis)

	v.SetDefault("log.json", false)
	v.SetDefault("log.debug", false)
}

// legacyEnv maps flat environment variable names onto config keys.
var legacyEnv = map[string][]string{
	"database.dsn":        {"DATABASE_DSN", "DATABASE_URL"},
	"redis.addr":          {"REDIS_ADDR"},
	"redis.password":      {"REDIS_PASSWORD"},
	"github.token":        {"GITHUB_TOKEN"},
	"ai.provider":         {"AI_PROVIDER"},
	"ai.api-key":          {"AI_API_KEY", "GEMINI_API_KEY", "GROQ_API_KEY"},
	"ai.model":            {"AI_MODEL"},
	"ai.base-url":         {"AI_BASE_URL"},
	"webhook.discord-url": {"DISCORD_WEBHOOK_URL"},
	"auth.jwt-secret":     {"JWT_SECRET"},
	"queue.driver":        {"QUEUE_DRIVER"},
	"app.http-port":       {"PORT"},
}

// Prepare wires .env loading, env bindings and the optional config file into v.
// cfgFile may be empty, in which case ./git-gauge.yaml is used when present.
func Prepare(v *viper.Viper, cfgFile string) error {
	// .env is optional
	_ = godotenv.Load()

	SetDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, envs := range legacyEnv {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(AppName)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

// Load reads the config into a struct and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerations and numeric ranges.
func (c *Config) Validate() error {
	c.AI.Provider = strings.ToLower(strings.TrimSpace(c.AI.Provider))
	switch c.AI.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderNone:
	default:
		return fmt.Errorf("unknown ai.provider %q (want gemini, openai or none)", c.AI.Provider)
	}

	c.Queue.Driver = strings.ToLower(strings.TrimSpace(c.Queue.Driver))
	switch c.Queue.Driver {
	case QueueRedis, QueueMemory:
	default:
		return fmt.Errorf("unknown queue.driver %q (want redis or memory)", c.Queue.Driver)
	}

	if c.App.HTTPPort <= 0 || c.App.HTTPPort > 65535 {
		return fmt.Errorf("invalid app.http-port %d", c.App.HTTPPort)
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return fmt.Errorf("ai.temperature must be within [0, 2], got %v", c.AI.Temperature)
	}
	if c.Worker.IdleInterval <= 0 || c.Worker.ErrorBackoff <= 0 {
		return errors.New("worker.idle-interval and worker.error-backoff must be positive")
	}
	return nil
}
