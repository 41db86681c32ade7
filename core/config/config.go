package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram transport settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// BackendConfig describes the remote REST API that owns the domain data.
// ClientName and ClientPassword are the service-to-service credentials the
// backend expects in request bodies on unauthenticated endpoints.
type BackendConfig struct {
	BaseURL        string `yaml:"base_url" envconfig:"BACKEND_BASE_URL"`
	ClientName     string `yaml:"client_name" envconfig:"CLIENT_NAME"`
	ClientPassword string `yaml:"client_password" envconfig:"CLIENT_PASSWORD"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"BACKEND_TIMEOUT_SECONDS"`
}

// GeocoderConfig points at the external reverse-geocoding service.
type GeocoderConfig struct {
	BaseURL string `yaml:"base_url" envconfig:"GEOCODER_BASE_URL"`
	APIKey  string `yaml:"api_key" envconfig:"GEOCODER_API_KEY"`
}

// SessionConfig selects and configures the session store backend.
type SessionConfig struct {
	// Backend is one of "memory", "redis", "postgres".
	Backend   string `yaml:"backend" envconfig:"SESSION_BACKEND"`
	RedisAddr string `yaml:"redis_addr" envconfig:"SESSION_REDIS_ADDR"`

	DBHost     string `yaml:"db_host" envconfig:"DB_HOST"`
	DBPort     string `yaml:"db_port" envconfig:"DB_PORT"`
	DBUser     string `yaml:"db_user" envconfig:"DB_USER"`
	DBPassword string `yaml:"db_password" envconfig:"DB_PASSWORD"`
	DBName     string `yaml:"db_name" envconfig:"DB_NAME"`
	DBSSLMode  string `yaml:"db_sslmode" envconfig:"DB_SSLMODE"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level   string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format  string `yaml:"format" envconfig:"LOG_FORMAT"`
	Dir     string `yaml:"dir" envconfig:"LOG_DIR"`
	BotFile string `yaml:"bot_file" envconfig:"LOG_BOT_FILE"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// RateLimitConfig holds settings for per-user rate limiting.
type RateLimitConfig struct {
	IntervalMS int `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// SessionBackendMemory keeps sessions in process memory only.
	SessionBackendMemory = "memory"
	// SessionBackendRedis keeps sessions in Redis.
	SessionBackendRedis = "redis"
	// SessionBackendPostgres keeps sessions in Postgres.
	SessionBackendPostgres = "postgres"
)

// Config aggregates the full bot configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Backend   BackendConfig   `yaml:"backend"`
	Geocoder  GeocoderConfig  `yaml:"geocoder"`
	Session   SessionConfig   `yaml:"session"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required fields and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	if strings.TrimSpace(cfg.Backend.BaseURL) == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	cfg.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Backend.BaseURL), "/")
	if cfg.Backend.ClientName == "" || cfg.Backend.ClientPassword == "" {
		return fmt.Errorf("backend client credentials are required")
	}
	if cfg.Backend.TimeoutSeconds <= 0 {
		cfg.Backend.TimeoutSeconds = 15
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	backend := strings.ToLower(strings.TrimSpace(cfg.Session.Backend))
	if backend == "" {
		backend = SessionBackendMemory
	}
	switch backend {
	case SessionBackendMemory:
	case SessionBackendRedis:
		if strings.TrimSpace(cfg.Session.RedisAddr) == "" {
			return fmt.Errorf("session.redis_addr is required when session.backend is 'redis'")
		}
	case SessionBackendPostgres:
		if cfg.Session.DBHost == "" || cfg.Session.DBName == "" || cfg.Session.DBUser == "" {
			return fmt.Errorf("session db host, name and user are required when session.backend is 'postgres'")
		}
		if cfg.Session.DBPort == "" {
			cfg.Session.DBPort = "5432"
		}
		if cfg.Session.DBSSLMode == "" {
			cfg.Session.DBSSLMode = "disable"
		}
	default:
		return fmt.Errorf("invalid session.backend %q; allowed: memory, redis, postgres", cfg.Session.Backend)
	}
	cfg.Session.Backend = backend

	return nil
}
