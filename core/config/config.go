package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
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

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// StoreMemory keeps session state in process memory (dev/tests only).
	StoreMemory = "memory"
	// StoreRedis keeps session state in Redis.
	StoreRedis = "redis"
	// StorePostgres keeps session state in Postgres.
	StorePostgres = "postgres"
)

// RedisConfig holds connection settings for the Redis session backend.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
}

// DatabaseConfig holds connection settings for the Postgres session backend.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// StoreConfig selects and configures the session store backend.
type StoreConfig struct {
	Backend  string         `yaml:"backend" envconfig:"STORE_BACKEND"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
}

// CommerceConfig configures the ElasticPath commerce backend client.
type CommerceConfig struct {
	BaseURL        string `yaml:"base_url" envconfig:"EP_BASE_URL"`
	ClientID       string `yaml:"client_id" envconfig:"EP_CLIENT_ID"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"EP_TIMEOUT_SECONDS"`
	// SeedFile optionally points to a JSON file with pizzerias to upload
	// into the commerce directory on startup.
	SeedFile string `yaml:"seed_file" envconfig:"EP_SEED_FILE"`
}

// GeocoderConfig configures the geocoding client.
type GeocoderConfig struct {
	APIKey string `yaml:"api_key" envconfig:"GEOCODER_API_KEY"`
}

// PaymentConfig configures Telegram-native invoicing.
type PaymentConfig struct {
	ProviderToken string `yaml:"provider_token" envconfig:"PAYMENT_PROVIDER_TOKEN"`
	Currency      string `yaml:"currency" envconfig:"PAYMENT_CURRENCY"`
}

// DeliveryConfig holds menu pagination and per-tier delivery fees.
type DeliveryConfig struct {
	MenuPageSize int `yaml:"menu_page_size" envconfig:"MENU_PAGE_SIZE"`
	// Fees are in minor currency units (kopecks/cents).
	LightFee    int `yaml:"light_fee" envconfig:"DELIVERY_LIGHT_FEE"`
	StandardFee int `yaml:"standard_fee" envconfig:"DELIVERY_STANDARD_FEE"`
}

// FollowUpConfig controls the post-delivery follow-up message.
type FollowUpConfig struct {
	DelayMinutes int `yaml:"delay_minutes" envconfig:"FOLLOWUP_DELAY_MINUTES"`
}

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
)

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the full bot configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Store     StoreConfig     `yaml:"store"`
	Commerce  CommerceConfig  `yaml:"commerce"`
	Geocoder  GeocoderConfig  `yaml:"geocoder"`
	Payment   PaymentConfig   `yaml:"payment"`
	Delivery  DeliveryConfig  `yaml:"delivery"`
	FollowUp  FollowUpConfig  `yaml:"followup"`
}

// FollowUpDelay returns the configured follow-up delay as a duration.
func (c *Config) FollowUpDelay() time.Duration {
	return time.Duration(c.FollowUp.DelayMinutes) * time.Minute
}

// CommerceTimeout returns the commerce client timeout as a duration.
func (c *Config) CommerceTimeout() time.Duration {
	return time.Duration(c.Commerce.TimeoutSeconds) * time.Second
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

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
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

	backend := strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	if backend == "" {
		backend = StoreRedis
	}
	switch backend {
	case StoreMemory:
	case StoreRedis:
		if strings.TrimSpace(cfg.Store.Redis.Addr) == "" {
			return fmt.Errorf("store.redis.addr is required when store.backend is 'redis'")
		}
	case StorePostgres:
		if strings.TrimSpace(cfg.Store.Database.Host) == "" {
			return fmt.Errorf("store.database.host is required when store.backend is 'postgres'")
		}
		if cfg.Store.Database.MaxConnections <= 0 {
			cfg.Store.Database.MaxConnections = 4
		}
	default:
		return fmt.Errorf("invalid store.backend %q; allowed: memory, redis, postgres", cfg.Store.Backend)
	}
	cfg.Store.Backend = backend

	if strings.TrimSpace(cfg.Commerce.BaseURL) == "" {
		cfg.Commerce.BaseURL = "https://api.moltin.com"
	}
	if strings.TrimSpace(cfg.Commerce.ClientID) == "" {
		return fmt.Errorf("commerce.client_id is required")
	}
	if cfg.Commerce.TimeoutSeconds <= 0 {
		cfg.Commerce.TimeoutSeconds = 10
	}

	if strings.TrimSpace(cfg.Payment.Currency) == "" {
		cfg.Payment.Currency = "RUB"
	}

	if cfg.Delivery.MenuPageSize <= 0 {
		cfg.Delivery.MenuPageSize = 8
	}
	if cfg.Delivery.LightFee < 0 || cfg.Delivery.StandardFee < 0 {
		return fmt.Errorf("delivery fees must be >= 0")
	}
	if cfg.Delivery.LightFee == 0 {
		cfg.Delivery.LightFee = 10000
	}
	if cfg.Delivery.StandardFee == 0 {
		cfg.Delivery.StandardFee = 30000
	}

	if cfg.FollowUp.DelayMinutes <= 0 {
		cfg.FollowUp.DelayMinutes = 60
	}

	allowed := map[string]struct{}{
		UpdateCallback: {},
		UpdateMessage:  {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}
	return nil
}
