package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds service configuration.
type Config struct {
	DatabaseURL string `yaml:"database_url"`
	ServerAddr  string `yaml:"server_addr"`
	Store       string `yaml:"store"`
	JWTSecret   string `yaml:"jwt_secret"`
	LogLevel    string `yaml:"log_level"`

	RedisAddr                 string `yaml:"redis_addr"`
	RedisPassword             string `yaml:"redis_password"`
	RedisDB                   int    `yaml:"redis_db"`
	NotificationChannelPrefix string `yaml:"notification_channel_prefix"`
	StreamBuffer              int    `yaml:"stream_buffer"`

	NotificationRetries    int             `yaml:"notification_retries"`
	NotificationRetryDelay time.Duration   `yaml:"notification_retry_delay"`
	RelistOnCancel         bool            `yaml:"relist_on_cancel"`
	FeeExpression          string          `yaml:"fee_expression"`
	MinProposalPrice       decimal.Decimal `yaml:"min_proposal_price"`
	RequestTimeout         time.Duration   `yaml:"request_timeout"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		DatabaseURL:               "",
		ServerAddr:                "0.0.0.0:8080",
		Store:                     StorePostgres,
		LogLevel:                  "info",
		NotificationChannelPrefix: "tixswap:notifications",
		StreamBuffer:              16,
		NotificationRetries:       3,
		NotificationRetryDelay:    200 * time.Millisecond,
		RelistOnCancel:            true,
		FeeExpression:             "0",
		MinProposalPrice:          decimal.Zero,
		RequestTimeout:            10 * time.Second,
	}
}

// Load builds the configuration from defaults, the optional YAML file at path,
// and then environment variables, each layer overriding the previous one.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		user := getenv("POSTGRES_USER", "tixswap")
		pass := getenv("POSTGRES_PASSWORD", "tixswap")
		db := getenv("POSTGRES_DB", "tixswap")
		host := getenv("POSTGRES_HOST", "localhost")
		port := getenv("POSTGRES_PORT", "5432")
		sslmode := getenv("DATABASE_SSLMODE", "disable")
		cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, sslmode)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.DatabaseURL = getenv("DATABASE_URL", c.DatabaseURL)
	c.ServerAddr = getenv("SERVER_ADDR", c.ServerAddr)
	c.Store = getenv("STORE", c.Store)
	c.JWTSecret = getenv("JWT_SECRET", c.JWTSecret)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)
	c.RedisAddr = getenv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getenv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = parseInt(os.Getenv("REDIS_DB"), c.RedisDB)
	c.NotificationChannelPrefix = getenv("NOTIFICATION_CHANNEL_PREFIX", c.NotificationChannelPrefix)
	c.StreamBuffer = parseInt(os.Getenv("STREAM_BUFFER"), c.StreamBuffer)
	c.NotificationRetries = parseInt(os.Getenv("NOTIFICATION_RETRIES"), c.NotificationRetries)
	c.NotificationRetryDelay = parseDuration(os.Getenv("NOTIFICATION_RETRY_DELAY"), c.NotificationRetryDelay)
	c.RelistOnCancel = parseBool(os.Getenv("RELIST_ON_CANCEL"), c.RelistOnCancel)
	c.FeeExpression = getenv("FEE_EXPRESSION", c.FeeExpression)
	c.RequestTimeout = parseDuration(os.Getenv("REQUEST_TIMEOUT"), c.RequestTimeout)
	if v := os.Getenv("MIN_PROPOSAL_PRICE"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("invalid MIN_PROPOSAL_PRICE: %w", err)
		}
		c.MinProposalPrice = d
	}
	return nil
}

// Validate reports configuration the service cannot start with.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("jwt secret is required (JWT_SECRET)")
	}
	switch c.Store {
	case StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("unknown store %q, want %s or %s", c.Store, StorePostgres, StoreMemory)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	if c.NotificationRetries < 0 {
		return errors.New("notification retries must not be negative")
	}
	if c.StreamBuffer < 1 {
		return errors.New("stream buffer must be at least 1")
	}
	if c.MinProposalPrice.IsNegative() {
		return errors.New("min proposal price must not be negative")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request timeout must be positive")
	}
	return nil
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func parseDuration(val string, def time.Duration) time.Duration {
	if val == "" {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return def
	}
	return d
}

func parseBool(val string, def bool) bool {
	if val == "" {
		return def
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return def
	}
	return b
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return i
}
