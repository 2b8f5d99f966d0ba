package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/nikolayk812/notemarket/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const envPrefix = "NOTEMARKET"

type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Stripe    StripeConfig    `mapstructure:"stripe"`
	Checkout  CheckoutConfig  `mapstructure:"checkout"`
	Connect   ConnectConfig   `mapstructure:"connect"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Log       LogConfig       `mapstructure:"log"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	RateLimitRPS    float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst  int           `mapstructure:"rate_limit_burst"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type CheckoutConfig struct {
	// FeeRate is a decimal string, e.g. "0.15"
	FeeRate               string        `mapstructure:"fee_rate"`
	SessionTTL            time.Duration `mapstructure:"session_ttl"`
	OrderInsertMaxElapsed time.Duration `mapstructure:"order_insert_max_elapsed"`
}

type ConnectConfig struct {
	Country string `mapstructure:"country"`
}

type KafkaConfig struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ReconcileConfig struct {
	// Interval of the in-process payout retry loop, 0 disables it. Defaults to 15m.
	Interval    time.Duration `mapstructure:"interval"`
	GracePeriod time.Duration `mapstructure:"grace_period"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	BatchSize   int           `mapstructure:"batch_size"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.rate_limit_rps", 10)
	v.SetDefault("http.rate_limit_burst", 20)
	v.SetDefault("http.shutdown_timeout", "15s")

	v.SetDefault("database.url", "")

	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.webhook_secret", "")

	v.SetDefault("checkout.fee_rate", "0.15")
	v.SetDefault("checkout.session_ttl", "30m")
	v.SetDefault("checkout.order_insert_max_elapsed", "5s")

	v.SetDefault("connect.country", "JP")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "notemarket.")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("reconcile.interval", "15m")
	v.SetDefault("reconcile.grace_period", "10m")
	v.SetDefault("reconcile.max_attempts", 10)
	v.SetDefault("reconcile.batch_size", 100)
}

// Load reads defaults, then the optional YAML file at path, then NOTEMARKET_* env vars.
// Nested keys map to env vars with underscores, e.g. NOTEMARKET_STRIPE_SECRET_KEY.
func Load(path string) (Config, error) {
	var cfg Config

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("v.ReadInConfig[%s]: %w", path, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("v.Unmarshal: %w", err)
	}

	// env values arrive as one comma separated string
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("cfg.Validate: %w", err)
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is empty")
	}

	feeRate, err := c.Checkout.ParseFeeRate()
	if err != nil {
		return fmt.Errorf("checkout.fee_rate: %w", err)
	}

	if err := domain.ValidateFeeRate(feeRate); err != nil {
		return fmt.Errorf("checkout.fee_rate: %w", err)
	}

	if c.Checkout.SessionTTL <= 0 {
		return fmt.Errorf("checkout.session_ttl[%s] must be positive", c.Checkout.SessionTTL)
	}

	if c.HTTP.RateLimitRPS <= 0 || c.HTTP.RateLimitBurst <= 0 {
		return errors.New("http rate limit must be positive")
	}

	if len(c.Connect.Country) != 2 {
		return fmt.Errorf("connect.country[%s] must be a two letter code", c.Connect.Country)
	}

	if c.Reconcile.Interval < 0 {
		return fmt.Errorf("reconcile.interval[%s] is negative", c.Reconcile.Interval)
	}

	if c.Reconcile.MaxAttempts <= 0 || c.Reconcile.BatchSize <= 0 {
		return errors.New("reconcile.max_attempts and reconcile.batch_size must be positive")
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	return nil
}

// ValidateStripe is separate because migrate runs without gateway credentials.
func (c Config) ValidateStripe() error {
	if c.Stripe.SecretKey == "" {
		return errors.New("stripe.secret_key is empty")
	}

	if c.Stripe.WebhookSecret == "" {
		return errors.New("stripe.webhook_secret is empty")
	}

	return nil
}

func (c CheckoutConfig) ParseFeeRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.FeeRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("decimal.NewFromString[%s]: %w", c.FeeRate, err)
	}

	return rate, nil
}

func (c LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return level, err
	}
	return level, nil
}

// NewLogger builds the process logger, JSON unless format is "text".
func (c LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := c.SlogLevel()
	if err != nil {
		return nil, fmt.Errorf("SlogLevel: %w", err)
	}

	opts := &slog.HandlerOptions{Level: level}

	if c.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}

	return slog.New(slog.NewJSONHandler(w, opts)), nil
}

func splitList(items []string) []string {
	var result []string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				result = append(result, part)
			}
		}
	}
	return result
}
