package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// Server configuration
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`

	// Redis configuration
	RedisURL string `mapstructure:"redis_url"`

	// PubNub configuration
	PubNubPublishKey   string `mapstructure:"pubnub_publish_key"`
	PubNubSubscribeKey string `mapstructure:"pubnub_subscribe_key"`
	PubNubSecretKey    string `mapstructure:"pubnub_secret_key"`
	PubNubUserID       string `mapstructure:"pubnub_user_id"`

	// Credential rendering
	QRSize        int    `mapstructure:"qr_size"`
	QRFallbackURL string `mapstructure:"qr_fallback_url"`

	// Admission
	CapacityReservationTTL time.Duration `mapstructure:"capacity_reservation_ttl"`
	StorageAttemptTimeout  time.Duration `mapstructure:"storage_attempt_timeout"`
	PhoneHashKey           string        `mapstructure:"phone_hash_key"`
	DefaultLanguage        string        `mapstructure:"default_language"`

	// Protection
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute"`

	// Monitoring
	EnableMetrics bool `mapstructure:"enable_metrics"`
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// LoadConfig reads defaults, an optional config.yaml from . or ./config,
// and then environment variables (REDIS_URL, QR_SIZE, ...).
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return parse(v)
}

func parse(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.QRSize <= 0 {
		cfg.QRSize = 256
	}
	if cfg.StorageAttemptTimeout <= 0 {
		cfg.StorageAttemptTimeout = 5 * time.Second
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	// Redis
	v.SetDefault("redis_url", "redis://localhost:6379/0")

	// PubNub
	v.SetDefault("pubnub_publish_key", "")
	v.SetDefault("pubnub_subscribe_key", "")
	v.SetDefault("pubnub_secret_key", "")
	v.SetDefault("pubnub_user_id", "guestlist-server")

	// Credentials
	v.SetDefault("qr_size", 256)
	v.SetDefault("qr_fallback_url", "https://api.qrserver.com/v1/create-qr-code/")

	// Admission
	v.SetDefault("capacity_reservation_ttl", "10m")
	v.SetDefault("storage_attempt_timeout", "5s")
	v.SetDefault("phone_hash_key", "")
	v.SetDefault("default_language", "en")

	v.SetDefault("rate_limit_per_minute", 30)

	// Monitoring
	v.SetDefault("enable_metrics", true)
}
