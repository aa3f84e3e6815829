// Package config loads the closed set of environment variables meta-hub
// needs to start, using Viper the same way the teacher's webhook-inbox
// config package does.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every environment-derived setting the core needs. The set is
// closed per spec.md §6 plus the ambient wiring (HTTP port, Redis, metrics,
// log level) every cmd/* entrypoint requires to start.
type Config struct {
	MetaAppID              string `mapstructure:"META_APP_ID"`
	MetaAppSecret          string `mapstructure:"META_APP_SECRET"`
	MetaWebhookVerifyToken string `mapstructure:"META_WEBHOOK_VERIFY_TOKEN"`
	AppURL                 string `mapstructure:"APP_URL"`
	DBURL                  string `mapstructure:"DB_URL"`

	RedisURL         string `mapstructure:"REDIS_URL"`
	HTTPPort         string `mapstructure:"HTTP_PORT"`
	LogLevel         string `mapstructure:"LOG_LEVEL"`
	MetricsAddr      string `mapstructure:"METRICS_ADDR"`
	OAuthStateSecret string `mapstructure:"OAUTH_STATE_SECRET"`

	DeliveryPollInterval time.Duration `mapstructure:"DELIVERY_POLL_INTERVAL"`
	AlertEvalInterval    time.Duration `mapstructure:"ALERT_EVAL_INTERVAL"`
}

// required lists the variables that must be non-empty for the process to
// start; a missing one is a FatalError per spec.md §6 exit codes.
var required = []string{
	"META_APP_ID",
	"META_APP_SECRET",
	"META_WEBHOOK_VERIFY_TOKEN",
	"APP_URL",
	"DB_URL",
	"OAUTH_STATE_SECRET",
}

// Load reads configuration from the environment (and an optional .env file
// in the working directory, for local development) and validates the
// required set.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("METRICS_ADDR", ":9090")
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("DELIVERY_POLL_INTERVAL", "15s")
	v.SetDefault("ALERT_EVAL_INTERVAL", "60s")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	values := map[string]string{
		"META_APP_ID":               c.MetaAppID,
		"META_APP_SECRET":           c.MetaAppSecret,
		"META_WEBHOOK_VERIFY_TOKEN": c.MetaWebhookVerifyToken,
		"APP_URL":                   c.AppURL,
		"DB_URL":                    c.DBURL,
		"OAUTH_STATE_SECRET":        c.OAuthStateSecret,
	}
	for _, name := range required {
		if strings.TrimSpace(values[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}
