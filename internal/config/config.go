// Package config loads runtime configuration from environment
// variables and an optional config file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything a node or worker process needs at startup.
type Config struct {
	BindAddr string `mapstructure:"bind_addr"`
	LogLevel string `mapstructure:"log_level"`

	// Bus selects the response channel transport: redis, nats or memory.
	Bus string `mapstructure:"bus"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	NATSURL string `mapstructure:"nats_url"`

	QueueStream string `mapstructure:"queue_stream"`
	QueueGroup  string `mapstructure:"queue_group"`

	WebhookTimeout time.Duration `mapstructure:"webhook_timeout"`
	SessionTTL     time.Duration `mapstructure:"session_ttl"`
}

// Load reads config from the environment (prefix DISPATCH_) and, when
// path is non-empty, from a yaml file. Environment wins over file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DISPATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("bind_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("bus", "redis")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("nats_url", "nats://localhost:4222")
	v.SetDefault("queue_stream", "dispatch:jobs")
	v.SetDefault("queue_group", "workers")
	v.SetDefault("webhook_timeout", 30*time.Second)
	v.SetDefault("session_ttl", 30*time.Minute)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}
