// Package config provides configuration management for dlnaprobe using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "DLNAPROBE"

// Default configuration values.
const (
	defaultDialTimeout     = 10 * time.Second
	defaultIOTimeout       = 30 * time.Second
	defaultMaxResponseSize = 64 * KB
	defaultWatchListen     = "127.0.0.1:9464"
	defaultWatchSchedule   = "@every 30s"
	defaultShutdownTimeout = 10 * time.Second
)

// Config holds all configuration for the application.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Transport TransportConfig `mapstructure:"transport"`
	Watch     WatchConfig     `mapstructure:"watch"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // trace, debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// TransportConfig holds the HEAD exchange connection settings.
// A zero timeout disables that timeout.
type TransportConfig struct {
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
	IOTimeout       time.Duration `mapstructure:"io_timeout"`
	MaxResponseSize ByteSize      `mapstructure:"max_response_size"` // e.g. "64KB"
}

// WatchConfig holds settings for the watch command.
type WatchConfig struct {
	Listen          string        `mapstructure:"listen"`
	Schedule        string        `mapstructure:"schedule"` // cron spec or @every descriptor
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestLogging  bool          `mapstructure:"request_logging"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with DLNAPROBE_ and use underscores for nesting.
// Example: DLNAPROBE_TRANSPORT_IO_TIMEOUT=5s.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/dlnaprobe")
		v.AddConfigPath("$HOME/.dlnaprobe")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// defaults and env vars only
	}

	return Unmarshal(v)
}

// Unmarshal decodes and validates the configuration held by v.
func Unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
	)))
	if err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Transport defaults
	v.SetDefault("transport.dial_timeout", defaultDialTimeout)
	v.SetDefault("transport.io_timeout", defaultIOTimeout)
	v.SetDefault("transport.max_response_size", defaultMaxResponseSize.String())

	// Watch defaults
	v.SetDefault("watch.listen", defaultWatchListen)
	v.SetDefault("watch.schedule", defaultWatchSchedule)
	v.SetDefault("watch.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("watch.request_logging", false)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Transport.DialTimeout < 0 {
		return fmt.Errorf("transport.dial_timeout must not be negative")
	}
	if c.Transport.IOTimeout < 0 {
		return fmt.Errorf("transport.io_timeout must not be negative")
	}
	if c.Transport.MaxResponseSize < KB {
		return fmt.Errorf("transport.max_response_size must be at least 1KB")
	}

	if c.Watch.Listen == "" {
		return fmt.Errorf("watch.listen is required")
	}
	if c.Watch.Schedule == "" {
		return fmt.Errorf("watch.schedule is required")
	}

	return nil
}
