package toolrelay

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config is the declarative mirror of the ServerOption set, for
// deployments that configure through a YAML file or TOOLRELAY_*
// environment variables instead of code. Unlike the options, zero
// durations here always mean "disabled"; defaults are applied by
// LoadConfig, not by omission.
type Config struct {
	Addr           string        `mapstructure:"addr"`
	BasePath       string        `mapstructure:"base_path"`
	SessionBuffer  int           `mapstructure:"session_buffer"`
	Heartbeat      time.Duration `mapstructure:"heartbeat"`
	HandlerTimeout time.Duration `mapstructure:"handler_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	AllowedTools   []string      `mapstructure:"allowed_tools"`
	BearerToken    string        `mapstructure:"bearer_token"`
	LogLevel       string        `mapstructure:"log_level"`
}

// LoadConfig reads configuration from a file and the environment. An
// empty path searches for toolrelay.yaml in . and /etc/toolrelay; a
// missing file is fine there, only an explicit path must exist.
// Environment variables override file values, e.g. TOOLRELAY_ADDR.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/toolrelay")
		v.SetConfigName("toolrelay")
		v.SetConfigType("yaml")
	}

	v.SetDefault("addr", DefaultAddr)
	v.SetDefault("base_path", "")
	v.SetDefault("session_buffer", DefaultSessionBuffer)
	v.SetDefault("heartbeat", DefaultHeartbeatInterval)
	v.SetDefault("handler_timeout", DefaultHandlerTimeout)
	v.SetDefault("idle_timeout", 0)
	v.SetDefault("allowed_tools", []string{})
	v.SetDefault("bearer_token", "")
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("TOOLRELAY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("toolrelay: read config: %w", err)
		}
		// No file on the search path; defaults and env carry it.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("toolrelay: decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	if c.SessionBuffer < 1 {
		return fmt.Errorf("toolrelay: session_buffer must be at least 1, got %d", c.SessionBuffer)
	}
	if c.Heartbeat < 0 {
		return fmt.Errorf("toolrelay: heartbeat must not be negative, got %s", c.Heartbeat)
	}
	if c.HandlerTimeout < 0 {
		return fmt.Errorf("toolrelay: handler_timeout must not be negative, got %s", c.HandlerTimeout)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("toolrelay: idle_timeout must not be negative, got %s", c.IdleTimeout)
	}
	return nil
}

// ServerOptions converts the declarative form into functional options.
// The Addr and LogLevel fields are for the caller: pass Addr to
// ListenAndServe and build a logger with Logger.
func (c *Config) ServerOptions() []ServerOption {
	opts := []ServerOption{
		WithBasePath(c.BasePath),
		WithSessionBuffer(c.SessionBuffer),
		WithHeartbeatInterval(c.Heartbeat),
		WithHandlerTimeout(c.HandlerTimeout),
		WithIdleTimeout(c.IdleTimeout),
	}
	if len(c.AllowedTools) > 0 {
		opts = append(opts, WithAllowedTools(c.AllowedTools...))
	}
	if c.BearerToken != "" {
		opts = append(opts, WithBearerToken(c.BearerToken))
	}
	return opts
}

// Logger builds a zerolog logger at the configured level writing to w.
// Unknown levels fall back to info.
func (c *Config) Logger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
