package toolrelay

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "toolrelay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfigFile(t, "")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultAddr, cfg.Addr)
	assert.Empty(t, cfg.BasePath)
	assert.Equal(t, DefaultSessionBuffer, cfg.SessionBuffer)
	assert.Equal(t, DefaultHeartbeatInterval, cfg.Heartbeat)
	assert.Equal(t, DefaultHandlerTimeout, cfg.HandlerTimeout)
	assert.Zero(t, cfg.IdleTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfigFile(t, `
addr: ":9090"
base_path: /mcp
session_buffer: 128
heartbeat: 15s
handler_timeout: 2m
idle_timeout: 10m
allowed_tools:
  - "get_*"
bearer_token: s3cret
log_level: debug
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "/mcp", cfg.BasePath)
	assert.Equal(t, 128, cfg.SessionBuffer)
	assert.Equal(t, 15*time.Second, cfg.Heartbeat)
	assert.Equal(t, 2*time.Minute, cfg.HandlerTimeout)
	assert.Equal(t, 10*time.Minute, cfg.IdleTimeout)
	assert.Equal(t, []string{"get_*"}, cfg.AllowedTools)
	assert.Equal(t, "s3cret", cfg.BearerToken)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `addr: ":9090"`)
	t.Setenv("TOOLRELAY_ADDR", ":7777")
	t.Setenv("TOOLRELAY_LOG_LEVEL", "warn")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.Addr)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"session_buffer":   "session_buffer: 0",
		"heartbeat":        "heartbeat: -1s",
		"handler_timeout":  "handler_timeout: -5s",
		"idle_timeout":     "idle_timeout: -1m",
		"unparseable yaml": "addr: [",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfigFile(t, content))
			assert.Error(t, err)
		})
	}
}

func TestConfigServerOptions(t *testing.T) {
	cfg := &Config{
		BasePath:       "/mcp",
		SessionBuffer:  16,
		Heartbeat:      5 * time.Second,
		HandlerTimeout: time.Second,
		IdleTimeout:    time.Minute,
		AllowedTools:   []string{"get_*"},
		BearerToken:    "s3cret",
	}

	o := resolveServerOptions(cfg.ServerOptions())
	assert.Equal(t, "/mcp", o.basePath)
	assert.Equal(t, 16, o.sessionBuffer)
	assert.Equal(t, 5*time.Second, o.heartbeat)
	assert.Equal(t, time.Second, o.handlerTimeout)
	assert.Equal(t, time.Minute, o.idleTimeout)
	assert.Equal(t, []string{"get_*"}, o.allowedTools)
	assert.Equal(t, "s3cret", o.bearerToken)
}

func TestConfigServerOptionsZeroDurationsDisable(t *testing.T) {
	// In the file format, zero always means off; the conversion must not
	// let applyDefaults re-enable them.
	cfg := &Config{SessionBuffer: 1}

	o := resolveServerOptions(cfg.ServerOptions())
	assert.Negative(t, o.heartbeat)
	assert.Negative(t, o.handlerTimeout)
	assert.Zero(t, o.idleTimeout)
}

func TestConfigLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{LogLevel: "warn"}
	logger := cfg.Logger(&buf)
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())

	logger.Info().Msg("dropped")
	assert.Empty(t, buf.String())
	logger.Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestConfigLoggerUnknownLevel(t *testing.T) {
	cfg := &Config{LogLevel: "shouting"}
	logger := cfg.Logger(&bytes.Buffer{})
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}
