// Copyright (c) 2026 SecureApprove, Inc.
// SPDX-License-Identifier: MIT

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
server:
  host: 127.0.0.1
  port: 9443
logging:
  level: debug
  format: text
metrics:
  enabled: true
webauthn:
  id: approve.example.com
  display_name: SecureApprove
  origins:
    - https://approve.example.com
challenges:
  backend: memory
jwt:
  access_secret: test-access-secret
  refresh_secret: test-refresh-secret
`

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, testYAML))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9443, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "approve.example.com", cfg.WebAuthn.RPID)
	assert.Equal(t, "memory", cfg.Challenges.Backend)
	assert.Equal(t, "test-access-secret", cfg.JWT.AccessSecret)
}

func TestLoadApplyDefaults(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, `
webauthn:
  id: approve.example.com
  display_name: SecureApprove
  origins:
    - https://approve.example.com
jwt:
  access_secret: a
  refresh_secret: b
`))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "memory", cfg.Challenges.Backend)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, 60*time.Second, cfg.WebAuthn.Timeout)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestLoadMalformedYAML(t *testing.T) {
	_, err := Load(writeConfigFile(t, "server: [broken"))
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AUTHD_HOST", "10.0.0.5")
	t.Setenv("AUTHD_PORT", "9000")
	t.Setenv("AUTHD_LOG_LEVEL", "warn")
	t.Setenv("AUTHD_LOG_FORMAT", "json")
	t.Setenv("JWT_ACCESS_SECRET", "env-access")
	t.Setenv("JWT_REFRESH_SECRET", "env-refresh")

	cfg, err := Load(writeConfigFile(t, testYAML))
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "env-access", cfg.JWT.AccessSecret)
	assert.Equal(t, "env-refresh", cfg.JWT.RefreshSecret)
}

func TestEnvOverrideInvalidPort(t *testing.T) {
	for _, bad := range []string{"not-a-port", "0", "70000"} {
		t.Setenv("AUTHD_PORT", bad)

		cfg, err := Load(writeConfigFile(t, testYAML))
		require.NoError(t, err)
		assert.Equal(t, 9443, cfg.Server.Port, "port %q should be ignored", bad)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "invalid log level",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "invalid log format",
		},
		{
			name:    "bad challenge backend",
			mutate:  func(c *Config) { c.Challenges.Backend = "memcached" },
			wantErr: "invalid challenge backend",
		},
		{
			name:    "redis backend without url",
			mutate:  func(c *Config) { c.Challenges.Backend = "redis" },
			wantErr: "redis_url is required",
		},
		{
			name:    "missing rp_id",
			mutate:  func(c *Config) { c.WebAuthn.RPID = "" },
			wantErr: "webauthn",
		},
		{
			name:    "identical jwt secrets",
			mutate:  func(c *Config) { c.JWT.RefreshSecret = c.JWT.AccessSecret },
			wantErr: "jwt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfigFile(t, testYAML))
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		cfg := &Config{Logging: LoggingConfig{Level: tt.level}}
		assert.Equal(t, tt.want, cfg.LogLevel(), "level %s", tt.level)
	}
}
