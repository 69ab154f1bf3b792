package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("API_TOKEN", "  secret  ")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.Relay.APIToken)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeoutSeconds)
	assert.Equal(t, 1000, cfg.Relay.MaxContentLength)
	assert.Equal(t, 5*time.Minute, cfg.Relay.MaxTimestampDrift)
	assert.Equal(t, 10, cfg.RateLimit.MaxRequests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 300, cfg.Deduplication.TTLSeconds)
	assert.Equal(t, "allow", cfg.Deduplication.OnStoreError)
	assert.Equal(t, "https://api.day.app", cfg.Push.Server)
	assert.Equal(t, "sms", cfg.Push.Group)
	assert.Equal(t, "shake", cfg.Push.Sound)
	assert.True(t, cfg.Push.Archive)
	assert.Empty(t, cfg.Database.Redis.Host)
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
relay:
  api_token: file-token
  debug: true
rate_limit:
  max_requests: 3
  window: 30s
push:
  keys: "a,b"
  timeout: 5s
database:
  redis:
    host: redis.local
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "file-token", cfg.Relay.APIToken)
	assert.True(t, cfg.Relay.Debug)
	assert.Equal(t, 3, cfg.RateLimit.MaxRequests)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, "a,b", cfg.Push.Keys)
	assert.Equal(t, 5*time.Second, cfg.Push.Timeout)
	assert.Equal(t, "redis.local", cfg.Database.Redis.Host)
}

func TestLoadConfig_WorkerEnvNames(t *testing.T) {
	path := writeConfig(t, "relay:\n  api_token: file-token\n")

	t.Setenv("API_TOKEN", "env-token")
	t.Setenv("BARK_KEYS", "k1,k2")
	t.Setenv("BARK_SERVER", "https://bark.example.com")
	t.Setenv("RATE_LIMIT", "25")
	t.Setenv("DEBUG", "true")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.Relay.APIToken)
	assert.Equal(t, "k1,k2", cfg.Push.Keys)
	assert.Equal(t, "https://bark.example.com", cfg.Push.Server)
	assert.Equal(t, 25, cfg.RateLimit.MaxRequests)
	assert.True(t, cfg.Relay.Debug)
}

func TestLoadConfig_SectionNamedEnvIgnored(t *testing.T) {
	path := writeConfig(t, "relay:\n  api_token: t\nrate_limit:\n  max_requests: 7\n")

	t.Setenv("SERVER", "x")
	t.Setenv("PUSH", "x")
	t.Setenv("DATABASE", "x")
	t.Setenv("RELAY", "x")
	t.Setenv("DEDUPLICATION", "x")
	t.Setenv("TRACING", "x")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "t", cfg.Relay.APIToken)
	assert.Equal(t, 7, cfg.RateLimit.MaxRequests)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://api.day.app", cfg.Push.Server)
}

func TestLoadConfig_DottedPathEnv(t *testing.T) {
	path := writeConfig(t, "relay:\n  api_token: t\n")

	t.Setenv("RATE_LIMIT_WINDOW", "2m")
	t.Setenv("DATABASE_REDIS_HOST", "redis.internal")
	t.Setenv("TRACING_OTLP_ENDPOINT", "collector:4317")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, "redis.internal", cfg.Database.Redis.Host)
	assert.Equal(t, "collector:4317", cfg.Tracing.OTLP.Endpoint)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing token",
			content: "server:\n  port: 8080\n",
			wantErr: "relay.api_token",
		},
		{
			name:    "bad on_store_error",
			content: "relay:\n  api_token: t\ndeduplication:\n  on_store_error: maybe\n",
			wantErr: "deduplication.on_store_error",
		},
		{
			name:    "relative push server",
			content: "relay:\n  api_token: t\npush:\n  server: day.app\n",
			wantErr: "push.server",
		},
		{
			name:    "sub-second window",
			content: "relay:\n  api_token: t\nrate_limit:\n  window: 500ms\n",
			wantErr: "rate_limit.window",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, 1, strings.Count(err.Error(), "configuration validation failed"))
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestValidateStatic_IngressOnlyWhenEnabled(t *testing.T) {
	err := validateIngress(IngressConfig{Enabled: false, RPS: 0})
	assert.NoError(t, err)

	err = validateIngress(IngressConfig{Enabled: true, RPS: 0, Burst: 1})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "ingress.rps", vErr.Field)
}
