package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"smsrelay/internal/constants"
)

// LoadConfig reads the YAML file (when given), layers environment variables on
// top and validates the result. An empty configFile means env-only configuration.
func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	if configFile != "" {
		viper.SetConfigFile(configFile)
	}

	setDefaults()
	bindEnvVariables()

	if configFile != "" {
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout_seconds", "10s")
	viper.SetDefault("server.write_timeout_seconds", "30s")

	viper.SetDefault("relay.api_token", "")
	viper.SetDefault("relay.debug", false)
	viper.SetDefault("relay.max_content_length", constants.DefaultMaxContentLength)
	viper.SetDefault("relay.max_timestamp_drift", constants.DefaultMaxTimestampDrift)
	viper.SetDefault("relay.max_body_bytes", constants.DefaultMaxBodyBytes)

	viper.SetDefault("rate_limit.max_requests", constants.DefaultRateLimitMaxRequests)
	viper.SetDefault("rate_limit.window", constants.DefaultRateLimitWindow)

	viper.SetDefault("deduplication.ttl_seconds", constants.DefaultDedupTTLSeconds)
	viper.SetDefault("deduplication.content_prefix_length", constants.DefaultContentPrefixLength)
	viper.SetDefault("deduplication.on_store_error", constants.FallbackAllow)
	viper.SetDefault("deduplication.release_on_dispatch_failure", false)

	viper.SetDefault("push.server", constants.DefaultPushServer)
	viper.SetDefault("push.keys", "")
	viper.SetDefault("push.timeout", constants.DefaultHTTPTimeout)
	viper.SetDefault("push.group", constants.DefaultPushGroup)
	viper.SetDefault("push.sound", constants.DefaultPushSound)
	viper.SetDefault("push.archive", true)
	viper.SetDefault("push.title", constants.DefaultPushTitle)
	viper.SetDefault("push.user_agent", constants.DefaultUserAgent)

	viper.SetDefault("database.redis.host", "")
	viper.SetDefault("database.redis.port", 0)
	viper.SetDefault("database.redis.password", "")
	viper.SetDefault("database.redis.db", 0)

	viper.SetDefault("ingress.enabled", false)
	viper.SetDefault("ingress.rps", 10.0)
	viper.SetDefault("ingress.burst", 20)
	viper.SetDefault("ingress.cleanup_interval", 300)
	viper.SetDefault("ingress.max_age", 600)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("circuit_breaker.enabled", false)
	viper.SetDefault("circuit_breaker.max_requests", 0)
	viper.SetDefault("circuit_breaker.interval", 0)
	viper.SetDefault("circuit_breaker.timeout", 0)
	viper.SetDefault("circuit_breaker.failure_ratio", 0.0)
	viper.SetDefault("circuit_breaker.min_requests", 0)

	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.service_name", constants.ServiceName)
	viper.SetDefault("tracing.otlp.endpoint", "")
	viper.SetDefault("tracing.otlp.insecure", false)
	viper.SetDefault("tracing.sampler.type", "")
	viper.SetDefault("tracing.sampler.param", 0.0)
}

// legacyEnvNames maps config keys to the short variable names of the older
// deployment, accepted alongside the dotted-path variables.
var legacyEnvNames = map[string]string{
	"relay.api_token":         "API_TOKEN",
	"relay.debug":             "DEBUG",
	"push.keys":               "BARK_KEYS",
	"push.server":             "BARK_SERVER",
	"rate_limit.max_requests": "RATE_LIMIT",
}

// bindEnvVariables binds every leaf key to its upper-cased underscore form.
// Section keys are never bound, so a variable such as RATE_LIMIT cannot
// replace the whole rate_limit section.
func bindEnvVariables() {
	replacer := strings.NewReplacer(".", "_")
	for _, key := range viper.AllKeys() {
		envName := strings.ToUpper(replacer.Replace(key))
		if legacy, ok := legacyEnvNames[key]; ok {
			viper.BindEnv(key, envName, legacy)
			continue
		}
		viper.BindEnv(key, envName)
	}
}

func applyEnvOverrides(cfg *Config) error {
	cfg.Relay.APIToken = strings.TrimSpace(cfg.Relay.APIToken)

	return nil
}
