package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig
	Relay          RelayConfig
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
	Deduplication  DeduplicationConfig
	Push           PushConfig
	Database       DatabaseConfig
	Ingress        IngressConfig
	Logging        LoggingConfig
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Tracing        TracingConfig
}

type ServerConfig struct {
	Port                int           `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration `mapstructure:"write_timeout_seconds"`
}

// RelayConfig holds the request-level knobs of the forwarding endpoint.
type RelayConfig struct {
	APIToken          string        `mapstructure:"api_token"`
	Debug             bool          `mapstructure:"debug"`
	MaxContentLength  int           `mapstructure:"max_content_length"`
	MaxTimestampDrift time.Duration `mapstructure:"max_timestamp_drift"`
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes"`
}

type RateLimitConfig struct {
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

type DeduplicationConfig struct {
	TTLSeconds               int    `mapstructure:"ttl_seconds"`
	ContentPrefixLength      int    `mapstructure:"content_prefix_length"`
	OnStoreError             string `mapstructure:"on_store_error"`
	ReleaseOnDispatchFailure bool   `mapstructure:"release_on_dispatch_failure"`
}

type PushConfig struct {
	Server    string        `mapstructure:"server"`
	Keys      string        `mapstructure:"keys"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Group     string        `mapstructure:"group"`
	Sound     string        `mapstructure:"sound"`
	Archive   bool          `mapstructure:"archive"`
	Title     string        `mapstructure:"title"`
	UserAgent string        `mapstructure:"user_agent"`
}

type DatabaseConfig struct {
	Redis RedisConfig
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// IngressConfig configures the per-client-IP throttle in front of all routes.
type IngressConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
