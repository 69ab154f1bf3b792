package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateServer(cfg.Server); err != nil {
		errors = append(errors, err)
	}

	if err := validateRelay(cfg.Relay); err != nil {
		errors = append(errors, err)
	}

	if err := validateRateLimit(cfg.RateLimit); err != nil {
		errors = append(errors, err)
	}

	if err := validateDeduplication(cfg.Deduplication); err != nil {
		errors = append(errors, err)
	}

	if err := validatePush(cfg.Push); err != nil {
		errors = append(errors, err)
	}

	if err := validateDatabase(cfg.Database); err != nil {
		errors = append(errors, err)
	}

	if err := validateIngress(cfg.Ingress); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

func validateRelay(cfg RelayConfig) error {
	if cfg.APIToken == "" {
		return &ValidationError{
			Field:   "relay.api_token",
			Message: "API token is required",
		}
	}

	if cfg.MaxContentLength <= 0 {
		return &ValidationError{
			Field:   "relay.max_content_length",
			Message: "max content length must be positive",
		}
	}

	if cfg.MaxTimestampDrift <= 0 {
		return &ValidationError{
			Field:   "relay.max_timestamp_drift",
			Message: "max timestamp drift must be positive",
		}
	}

	if cfg.MaxBodyBytes <= 0 {
		return &ValidationError{
			Field:   "relay.max_body_bytes",
			Message: "max body bytes must be positive",
		}
	}

	return nil
}

func validateRateLimit(cfg RateLimitConfig) error {
	if cfg.MaxRequests <= 0 {
		return &ValidationError{
			Field:   "rate_limit.max_requests",
			Message: fmt.Sprintf("max requests must be positive, got %d", cfg.MaxRequests),
		}
	}

	if cfg.Window < time.Second {
		return &ValidationError{
			Field:   "rate_limit.window",
			Message: "window must be at least one second",
		}
	}

	return nil
}

func validateDeduplication(cfg DeduplicationConfig) error {
	if cfg.TTLSeconds <= 0 {
		return &ValidationError{
			Field:   "deduplication.ttl_seconds",
			Message: "TTL must be positive",
		}
	}

	if cfg.ContentPrefixLength < 0 {
		return &ValidationError{
			Field:   "deduplication.content_prefix_length",
			Message: "content prefix length must be non-negative",
		}
	}

	validOnError := map[string]bool{
		"allow": true, "deny": true,
	}
	if cfg.OnStoreError != "" && !validOnError[strings.ToLower(cfg.OnStoreError)] {
		return &ValidationError{
			Field:   "deduplication.on_store_error",
			Message: fmt.Sprintf("invalid on_store_error value: %s (valid: allow, deny)", cfg.OnStoreError),
		}
	}

	return nil
}

func validatePush(cfg PushConfig) error {
	u, err := url.Parse(cfg.Server)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ValidationError{
			Field:   "push.server",
			Message: fmt.Sprintf("push server must be an absolute URL, got %q", cfg.Server),
		}
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{
			Field:   "push.server",
			Message: fmt.Sprintf("unsupported scheme: %s (supported: http, https)", u.Scheme),
		}
	}

	if cfg.Timeout <= 0 {
		return &ValidationError{
			Field:   "push.timeout",
			Message: "timeout must be positive",
		}
	}

	return nil
}

func validateDatabase(cfg DatabaseConfig) error {
	if cfg.Redis.Host != "" {
		if err := validateRedis(cfg.Redis); err != nil {
			return err
		}
	}

	return nil
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.redis.host",
			Message: "Redis host is required",
		}
	}

	if cfg.Port < 0 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.DB < 0 {
		return &ValidationError{
			Field:   "database.redis.db",
			Message: "db index must be non-negative",
		}
	}

	return nil
}

func validateIngress(cfg IngressConfig) error {
	if !cfg.Enabled {
		return nil
	}

	if cfg.RPS <= 0 {
		return &ValidationError{
			Field:   "ingress.rps",
			Message: "rps must be positive",
		}
	}

	if cfg.Burst <= 0 {
		return &ValidationError{
			Field:   "ingress.burst",
			Message: "burst must be positive",
		}
	}

	return nil
}
