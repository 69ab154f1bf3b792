package constants

import "time"

const (
	ServiceName = "relay-service"
)

const (
	DefaultHTTPTimeout = 10 * time.Second
	DefaultUserAgent   = "SMS-Forwarder-Relay/1.0"
)

const (
	CacheKeyPrefixDedup = "sms:"
	CacheKeyPrefixRate  = "rate:"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultMaxContentLength    = 1000
	DefaultMaxTimestampDrift   = 5 * time.Minute
	DefaultMaxBodyBytes        = 64 << 10
	DefaultDevice              = "unknown"
	DefaultContentPrefixLength = 100
)

const (
	DefaultRateLimitMaxRequests = 10
	DefaultRateLimitWindow      = 60 * time.Second
)

const (
	DefaultDedupTTLSeconds = 300
)

const (
	DefaultPushServer = "https://api.day.app"
	DefaultPushGroup  = "sms"
	DefaultPushSound  = "shake"
	DefaultPushTitle  = "📩 Verification Code"
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)

const (
	FallbackAllow = "allow"
	FallbackDeny  = "deny"
)

const (
	StoreSweepInterval = time.Minute
)
