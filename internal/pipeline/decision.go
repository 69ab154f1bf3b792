package pipeline

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"smsrelay/internal/ratelimiting"
	"smsrelay/pkg/models"
)

type Kind string

const (
	KindUnauthorized     Kind = "unauthorized"
	KindRejected         Kind = "rejected"
	KindRateLimited      Kind = "rate_limited"
	KindSkippedNonCode   Kind = "skipped_non_code"
	KindSkippedDuplicate Kind = "skipped_duplicate"
	KindDebugAccepted    Kind = "debug_accepted"
	KindForwarded        Kind = "forwarded"
	KindDispatchFailed   Kind = "dispatch_failed"
	KindStoreUnavailable Kind = "store_unavailable"
)

const (
	messageUnauthorized = "Unauthorized"
	messageSkipped      = "skipped"
	messageDebug        = "debug"
	messageForwarded    = "forwarded"
	messagePushFailed   = "Push failed"
	messageUnavailable  = "Service Unavailable"

	reasonNonCode     = "not a verification SMS"
	reasonDuplicate   = "duplicate"
	reasonUnavailable = "dedup store unavailable"
	noteDebug         = "Bark push skipped in debug mode"
)

// Decision is the terminal outcome of one request. It is built once and is
// the only input to the HTTP response.
type Decision struct {
	Kind Kind
	// Reason carries the client-facing text for Rejected and RateLimited, and
	// the configuration problem for a DispatchFailed without outcomes.
	Reason   string
	Code     string
	Dispatch models.DispatchResult
	// RateLimit is set once the request passed through the limiter.
	RateLimit *ratelimiting.Result
}

func Unauthorized() Decision {
	return Decision{Kind: KindUnauthorized}
}

func Rejected(reason string) Decision {
	return Decision{Kind: KindRejected, Reason: reason}
}

func (d Decision) HTTPStatus() int {
	switch d.Kind {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindRejected:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindDispatchFailed:
		return http.StatusBadGateway
	case KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusOK
	}
}

// Body renders the JSON response. A code-bearing success always carries the
// "code" key, null when no code was found.
func (d Decision) Body() gin.H {
	switch d.Kind {
	case KindUnauthorized:
		return gin.H{"success": false, "message": messageUnauthorized}
	case KindRejected, KindRateLimited:
		return gin.H{"success": false, "message": d.Reason}
	case KindSkippedNonCode:
		return gin.H{"success": true, "message": messageSkipped, "reason": reasonNonCode}
	case KindSkippedDuplicate:
		return gin.H{"success": true, "message": messageSkipped, "reason": reasonDuplicate, "code": d.Code}
	case KindDebugAccepted:
		return gin.H{"success": true, "message": messageDebug, "code": nullable(d.Code), "note": noteDebug}
	case KindForwarded:
		body := gin.H{"success": true, "message": messageForwarded, "code": nullable(d.Code), "pushed": d.Dispatch.Succeeded}
		if d.Dispatch.Failed > 0 {
			body["failed"] = d.Dispatch.Failed
			body["errors"] = d.Dispatch.Errors()
		}
		return body
	case KindDispatchFailed:
		body := gin.H{"success": false, "message": messagePushFailed}
		if errs := d.Dispatch.Errors(); len(errs) > 0 {
			body["errors"] = errs
		}
		if d.Reason != "" {
			body["reason"] = d.Reason
		}
		return body
	case KindStoreUnavailable:
		return gin.H{"success": false, "message": messageUnavailable, "reason": reasonUnavailable}
	default:
		return gin.H{"success": false, "message": "Internal Server Error"}
	}
}

func nullable(code string) interface{} {
	if code == "" {
		return nil
	}
	return code
}
