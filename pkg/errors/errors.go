package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthorized     = NewError("UNAUTHORIZED", "Unauthorized", http.StatusUnauthorized)
	ErrValidation       = NewError("VALIDATION_ERROR", "validation failed", http.StatusBadRequest)
	ErrRateLimited      = NewError("RATE_LIMITED", "rate limit exceeded", http.StatusTooManyRequests)
	ErrConfig           = NewError("CONFIG_ERROR", "configuration error", http.StatusBadGateway)
	ErrDelivery         = NewError("DELIVERY_ERROR", "push failed", http.StatusBadGateway)
	ErrStoreUnavailable = NewError("STORE_UNAVAILABLE", "store unavailable", http.StatusServiceUnavailable)
	ErrNotFound         = NewError("NOT_FOUND", "Not Found", http.StatusNotFound)
	ErrInternal         = NewError("INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
)

// Error is an application error carrying a stable code and the HTTP status
// it maps to.
type Error struct {
	Code    string
	Message string
	Status  int
	Details map[string]interface{}
	Cause   error
}

func NewError(code, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Status:  status,
		Details: make(map[string]interface{}),
	}
}

func (e *Error) Error() string {
	msg := e.Reason()

	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Reason is the human-readable message, preferring a "message" detail over
// the generic sentinel text.
func (e *Error) Reason() string {
	if len(e.Details) > 0 {
		if detailMsg, ok := e.Details["message"].(string); ok && detailMsg != "" {
			return detailMsg
		}
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on Code so that errors.Is(err, ErrValidation) holds for any
// copy derived from the sentinel.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func (e *Error) WithCause(cause error) *Error {
	err := *e
	err.Cause = cause
	return &err
}

func (e *Error) WithDetail(key string, value interface{}) *Error {
	err := *e
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	err.Details = details
	return &err
}

func (e *Error) WithMessage(message string) *Error {
	return e.WithDetail("message", message)
}

func Wrap(err error, appErr *Error) *Error {
	if err == nil {
		return nil
	}
	return appErr.WithCause(err)
}

func IsValidation(err error) bool {
	return hasCode(err, ErrValidation.Code)
}

func IsUnauthorized(err error) bool {
	return hasCode(err, ErrUnauthorized.Code)
}

func IsConfig(err error) bool {
	return hasCode(err, ErrConfig.Code)
}

func hasCode(err error, code string) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func ToHTTPStatus(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// Reason extracts the client-facing message of err, falling back to the
// generic internal error text for foreign errors.
func Reason(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Reason()
	}
	return ErrInternal.Message
}
