// Package validation checks the credential, shape and freshness of inbound
// forward requests.
package validation

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"smsrelay/internal/config"
	"smsrelay/internal/constants"
	apperrors "smsrelay/pkg/errors"
	"smsrelay/pkg/models"
)

const bearerScheme = "Bearer"

const (
	ReasonInvalidJSON      = "Invalid JSON"
	ReasonInvalidBody      = "Invalid request body"
	ReasonMissingContent   = "Missing or invalid content field"
	ReasonContentTooLong   = "Content too long"
	ReasonInvalidTimestamp = "Invalid timestamp"
)

// Payload is the decoded request body with every field kept raw until
// coercion.
type Payload struct {
	Device    json.RawMessage `json:"device"`
	Content   json.RawMessage `json:"content"`
	Code      json.RawMessage `json:"code"`
	Timestamp json.RawMessage `json:"timestamp"`
	Target    json.RawMessage `json:"target"`
}

type Validator struct {
	apiToken          string
	maxContentLength  int
	maxTimestampDrift time.Duration
}

func NewValidator(cfg config.RelayConfig) *Validator {
	maxLen := cfg.MaxContentLength
	if maxLen <= 0 {
		maxLen = constants.DefaultMaxContentLength
	}
	drift := cfg.MaxTimestampDrift
	if drift <= 0 {
		drift = constants.DefaultMaxTimestampDrift
	}

	return &Validator{
		apiToken:          cfg.APIToken,
		maxContentLength:  maxLen,
		maxTimestampDrift: drift,
	}
}

func (v *Validator) CheckAuth(header string) error {
	return CheckAuth(header, v.apiToken)
}

// CheckAuth accepts exactly "Bearer <secret>". Every failure yields the same
// error. An empty secret never authenticates.
func CheckAuth(header, secret string) error {
	parts := strings.Fields(header)
	if len(parts) != 2 || parts[0] != bearerScheme || secret == "" {
		return apperrors.ErrUnauthorized
	}

	if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(secret)) != 1 {
		return apperrors.ErrUnauthorized
	}
	return nil
}

// ParseBody decodes raw into a Payload. The body must be a JSON object.
func ParseBody(raw []byte) (*Payload, error) {
	if !json.Valid(raw) {
		return nil, rejected(ReasonInvalidJSON)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, rejected(ReasonInvalidBody)
	}

	var p Payload
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, rejected(ReasonInvalidBody)
	}
	return &p, nil
}

// CheckShape coerces the payload fields and enforces the content rules.
// Non-string content is accepted in its textual form.
func (v *Validator) CheckShape(p *Payload) (models.InboundMessage, error) {
	content := strings.TrimSpace(coerceString(p.Content))
	if content == "" {
		return models.InboundMessage{}, rejected(ReasonMissingContent)
	}
	if utf8.RuneCountInString(content) > v.maxContentLength {
		return models.InboundMessage{}, rejected(ReasonContentTooLong)
	}

	ts, err := parseTimestamp(p.Timestamp)
	if err != nil {
		return models.InboundMessage{}, err
	}

	device := coerceString(p.Device)
	if device == "" {
		device = constants.DefaultDevice
	}

	return models.InboundMessage{
		Device:    device,
		Content:   content,
		Code:      coerceString(p.Code),
		Timestamp: ts,
		Targets:   coerceTargets(p.Target),
	}, nil
}

// CheckTimestamp rejects a timestamp further than the allowed drift from now.
// A zero timestamp is absent and always passes.
func (v *Validator) CheckTimestamp(ts int64, now time.Time) error {
	if ts == 0 {
		return nil
	}

	// Unsigned difference of two int64 values is exact, so no input overflows.
	nowSec := now.Unix()
	var drift uint64
	if ts > nowSec {
		drift = uint64(ts) - uint64(nowSec)
	} else {
		drift = uint64(nowSec) - uint64(ts)
	}

	if drift > uint64(v.maxTimestampDrift/time.Second) {
		return rejected(fmt.Sprintf("Timestamp drift too large: %ds", drift))
	}
	return nil
}

func rejected(reason string) *apperrors.Error {
	return apperrors.ErrValidation.WithMessage(reason)
}

// coerceString renders a raw JSON value as text: strings unquoted, numbers
// and booleans verbatim, null as "", objects and arrays as compact JSON.
func coerceString(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
		return ""
	}

	if trimmed[0] == '{' || trimmed[0] == '[' {
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err == nil {
			return buf.String()
		}
	}

	return string(trimmed)
}

func coerceTargets(raw json.RawMessage) []string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil
	}

	var targets []string
	for _, item := range items {
		if t := strings.TrimSpace(coerceString(item)); t != "" {
			targets = append(targets, t)
		}
	}
	return targets
}

// parseTimestamp accepts an integer number of seconds, a float (truncated)
// or a numeric string. Absent, null, zero and "" all mean no timestamp.
func parseTimestamp(raw json.RawMessage) (int64, error) {
	text := coerceString(raw)
	if text == "" || text == "false" {
		return 0, nil
	}

	if ts, err := strconv.ParseInt(text, 10, 64); err == nil {
		return ts, nil
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, rejected(ReasonInvalidTimestamp)
	}
	return int64(f), nil
}
