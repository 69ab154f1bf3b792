package validation

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smsrelay/internal/config"
	apperrors "smsrelay/pkg/errors"
)

func newTestValidator() *Validator {
	return NewValidator(config.RelayConfig{
		APIToken:          "s3cret-token",
		MaxContentLength:  1000,
		MaxTimestampDrift: 5 * time.Minute,
	})
}

func TestCheckAuth(t *testing.T) {
	tests := []struct {
		name   string
		header string
		secret string
		valid  bool
	}{
		{name: "valid", header: "Bearer s3cret-token", secret: "s3cret-token", valid: true},
		{name: "surrounding whitespace", header: "  Bearer s3cret-token ", secret: "s3cret-token", valid: true},
		{name: "missing header", header: "", secret: "s3cret-token"},
		{name: "wrong scheme", header: "Basic s3cret-token", secret: "s3cret-token"},
		{name: "lowercase scheme", header: "bearer s3cret-token", secret: "s3cret-token"},
		{name: "scheme only", header: "Bearer", secret: "s3cret-token"},
		{name: "extra parts", header: "Bearer s3cret-token extra", secret: "s3cret-token"},
		{name: "mismatch", header: "Bearer other", secret: "s3cret-token"},
		{name: "prefix of secret", header: "Bearer s3cret", secret: "s3cret-token"},
		{name: "empty secret", header: "Bearer ", secret: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckAuth(tt.header, tt.secret)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.IsUnauthorized(err))
			assert.Equal(t, "Unauthorized", apperrors.Reason(err))
		})
	}
}

func TestParseBody(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		reason string
	}{
		{name: "object", body: `{"content":"hi"}`},
		{name: "empty object", body: `{}`},
		{name: "malformed", body: `{"content":`, reason: ReasonInvalidJSON},
		{name: "empty body", body: ``, reason: ReasonInvalidJSON},
		{name: "array", body: `[1,2]`, reason: ReasonInvalidBody},
		{name: "string", body: `"hello"`, reason: ReasonInvalidBody},
		{name: "null", body: `null`, reason: ReasonInvalidBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParseBody([]byte(tt.body))
			if tt.reason == "" {
				require.NoError(t, err)
				assert.NotNil(t, p)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.Equal(t, tt.reason, apperrors.Reason(err))
		})
	}
}

func TestCheckShape_Content(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name    string
		body    string
		content string
		reason  string
	}{
		{name: "string trimmed", body: `{"content":"  code 1234  "}`, content: "code 1234"},
		{name: "number coerced", body: `{"content":123456}`, content: "123456"},
		{name: "bool coerced", body: `{"content":true}`, content: "true"},
		{name: "object coerced", body: `{"content":{"a": 1}}`, content: `{"a":1}`},
		{name: "missing", body: `{"code":"1234"}`, reason: ReasonMissingContent},
		{name: "null", body: `{"content":null}`, reason: ReasonMissingContent},
		{name: "whitespace only", body: `{"content":"   \n\t"}`, reason: ReasonMissingContent},
		{name: "exactly max", body: `{"content":"` + strings.Repeat("a", 1000) + `"}`, content: strings.Repeat("a", 1000)},
		{name: "too long", body: `{"content":"` + strings.Repeat("a", 1001) + `"}`, reason: ReasonContentTooLong},
		{name: "multibyte counted as runes", body: `{"content":"` + strings.Repeat("码", 1000) + `"}`, content: strings.Repeat("码", 1000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParseBody([]byte(tt.body))
			require.NoError(t, err)

			msg, err := v.CheckShape(p)
			if tt.reason != "" {
				require.Error(t, err)
				assert.True(t, apperrors.IsValidation(err))
				assert.Equal(t, tt.reason, apperrors.Reason(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.content, msg.Content)
		})
	}
}

func TestCheckShape_OptionalFields(t *testing.T) {
	v := newTestValidator()

	p, err := ParseBody([]byte(`{"content":"hi"}`))
	require.NoError(t, err)
	msg, err := v.CheckShape(p)
	require.NoError(t, err)
	assert.Equal(t, "unknown", msg.Device)
	assert.Empty(t, msg.Code)
	assert.Zero(t, msg.Timestamp)
	assert.Nil(t, msg.Targets)

	p, err = ParseBody([]byte(`{"content":"hi","device":"pixel","code":"9988","timestamp":1700000000,"target":["k1"," ","k2"]}`))
	require.NoError(t, err)
	msg, err = v.CheckShape(p)
	require.NoError(t, err)
	assert.Equal(t, "pixel", msg.Device)
	assert.Equal(t, "9988", msg.Code)
	assert.Equal(t, int64(1700000000), msg.Timestamp)
	assert.Equal(t, []string{"k1", "k2"}, msg.Targets)

	p, err = ParseBody([]byte(`{"content":"hi","target":"k1"}`))
	require.NoError(t, err)
	msg, err = v.CheckShape(p)
	require.NoError(t, err)
	assert.Nil(t, msg.Targets, "non-array target is ignored")
}

func TestCheckShape_Timestamp(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name    string
		raw     string
		want    int64
		invalid bool
	}{
		{name: "integer", raw: `1700000000`, want: 1700000000},
		{name: "float truncated", raw: `1700000000.9`, want: 1700000000},
		{name: "numeric string", raw: `"1700000000"`, want: 1700000000},
		{name: "zero", raw: `0`, want: 0},
		{name: "null", raw: `null`, want: 0},
		{name: "empty string", raw: `""`, want: 0},
		{name: "garbage string", raw: `"yesterday"`, invalid: true},
		{name: "object", raw: `{}`, invalid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParseBody([]byte(`{"content":"hi","timestamp":` + tt.raw + `}`))
			require.NoError(t, err)

			msg, err := v.CheckShape(p)
			if tt.invalid {
				require.Error(t, err)
				assert.Equal(t, ReasonInvalidTimestamp, apperrors.Reason(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, msg.Timestamp)
		})
	}
}

func TestCheckTimestamp(t *testing.T) {
	v := newTestValidator()
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name   string
		ts     int64
		reason string
	}{
		{name: "absent", ts: 0},
		{name: "exact", ts: now.Unix()},
		{name: "past within drift", ts: now.Unix() - 300},
		{name: "future within drift", ts: now.Unix() + 300},
		{name: "past beyond drift", ts: now.Unix() - 301, reason: "Timestamp drift too large: 301s"},
		{name: "future beyond drift", ts: now.Unix() + 900, reason: "Timestamp drift too large: 900s"},
		{name: "min int64 offset", ts: now.Unix() + math.MinInt64, reason: "Timestamp drift too large: 9223372036854775808s"},
		{name: "max int64", ts: math.MaxInt64, reason: "Timestamp drift too large: 9223372035154775807s"},
		{name: "min int64", ts: math.MinInt64, reason: "Timestamp drift too large: 9223372038554775808s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.CheckTimestamp(tt.ts, now)
			if tt.reason == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.Equal(t, tt.reason, apperrors.Reason(err))
		})
	}
}
