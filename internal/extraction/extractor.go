// Package extraction finds verification codes in free-text messages.
package extraction

import (
	"regexp"
	"strings"
)

// Rule is one entry of the priority-ordered extraction table. Pattern must
// capture the code in its first group.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

// Rules are evaluated in order and the first match wins.
var Rules = []Rule{
	{
		Name:    "keyword_before",
		Pattern: regexp.MustCompile(`(?i)(?:验证码|校验码|确认码|动态码|安全码|code)[是为：:\s]*(\d{4,8})`),
	},
	{
		Name:    "keyword_after",
		Pattern: regexp.MustCompile(`(\d{4,8})(?:\s*(?:是|为)?(?:您的)?(?:验证码|校验码|确认码|动态码|安全码))`),
	},
	{
		Name:    "english_keyword",
		Pattern: regexp.MustCompile(`(?i)(?:code|verification|verify|otp)[:\s]*(?:is[:\s]*)?(\d{4,8})`),
	},
	{
		Name:    "bare_six_digits",
		Pattern: regexp.MustCompile(`\b(\d{6})\b`),
	},
	{
		Name:    "bare_four_digits",
		Pattern: regexp.MustCompile(`\b(\d{4})\b`),
	},
}

var verificationKeywords = []string{
	"验证码", "校验码", "确认码", "动态码", "安全码",
	"code", "verification", "verify", "otp", "pin",
}

// Extractor applies a rule table. The zero value is not usable; see New.
type Extractor struct {
	rules []Rule
	onHit func(rule string)
}

type Option func(*Extractor)

// WithRuleHitHook registers a callback invoked with the name of the rule that
// produced a code.
func WithRuleHitHook(fn func(rule string)) Option {
	return func(e *Extractor) {
		e.onHit = fn
	}
}

func New(opts ...Option) *Extractor {
	e := &Extractor{rules: Rules}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the first rule's captured code, or "" when no rule matches.
func (e *Extractor) Extract(text string) string {
	code, rule := e.ExtractWithRule(text)
	if rule != "" && e.onHit != nil {
		e.onHit(rule)
	}
	return code
}

// ExtractWithRule is Extract that also reports which rule fired.
func (e *Extractor) ExtractWithRule(text string) (code, rule string) {
	for _, r := range e.rules {
		if m := r.Pattern.FindStringSubmatch(text); len(m) > 1 && m[1] != "" {
			return m[1], r.Name
		}
	}
	return "", ""
}

// LooksLikeVerification reports whether text mentions a verification keyword.
// It is consulted only when no code was extracted.
func LooksLikeVerification(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range verificationKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
