// Package pipeline sequences authentication, validation, rate limiting, code
// extraction, deduplication and delivery for one forward request.
package pipeline

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"smsrelay/internal/constants"
	"smsrelay/internal/deduplication"
	"smsrelay/internal/extraction"
	"smsrelay/internal/logger"
	"smsrelay/internal/notification"
	"smsrelay/internal/ratelimiting"
	"smsrelay/internal/validation"
	apperrors "smsrelay/pkg/errors"
	"smsrelay/pkg/logging"
	"smsrelay/pkg/metrics"
	"smsrelay/pkg/tracing"
)

const reasonBodyTooLarge = "Request body too large"

type Request struct {
	AuthHeader string
	Body       io.Reader
	// Debug is the per-request debug switch (query parameter).
	Debug bool
}

type Dependencies struct {
	Validator  *validation.Validator
	Limiter    *ratelimiting.Limiter
	Extractor  *extraction.Extractor
	Dedup      *deduplication.Service
	Dispatcher *notification.Dispatcher
}

type Pipeline struct {
	deps   Dependencies
	title  string
	debug  bool
	now    func() time.Time
	logger logger.Logger
}

type Option func(*Pipeline)

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// WithDebug turns debug mode on for every request.
func WithDebug(debug bool) Option {
	return func(p *Pipeline) {
		p.debug = debug
	}
}

func WithTitle(title string) Option {
	return func(p *Pipeline) {
		if title != "" {
			p.title = title
		}
	}
}

func New(deps Dependencies, log logger.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		deps:   deps,
		title:  constants.DefaultPushTitle,
		now:    time.Now,
		logger: log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs the request through every stage, stopping at the first one
// that produces a terminal decision.
func (p *Pipeline) Process(ctx context.Context, req Request) Decision {
	ctx, span := tracing.GetTracer(constants.ServiceName).Start(ctx, "pipeline.process")
	defer span.End()

	start := time.Now()
	d := p.process(ctx, req)

	span.SetAttributes(attribute.String("relay.decision", string(d.Kind)))
	metrics.IncRelayRequest(string(d.Kind))
	metrics.ObserveRelayDuration(time.Since(start), string(d.Kind))
	return d
}

func (p *Pipeline) process(ctx context.Context, req Request) Decision {
	if err := p.deps.Validator.CheckAuth(req.AuthHeader); err != nil {
		p.logger.WarnwCtx(ctx, "Auth failed")
		return Unauthorized()
	}

	raw, err := readBody(req.Body)
	if err != nil {
		return Rejected(apperrors.Reason(err))
	}

	payload, err := validation.ParseBody(raw)
	if err != nil {
		return Rejected(apperrors.Reason(err))
	}

	msg, err := p.deps.Validator.CheckShape(payload)
	if err != nil {
		return Rejected(apperrors.Reason(err))
	}

	ctx = logging.WithDevice(ctx, msg.Device)
	p.logger.InfowCtx(ctx, "Received SMS forward request",
		"content_length", len(msg.Content),
		"has_code", msg.Code != "",
	)

	if err := p.deps.Validator.CheckTimestamp(msg.Timestamp, p.now()); err != nil {
		return Rejected(apperrors.Reason(err))
	}

	rl := p.deps.Limiter.Allow(ctx, msg.Device)
	if !rl.Allowed {
		p.logger.WarnwCtx(ctx, "Rate limit exceeded")
		return Decision{Kind: KindRateLimited, Reason: p.deps.Limiter.ExceededMessage(), RateLimit: &rl}
	}

	code := msg.Code
	if code == "" {
		code = p.deps.Extractor.Extract(msg.Content)
	}

	if code == "" && !extraction.LooksLikeVerification(msg.Content) {
		p.logger.InfowCtx(ctx, "Skipped: not a verification SMS")
		return Decision{Kind: KindSkippedNonCode, RateLimit: &rl}
	}

	dedup, err := p.deps.Dedup.CheckAndMark(ctx, code, msg)
	if err != nil {
		// Either the deny fallback or a cancelled request context.
		p.logger.WarnwCtx(ctx, "Dedup check failed", "error", err)
		return Decision{Kind: KindStoreUnavailable, Code: code, RateLimit: &rl}
	}
	if dedup.IsDuplicate {
		return Decision{Kind: KindSkippedDuplicate, Code: code, RateLimit: &rl}
	}

	if req.Debug || p.debug {
		p.logger.InfowCtx(ctx, "Debug mode: skipping push")
		return Decision{Kind: KindDebugAccepted, Code: code, RateLimit: &rl}
	}

	n := notification.BuildNotification(p.title, code, msg.Content, msg.Device)
	result, err := p.deps.Dispatcher.Dispatch(ctx, n, msg.Targets)
	if err != nil || !result.Success() {
		d := Decision{Kind: KindDispatchFailed, Code: code, Dispatch: result, RateLimit: &rl}
		if err != nil {
			d.Reason = apperrors.Reason(err)
		}
		p.logger.ErrorwCtx(ctx, "Push failed",
			"attempted", result.Attempted,
			"failed", result.Failed,
			"reason", d.Reason,
		)
		p.releaseMarker(ctx, code, dedup)
		return d
	}

	p.logger.InfowCtx(ctx, "SMS forwarded",
		"pushed", result.Succeeded,
		"failed", result.Failed,
	)
	return Decision{Kind: KindForwarded, Code: code, Dispatch: result, RateLimit: &rl}
}

func (p *Pipeline) releaseMarker(ctx context.Context, code string, dedup deduplication.Result) {
	if !dedup.Marked || !p.deps.Dedup.ReleaseOnDispatchFailure() {
		return
	}
	if err := p.deps.Dedup.Release(context.WithoutCancel(ctx), code); err != nil {
		p.logger.WarnwCtx(ctx, "Failed to release dedup marker", "error", err)
	}
}

func readBody(r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, nil
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperrors.ErrValidation.WithMessage(reasonBodyTooLarge)
		}
		return nil, apperrors.ErrValidation.WithMessage(validation.ReasonInvalidJSON)
	}
	return raw, nil
}
