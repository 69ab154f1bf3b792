// Package ratelimiting enforces a per-device request budget over fixed
// time windows kept in the shared store.
package ratelimiting

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"smsrelay/internal/config"
	"smsrelay/internal/constants"
	"smsrelay/internal/logger"
	"smsrelay/internal/store"
	"smsrelay/pkg/metrics"
)

type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
}

type Limiter struct {
	store       store.Store
	maxRequests int
	window      time.Duration
	now         func() time.Time
	logger      logger.Logger
}

type Option func(*Limiter)

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

func NewLimiter(s store.Store, cfg config.RateLimitConfig, log logger.Logger, opts ...Option) *Limiter {
	maxRequests := cfg.MaxRequests
	if maxRequests <= 0 {
		maxRequests = constants.DefaultRateLimitMaxRequests
	}
	window := cfg.Window
	if window < time.Second {
		window = constants.DefaultRateLimitWindow
	}

	l := &Limiter{
		store:       s,
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
		logger:      log,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow consumes one request from identity's budget in the current window.
// A denied request does not touch the counter. Store failures fail open.
func (l *Limiter) Allow(ctx context.Context, identity string) Result {
	key := l.key(identity)

	var (
		res Result
		err error
	)
	if atomic, ok := l.store.(store.AtomicStore); ok {
		res, err = l.allowAtomic(ctx, atomic, key)
	} else {
		res, err = l.allowReadWrite(ctx, key)
	}

	if err != nil {
		metrics.IncRateLimit("device", "store_error")
		metrics.FallbackUsageTotal.WithLabelValues("rate_limit", "allow_on_error").Inc()
		l.logger.WarnwCtx(ctx, "Rate limit store error, allowing request",
			"error", err,
		)
		return Result{Allowed: true, Limit: l.maxRequests, Remaining: l.maxRequests}
	}

	if res.Allowed {
		metrics.IncRateLimit("device", "allowed")
	} else {
		metrics.IncRateLimit("device", "limited")
	}
	return res
}

func (l *Limiter) allowAtomic(ctx context.Context, s store.AtomicStore, key string) (Result, error) {
	count, incremented, err := s.IncrementIfBelow(ctx, key, int64(l.maxRequests), l.window)
	if err != nil {
		return Result{}, err
	}
	if !incremented {
		return Result{Allowed: false, Limit: l.maxRequests}, nil
	}
	return Result{Allowed: true, Limit: l.maxRequests, Remaining: l.remaining(int(count))}, nil
}

func (l *Limiter) allowReadWrite(ctx context.Context, key string) (Result, error) {
	val, found, err := l.store.Get(ctx, key)
	if err != nil {
		return Result{}, err
	}

	count := 0
	if found {
		count, _ = strconv.Atoi(val)
	}

	if count >= l.maxRequests {
		return Result{Allowed: false, Limit: l.maxRequests}, nil
	}

	count++
	if err := l.store.Put(ctx, key, strconv.Itoa(count), l.window); err != nil {
		return Result{}, err
	}
	return Result{Allowed: true, Limit: l.maxRequests, Remaining: l.remaining(count)}, nil
}

func (l *Limiter) remaining(countAfter int) int {
	if r := l.maxRequests - countAfter; r > 0 {
		return r
	}
	return 0
}

func (l *Limiter) key(identity string) string {
	bucket := l.now().Unix() / int64(l.window/time.Second)
	return fmt.Sprintf("%s%s:%d", constants.CacheKeyPrefixRate, identity, bucket)
}

func (l *Limiter) MaxRequests() int {
	return l.maxRequests
}

// ExceededMessage is the client-facing text for a denied request.
func (l *Limiter) ExceededMessage() string {
	if l.window == time.Minute {
		return fmt.Sprintf("Rate limit exceeded. Max %d requests per minute.", l.maxRequests)
	}
	return fmt.Sprintf("Rate limit exceeded. Max %d requests per %s.", l.maxRequests, l.window)
}
