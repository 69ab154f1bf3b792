// Package deduplication suppresses repeated forwarding of the same
// verification code within a TTL.
package deduplication

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"smsrelay/internal/config"
	"smsrelay/internal/constants"
	"smsrelay/internal/logger"
	"smsrelay/internal/store"
	apperrors "smsrelay/pkg/errors"
	"smsrelay/pkg/metrics"
	"smsrelay/pkg/models"
	"smsrelay/pkg/tracing"
)

type Result struct {
	IsDuplicate bool
	// Marked is true when this call wrote the marker.
	Marked bool
}

// Service implements the dedup cache on top of the shared store.
type Service struct {
	store  store.Store
	cfg    config.DeduplicationConfig
	ttl    time.Duration
	logger logger.Logger
	now    func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(s store.Store, cfg config.DeduplicationConfig, log logger.Logger, opts ...Option) *Service {
	if cfg.TTLSeconds <= 0 {
		cfg.TTLSeconds = constants.DefaultDedupTTLSeconds
	}
	if cfg.ContentPrefixLength <= 0 {
		cfg.ContentPrefixLength = constants.DefaultContentPrefixLength
	}
	if cfg.OnStoreError == "" {
		cfg.OnStoreError = constants.FallbackAllow
	}
	cfg.OnStoreError = strings.ToLower(cfg.OnStoreError)

	svc := &Service{
		store:  s,
		cfg:    cfg,
		ttl:    time.Duration(cfg.TTLSeconds) * time.Second,
		logger: log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// CheckAndMark reports whether code was already seen and, if not, records it
// before returning. An empty code is never deduplicated. An existing marker is
// left untouched.
func (s *Service) CheckAndMark(ctx context.Context, code string, msg models.InboundMessage) (Result, error) {
	if code == "" {
		return Result{}, nil
	}

	ctx, span := tracing.GetTracer(constants.ServiceName).Start(ctx, "deduplication.check_and_mark")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	marker, err := s.buildMarker(msg)
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode dedup marker: %w", err)
	}

	key := Key(code)
	start := time.Now()

	var isNew bool
	if atomic, ok := s.store.(store.AtomicStore); ok {
		isNew, err = atomic.PutIfAbsent(ctx, key, marker, s.ttl)
	} else {
		isNew, err = s.checkThenPut(ctx, key, marker)
	}
	duration := time.Since(start)

	if err != nil {
		return s.handleStoreError(ctx, err, duration)
	}

	s.recordMetrics(duration, isNew)
	if !isNew {
		s.logger.InfowCtx(ctx, "Duplicate code detected")
		return Result{IsDuplicate: true}, nil
	}
	return Result{Marked: true}, nil
}

// Release deletes the marker for code so a retry can be forwarded.
func (s *Service) Release(ctx context.Context, code string) error {
	if code == "" {
		return nil
	}
	if err := s.store.Delete(ctx, Key(code)); err != nil {
		return fmt.Errorf("failed to release dedup marker: %w", err)
	}
	metrics.DeduplicateMessagesTotal.WithLabelValues("released").Inc()
	return nil
}

// ReleaseOnDispatchFailure reports whether markers should be released when
// every push target failed.
func (s *Service) ReleaseOnDispatchFailure() bool {
	return s.cfg.ReleaseOnDispatchFailure
}

func Key(code string) string {
	return constants.CacheKeyPrefixDedup + code
}

func (s *Service) checkThenPut(ctx context.Context, key, marker string) (bool, error) {
	_, found, err := s.store.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if found {
		return false, nil
	}
	if err := s.store.Put(ctx, key, marker, s.ttl); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) buildMarker(msg models.InboundMessage) (string, error) {
	data, err := json.Marshal(models.DedupMarker{
		Device:    msg.Device,
		Timestamp: s.now().UnixMilli(),
		Content:   prefix(msg.Content, s.cfg.ContentPrefixLength),
	})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *Service) handleStoreError(ctx context.Context, err error, duration time.Duration) (Result, error) {
	s.recordMetricsWithStatus(duration, "error")

	if s.cfg.OnStoreError == constants.FallbackDeny {
		metrics.FallbackUsageTotal.WithLabelValues("deduplication", "deny_on_error").Inc()
		s.logger.ErrorwCtx(ctx, "Dedup store error, rejecting request (fallback: deny)",
			"error", err,
		)
		return Result{}, apperrors.Wrap(err, apperrors.ErrStoreUnavailable)
	}

	metrics.FallbackUsageTotal.WithLabelValues("deduplication", "allow_on_error").Inc()
	s.logger.WarnwCtx(ctx, "Dedup store error, forwarding without marker (fallback: allow)",
		"error", err,
	)
	return Result{}, nil
}

func (s *Service) recordMetrics(duration time.Duration, isUnique bool) {
	status := "duplicate"
	if isUnique {
		status = "unique"
	}
	s.recordMetricsWithStatus(duration, status)
}

func (s *Service) recordMetricsWithStatus(duration time.Duration, status string) {
	metrics.DeduplicateMessagesTotal.WithLabelValues(status).Inc()
	metrics.ObserveDedupDuration(duration, status)
}

func prefix(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
