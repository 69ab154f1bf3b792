package store

import (
	"context"
	"fmt"
	"time"

	"smsrelay/internal/config"
	"smsrelay/pkg/circuitbreaker"
)

// CircuitBreakerStore guards a backend with a circuit breaker so that a
// failing Redis is not hammered by every request. With the breaker disabled
// calls pass straight through.
type CircuitBreakerStore struct {
	store AtomicStore
	cb    *circuitbreaker.Wrapper
}

func NewCircuitBreakerStore(s AtomicStore, cfg config.CircuitBreakerConfig) *CircuitBreakerStore {
	if !cfg.Enabled {
		return &CircuitBreakerStore{store: s}
	}

	cbConfig := circuitbreaker.DefaultConfig("store").
		WithThresholds(cfg.MaxRequests, cfg.Interval, cfg.Timeout, cfg.FailureRatio, cfg.MinRequests)

	return &CircuitBreakerStore{
		store: s,
		cb:    circuitbreaker.NewWrapper(cbConfig),
	}
}

func (s *CircuitBreakerStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.cb == nil {
		return s.store.Get(ctx, key)
	}

	type getResult struct {
		value string
		found bool
	}

	result, err := s.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		value, found, err := s.store.Get(ctx, key)
		return getResult{value: value, found: found}, err
	})
	if err != nil {
		return "", false, s.wrapError(err)
	}

	r := result.(getResult)
	return r.value, r.found, nil
}

func (s *CircuitBreakerStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if s.cb == nil {
		return s.store.Put(ctx, key, value, ttl)
	}

	_, err := s.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return nil, s.store.Put(ctx, key, value, ttl)
	})
	return s.wrapError(err)
}

func (s *CircuitBreakerStore) Delete(ctx context.Context, key string) error {
	if s.cb == nil {
		return s.store.Delete(ctx, key)
	}

	_, err := s.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return nil, s.store.Delete(ctx, key)
	})
	return s.wrapError(err)
}

func (s *CircuitBreakerStore) PutIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if s.cb == nil {
		return s.store.PutIfAbsent(ctx, key, value, ttl)
	}

	result, err := s.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return s.store.PutIfAbsent(ctx, key, value, ttl)
	})
	if err != nil {
		return false, s.wrapError(err)
	}

	written, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("store returned invalid result type")
	}
	return written, nil
}

func (s *CircuitBreakerStore) IncrementIfBelow(ctx context.Context, key string, limit int64, ttl time.Duration) (int64, bool, error) {
	if s.cb == nil {
		return s.store.IncrementIfBelow(ctx, key, limit, ttl)
	}

	type incrResult struct {
		count       int64
		incremented bool
	}

	result, err := s.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		count, incremented, err := s.store.IncrementIfBelow(ctx, key, limit, ttl)
		return incrResult{count: count, incremented: incremented}, err
	})
	if err != nil {
		return 0, false, s.wrapError(err)
	}

	r := result.(incrResult)
	return r.count, r.incremented, nil
}

func (s *CircuitBreakerStore) State() string {
	if s.cb == nil {
		return "disabled"
	}
	return s.cb.State().String()
}

func (s *CircuitBreakerStore) IsOpen() bool {
	if s.cb == nil {
		return false
	}
	return s.cb.IsOpen()
}

func (s *CircuitBreakerStore) wrapError(err error) error {
	if err == nil {
		return nil
	}
	if s.cb.IsOpen() {
		return fmt.Errorf("circuit breaker is open for store: %w", err)
	}
	return err
}
