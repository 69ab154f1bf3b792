package deduplication

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smsrelay/internal/config"
	"smsrelay/internal/logger"
	"smsrelay/internal/store"
	apperrors "smsrelay/pkg/errors"
	"smsrelay/pkg/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type plainStore struct {
	store.Store
}

type brokenStore struct{}

var errUnreachable = errors.New("store unreachable")

func (brokenStore) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, errUnreachable
}

func (brokenStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	return errUnreachable
}

func (brokenStore) Delete(ctx context.Context, key string) error {
	return errUnreachable
}

var msg = models.InboundMessage{Device: "pixel", Content: "Your code is 4821"}

func TestCheckAndMark_FirstWriterWins(t *testing.T) {
	backends := []struct {
		name  string
		build func(clock *fakeClock) store.Store
	}{
		{name: "atomic", build: func(clock *fakeClock) store.Store {
			return store.NewMemoryStore(store.WithClock(clock.Now))
		}},
		{name: "read then write", build: func(clock *fakeClock) store.Store {
			return plainStore{store.NewMemoryStore(store.WithClock(clock.Now))}
		}},
	}

	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
			svc := NewService(b.build(clock), config.DeduplicationConfig{TTLSeconds: 300}, logger.NopLogger(), WithClock(clock.Now))

			res, err := svc.CheckAndMark(ctx, "4821", msg)
			require.NoError(t, err)
			assert.Equal(t, Result{Marked: true}, res)

			clock.Advance(299 * time.Second)
			res, err = svc.CheckAndMark(ctx, "4821", msg)
			require.NoError(t, err)
			assert.True(t, res.IsDuplicate)

			// The duplicate hit did not refresh the TTL.
			clock.Advance(time.Second)
			res, err = svc.CheckAndMark(ctx, "4821", msg)
			require.NoError(t, err)
			assert.False(t, res.IsDuplicate)
			assert.True(t, res.Marked)
		})
	}
}

func TestCheckAndMark_EmptyCodeSkipped(t *testing.T) {
	s := store.NewMemoryStore()
	svc := NewService(s, config.DeduplicationConfig{}, logger.NopLogger())

	for i := 0; i < 2; i++ {
		res, err := svc.CheckAndMark(context.Background(), "", msg)
		require.NoError(t, err)
		assert.Equal(t, Result{}, res)
	}
	assert.Zero(t, s.Len())
}

func TestCheckAndMark_MarkerPayload(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_123)}
	s := store.NewMemoryStore(store.WithClock(clock.Now))
	svc := NewService(s, config.DeduplicationConfig{}, logger.NopLogger(), WithClock(clock.Now))

	long := models.InboundMessage{Device: "pixel", Content: strings.Repeat("码", 150)}
	_, err := svc.CheckAndMark(ctx, "123456", long)
	require.NoError(t, err)

	raw, found, err := s.Get(ctx, "sms:123456")
	require.NoError(t, err)
	require.True(t, found)

	var marker models.DedupMarker
	require.NoError(t, json.Unmarshal([]byte(raw), &marker))
	assert.Equal(t, "pixel", marker.Device)
	assert.Equal(t, int64(1_700_000_000_123), marker.Timestamp)
	assert.Equal(t, strings.Repeat("码", 100), marker.Content)
}

func TestCheckAndMark_ConcurrentSameCode(t *testing.T) {
	svc := NewService(store.NewMemoryStore(), config.DeduplicationConfig{}, logger.NopLogger())

	var wg sync.WaitGroup
	var mu sync.Mutex
	marked := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.CheckAndMark(context.Background(), "777777", msg)
			if err == nil && res.Marked {
				mu.Lock()
				marked++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, marked)
}

func TestCheckAndMark_StoreErrorFallback(t *testing.T) {
	tests := []struct {
		name    string
		onError string
		wantErr bool
	}{
		{name: "allow by default", onError: ""},
		{name: "allow", onError: "allow"},
		{name: "deny", onError: "DENY", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(brokenStore{}, config.DeduplicationConfig{OnStoreError: tt.onError}, logger.NopLogger())

			res, err := svc.CheckAndMark(context.Background(), "4821", msg)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
				assert.ErrorIs(t, err, errUnreachable)
				return
			}
			require.NoError(t, err)
			assert.False(t, res.IsDuplicate)
			assert.False(t, res.Marked)
		})
	}
}

func TestRelease(t *testing.T) {
	ctx := context.Background()
	svc := NewService(store.NewMemoryStore(), config.DeduplicationConfig{ReleaseOnDispatchFailure: true}, logger.NopLogger())
	assert.True(t, svc.ReleaseOnDispatchFailure())

	_, err := svc.CheckAndMark(ctx, "4821", msg)
	require.NoError(t, err)
	require.NoError(t, svc.Release(ctx, "4821"))

	res, err := svc.CheckAndMark(ctx, "4821", msg)
	require.NoError(t, err)
	assert.True(t, res.Marked)

	assert.NoError(t, svc.Release(ctx, ""))
}
