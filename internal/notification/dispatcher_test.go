package notification

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smsrelay/internal/config"
	"smsrelay/internal/logger"
	apperrors "smsrelay/pkg/errors"
	"smsrelay/pkg/models"
)

type recordingTransport struct {
	mu      sync.Mutex
	targets []string
	fail    map[string]error
	delay   time.Duration
}

func (r *recordingTransport) Send(ctx context.Context, target string, n Notification) error {
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.mu.Lock()
	r.targets = append(r.targets, target)
	r.mu.Unlock()

	return r.fail[target]
}

func TestSplitTargets(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SplitTargets(" a, b ,,c ,"))
	assert.Nil(t, SplitTargets(""))
	assert.Nil(t, SplitTargets(" , "))
}

func TestDispatcher_ResolveTargets(t *testing.T) {
	d := NewDispatcher(&recordingTransport{}, config.PushConfig{Keys: "k1,k2"}, logger.NopLogger())

	assert.Equal(t, []string{"k1", "k2"}, d.ResolveTargets(nil))
	assert.Equal(t, []string{"x"}, d.ResolveTargets([]string{"x"}))
}

func TestDispatcher_NoTargets(t *testing.T) {
	transport := &recordingTransport{}
	d := NewDispatcher(transport, config.PushConfig{Keys: " , "}, logger.NopLogger())

	_, err := d.Dispatch(context.Background(), Notification{}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsConfig(err))
	assert.Equal(t, ReasonNoTargets, apperrors.Reason(err))
	assert.Empty(t, transport.targets)
}

func TestDispatcher_PartialFailure(t *testing.T) {
	transport := &recordingTransport{
		fail: map[string]error{"badKey-123456": errors.New("device not registered")},
	}
	d := NewDispatcher(transport, config.PushConfig{Keys: "goodKey-AAAAAA,badKey-123456,goodKey-BBBBBB"}, logger.NopLogger())

	result, err := d.Dispatch(context.Background(), Notification{Title: "t", Body: "b"}, nil)
	require.NoError(t, err)

	assert.True(t, result.Success())
	assert.Equal(t, 3, result.Attempted)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, []models.PushOutcome{{Target: "badK...3456", Error: "device not registered"}}, result.Errors())
	assert.ElementsMatch(t, []string{"goodKey-AAAAAA", "badKey-123456", "goodKey-BBBBBB"}, transport.targets)
}

func TestDispatcher_AllFail(t *testing.T) {
	boom := errors.New("boom")
	transport := &recordingTransport{fail: map[string]error{"k1": boom, "k2": boom}}
	d := NewDispatcher(transport, config.PushConfig{}, logger.NopLogger())

	result, err := d.Dispatch(context.Background(), Notification{}, []string{"k1", "k2"})
	require.NoError(t, err)
	assert.False(t, result.Success())
	assert.Equal(t, 2, result.Failed)
	assert.Len(t, result.Errors(), 2)
}

func TestDispatcher_RunsInParallel(t *testing.T) {
	transport := &recordingTransport{delay: 200 * time.Millisecond}
	d := NewDispatcher(transport, config.PushConfig{}, logger.NopLogger())

	start := time.Now()
	result, err := d.Dispatch(context.Background(), Notification{}, []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)

	assert.Equal(t, 5, result.Succeeded)
	assert.Less(t, time.Since(start), 800*time.Millisecond)
}

func TestDispatcher_IgnoresCallerCancellation(t *testing.T) {
	transport := &recordingTransport{delay: 50 * time.Millisecond}
	d := NewDispatcher(transport, config.PushConfig{}, logger.NopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := d.Dispatch(ctx, Notification{}, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Succeeded)
}

func TestDispatcher_PerCallTimeout(t *testing.T) {
	transport := &recordingTransport{delay: time.Second}
	d := NewDispatcher(transport, config.PushConfig{Timeout: 50 * time.Millisecond}, logger.NopLogger())

	result, err := d.Dispatch(context.Background(), Notification{}, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Contains(t, result.Outcomes[0].Error, "deadline exceeded")
}

func TestDispatcher_WithBarkServer(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if strings.HasPrefix(r.URL.Path, "/revokedKey") {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("device token invalid"))
			return
		}
		w.Write([]byte(`{"code":200}`))
	}))
	defer srv.Close()

	cfg := testPushConfig(srv.URL)
	cfg.Keys = "firstKey0001,revokedKey02,thirdKey0003"

	transport, err := NewBarkTransport(cfg)
	require.NoError(t, err)
	d := NewDispatcher(transport, cfg, logger.NopLogger())

	result, err := d.Dispatch(context.Background(), BuildNotification("t", "4821", "code 4821", "pixel"), nil)
	require.NoError(t, err)

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, []models.PushOutcome{{Target: "revo...ey02", Error: "device token invalid"}}, result.Errors())
}
