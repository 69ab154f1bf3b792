package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"smsrelay/internal/config"
	"smsrelay/internal/logger"
)

func TestBase_Shutdown(t *testing.T) {
	b := NewBase(&config.Config{}, logger.NopLogger())

	assert.NoError(t, b.Shutdown(context.Background(), nil))
	assert.NoError(t, b.Shutdown(context.Background(), func(ctx context.Context) []error { return nil }))

	err := b.Shutdown(context.Background(), func(ctx context.Context) []error {
		return []error{errors.New("server close failed")}
	})
	assert.ErrorContains(t, err, "server close failed")
}
