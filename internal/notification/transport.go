// Package notification delivers a forwarded message to push targets.
package notification

import (
	"context"
	"fmt"

	"smsrelay/pkg/circuitbreaker"
)

type Notification struct {
	Title string
	Body  string
}

// Transport performs a single delivery attempt to one target.
type Transport interface {
	Send(ctx context.Context, target string, n Notification) error
}

// CircuitBreakerTransport fails fast while the push server keeps failing.
type CircuitBreakerTransport struct {
	transport Transport
	cb        *circuitbreaker.Wrapper
	name      string
}

func NewCircuitBreakerTransport(transport Transport, name string, cfg circuitbreaker.Config) *CircuitBreakerTransport {
	return &CircuitBreakerTransport{
		transport: transport,
		cb:        circuitbreaker.NewWrapper(cfg),
		name:      name,
	}
}

func (t *CircuitBreakerTransport) Send(ctx context.Context, target string, n Notification) error {
	_, err := t.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return nil, t.transport.Send(ctx, target, n)
	})

	if err != nil {
		if t.cb.IsOpen() {
			return fmt.Errorf("circuit breaker is open for %s: %w", t.name, err)
		}
		return err
	}
	return nil
}

func (t *CircuitBreakerTransport) State() string {
	return t.cb.State().String()
}

func (t *CircuitBreakerTransport) IsOpen() bool {
	return t.cb.IsOpen()
}
