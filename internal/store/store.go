// Package store provides the short-lived key/value state behind rate limiting
// and duplicate suppression.
package store

import (
	"context"
	"time"
)

// Store is the minimal capability every backend offers. A ttl of zero or less
// means the entry does not expire.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// AtomicStore is implemented by backends that can perform conditional writes
// atomically. Callers type-assert for it and fall back to read-then-write on
// a plain Store.
type AtomicStore interface {
	Store

	// PutIfAbsent writes value only when key is absent or expired and reports
	// whether it did. An existing entry keeps its TTL.
	PutIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// IncrementIfBelow increments the integer counter at key when its current
	// value is below limit. It returns the value after the call and whether
	// the increment happened. A freshly created counter gets ttl.
	IncrementIfBelow(ctx context.Context, key string, limit int64, ttl time.Duration) (int64, bool, error)
}
