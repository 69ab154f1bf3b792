package store

import (
	"context"
	"strconv"
	"sync"
	"time"

	"smsrelay/pkg/metrics"
)

const backendMemory = "memory"

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore is a process-local Store. It is the default backend when no
// Redis server is configured and the backend used by tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type MemoryOption func(*MemoryStore)

// WithClock replaces time.Now, letting tests move time forward.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	metrics.IncStoreOperation(backendMemory, "get", boolStatus(ok, "hit", "miss"))
	return e.value, ok, nil
}

func (s *MemoryStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = s.newEntry(value, ttl)
	metrics.IncStoreOperation(backendMemory, "put", "ok")
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	metrics.IncStoreOperation(backendMemory, "delete", "ok")
	return nil
}

func (s *MemoryStore) PutIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lookup(key); ok {
		metrics.IncStoreOperation(backendMemory, "put_if_absent", "exists")
		return false, nil
	}

	s.entries[key] = s.newEntry(value, ttl)
	metrics.IncStoreOperation(backendMemory, "put_if_absent", "written")
	return true, nil
}

func (s *MemoryStore) IncrementIfBelow(ctx context.Context, key string, limit int64, ttl time.Duration) (int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	e, exists := s.lookup(key)
	if exists {
		// A non-numeric value counts as zero, mirroring a fresh counter.
		current, _ = strconv.ParseInt(e.value, 10, 64)
	}

	if current >= limit {
		metrics.IncStoreOperation(backendMemory, "increment", "at_limit")
		return current, false, nil
	}

	current++
	if exists {
		e.value = strconv.FormatInt(current, 10)
		s.entries[key] = e
	} else {
		s.entries[key] = s.newEntry(strconv.FormatInt(current, 10), ttl)
	}

	metrics.IncStoreOperation(backendMemory, "increment", "incremented")
	return current, true, nil
}

// Sweep drops expired entries and returns how many were removed. Reads already
// ignore expired entries; Sweep only bounds memory.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) lookup(key string) (memoryEntry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if e.expired(s.now()) {
		delete(s.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (s *MemoryStore) newEntry(value string, ttl time.Duration) memoryEntry {
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	return e
}
