package cache

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	value  string
	expire time.Time
}

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	opts options

	mu      sync.RWMutex
	entries map[string]memEntry
	closed  bool
}

// NewMemoryStore creates an empty memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		opts:    buildOptions(opts),
		entries: make(map[string]memEntry),
	}
}

func memKey(namespace, key string) string {
	return namespace + "\x00" + key
}

func (s *MemoryStore) live(e memEntry) bool {
	return e.expire.IsZero() || s.opts.now().Before(e.expire)
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, namespace, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, ErrClosed
	}
	e, ok := s.entries[memKey(namespace, key)]
	if !ok || !s.live(e) {
		return "", false, nil
	}
	return e.value, true, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, namespace, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.entries[memKey(namespace, key)] = memEntry{value: value, expire: expiry(s.opts.now(), ttl)}
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.entries, memKey(namespace, key))
	return nil
}

// Update implements Store. fn runs with the store locked and must not call
// back into it.
func (s *MemoryStore) Update(_ context.Context, namespace, key string, ttl time.Duration, fn UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	k := memKey(namespace, key)
	var old string
	e, found := s.entries[k]
	if found && s.live(e) {
		old = e.value
	} else {
		found = false
	}
	value, keep, err := fn(old, found)
	if err != nil {
		return err
	}
	if !keep {
		delete(s.entries, k)
		return nil
	}
	s.entries[k] = memEntry{value: value, expire: expiry(s.opts.now(), ttl)}
	return nil
}

// Cleanup drops expired entries and returns how many were removed.
func (s *MemoryStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, e := range s.entries {
		if !s.live(e) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

// RunJanitor calls Cleanup every interval until ctx ends or the store
// closes.
func (s *MemoryStore) RunJanitor(ctx context.Context, interval time.Duration) {
	runJanitor(ctx, interval, func() bool {
		s.mu.RLock()
		closed := s.closed
		s.mu.RUnlock()
		if closed {
			return false
		}
		s.Cleanup()
		return true
	})
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.entries = nil
	return nil
}

// runJanitor ticks until ctx is done or tick reports false.
func runJanitor(ctx context.Context, interval time.Duration, tick func() bool) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !tick() {
				return
			}
		}
	}
}
