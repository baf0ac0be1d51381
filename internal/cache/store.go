// Package cache is the namespaced key-value store shared by all plugins.
//
// A value lives under (namespace, key). Plugins usually pass their own rule
// name as the namespace, which is what keeps one plugin's entries apart from
// another's. Entries may carry a time to live.
//
// Three backends exist: an in-process map, one JSON file per entry (the
// record format is {"value", "createTime", "expireTime"} in Unix
// milliseconds, expireTime 0 meaning never), and Redis. Single-key
// read-modify-write is atomic through Update; there are no cross-key
// transactions.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("cache: store closed")

// UpdateFunc receives the current value, if any, and returns the value to
// store. Returning keep=false deletes the entry.
type UpdateFunc func(old string, found bool) (value string, keep bool, err error)

// Store is a namespaced key-value store.
type Store interface {
	// Get returns the live value for key. Expired entries are reported as
	// missing.
	Get(ctx context.Context, namespace, key string) (string, bool, error)

	// Set stores value. A ttl of zero or less never expires.
	Set(ctx context.Context, namespace, key, value string, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, namespace, key string) error

	// Update atomically replaces the value of one key. The existing ttl is
	// not preserved; ttl applies to the new value.
	Update(ctx context.Context, namespace, key string, ttl time.Duration, fn UpdateFunc) error

	// Close releases the store.
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	// Backend is "memory", "file" or "redis". Empty means memory.
	Backend string

	// Dir holds file-backend records.
	Dir string

	// CleanupInterval is how often expired records are purged. Zero
	// disables the janitor.
	CleanupInterval time.Duration

	Redis RedisConfig
}

// Open creates the store described by cfg.
func Open(ctx context.Context, cfg Config, opts ...Option) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		s := NewMemoryStore(opts...)
		if cfg.CleanupInterval > 0 {
			go s.RunJanitor(ctx, cfg.CleanupInterval)
		}
		return s, nil
	case "file":
		s, err := NewFileStore(cfg.Dir, opts...)
		if err != nil {
			return nil, err
		}
		if cfg.CleanupInterval > 0 {
			go s.RunJanitor(ctx, cfg.CleanupInterval)
		}
		return s, nil
	case "redis":
		return NewRedisStore(ctx, cfg.Redis, opts...)
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", cfg.Backend)
	}
}

// Option configures a store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// expiry returns the absolute expiry for ttl, or the zero time.
func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
