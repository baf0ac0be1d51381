package cache

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type storeFactory func(t *testing.T, clock *fakeClock) Store

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T, clock *fakeClock) Store {
			return NewMemoryStore(WithClock(clock.Now))
		},
		"file": func(t *testing.T, clock *fakeClock) Store {
			s, err := NewFileStore(t.TempDir(), WithClock(clock.Now))
			require.NoError(t, err)
			return s
		},
	}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()

	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			clock := newFakeClock()
			s := factory(t, clock)
			defer s.Close()

			_, found, err := s.Get(ctx, "site", "missing")
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, s.Set(ctx, "site", "token", "abc", 0))
			v, found, err := s.Get(ctx, "site", "token")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, "abc", v)

			_, found, _ = s.Get(ctx, "other", "token")
			assert.False(t, found, "namespaces are separate")

			require.NoError(t, s.Delete(ctx, "site", "token"))
			_, found, _ = s.Get(ctx, "site", "token")
			assert.False(t, found)
			require.NoError(t, s.Delete(ctx, "site", "token"), "deleting twice is fine")
		})
	}
}

func TestStoreTTL(t *testing.T) {
	ctx := context.Background()

	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			clock := newFakeClock()
			s := factory(t, clock)
			defer s.Close()

			require.NoError(t, s.Set(ctx, "ns", "short", "v", 10*time.Second))
			require.NoError(t, s.Set(ctx, "ns", "forever", "v", 0))

			clock.Advance(5 * time.Second)
			_, found, _ := s.Get(ctx, "ns", "short")
			assert.True(t, found, "not yet expired")

			clock.Advance(6 * time.Second)
			_, found, _ = s.Get(ctx, "ns", "short")
			assert.False(t, found, "expired")

			clock.Advance(1000 * time.Hour)
			_, found, _ = s.Get(ctx, "ns", "forever")
			assert.True(t, found, "no ttl never expires")
		})
	}
}

func TestStoreUpdateIsAtomic(t *testing.T) {
	ctx := context.Background()

	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			s := factory(t, newFakeClock())
			defer s.Close()

			incr := func(old string, found bool) (string, bool, error) {
				n := 0
				if found {
					n, _ = strconv.Atoi(old)
				}
				return strconv.Itoa(n + 1), true, nil
			}

			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < 10; j++ {
						assert.NoError(t, s.Update(ctx, "ns", "counter", 0, incr))
					}
				}()
			}
			wg.Wait()

			v, _, err := s.Get(ctx, "ns", "counter")
			require.NoError(t, err)
			assert.Equal(t, "200", v)
		})
	}
}

func TestStoreUpdateDeleteAndError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			s := factory(t, newFakeClock())
			defer s.Close()

			require.NoError(t, s.Set(ctx, "ns", "k", "v", 0))

			err := s.Update(ctx, "ns", "k", 0, func(string, bool) (string, bool, error) {
				return "", false, boom
			})
			assert.ErrorIs(t, err, boom)
			v, _, _ := s.Get(ctx, "ns", "k")
			assert.Equal(t, "v", v, "failed update leaves value")

			require.NoError(t, s.Update(ctx, "ns", "k", 0, func(old string, found bool) (string, bool, error) {
				assert.Equal(t, "v", old)
				assert.True(t, found)
				return "", false, nil
			}))
			_, found, _ := s.Get(ctx, "ns", "k")
			assert.False(t, found)
		})
	}
}

func TestStoreClosed(t *testing.T) {
	ctx := context.Background()

	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			s := factory(t, newFakeClock())
			require.NoError(t, s.Close())

			_, _, err := s.Get(ctx, "ns", "k")
			assert.ErrorIs(t, err, ErrClosed)
			assert.ErrorIs(t, s.Set(ctx, "ns", "k", "v", 0), ErrClosed)
		})
	}
}

func TestFileStoreRecordFormat(t *testing.T) {
	clock := newFakeClock()
	s, err := NewFileStore(t.TempDir(), WithClock(clock.Now))
	require.NoError(t, err)

	require.NoError(t, s.Set(context.Background(), "my site", "a/b", "hello", time.Minute))

	p := s.Path("my site", "a/b")
	assert.Equal(t, s.Dir(), filepath.Dir(p))
	assert.Regexp(t, `^my_site_a_b-[0-9a-f]{16}\.json$`, filepath.Base(p))

	data, err := os.ReadFile(p)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "hello", raw["value"])
	assert.EqualValues(t, clock.Now().UnixMilli(), raw["createTime"])
	assert.EqualValues(t, clock.Now().Add(time.Minute).UnixMilli(), raw["expireTime"])
}

func TestFileStoreReadsForeignRecord(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	rec := `{"value": "cookie=1", "createTime": 1700000000000, "expireTime": 0}`
	require.NoError(t, os.WriteFile(s.Path("site", "cookie"), []byte(rec), 0o644))

	v, found, err := s.Get(context.Background(), "site", "cookie")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "cookie=1", v)

	require.NoError(t, os.WriteFile(s.Path("site", "broken"), []byte("{"), 0o644))
	_, found, err = s.Get(context.Background(), "site", "broken")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStoreKeysDoNotCollide(t *testing.T) {
	ctx := context.Background()
	pairs := []struct{ ns, key, value string }{
		{"site", "电影", "movies"},
		{"site", "综艺", "shows"},
		{"a_b", "c", "one"},
		{"a", "b_c", "two"},
		{"a/b", "c", "three"},
		{"ns", "k", "plain"},
		{"n", "s_k", "shifted"},
	}

	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			s := factory(t, newFakeClock())
			defer s.Close()

			for _, p := range pairs {
				require.NoError(t, s.Set(ctx, p.ns, p.key, p.value, 0))
			}
			for _, p := range pairs {
				v, found, err := s.Get(ctx, p.ns, p.key)
				require.NoError(t, err)
				assert.True(t, found, "%s/%s", p.ns, p.key)
				assert.Equal(t, p.value, v, "%s/%s", p.ns, p.key)
			}

			require.NoError(t, s.Delete(ctx, "site", "电影"))
			v, found, err := s.Get(ctx, "site", "综艺")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, "shows", v)
		})
	}
}

func TestFileStorePathsDistinct(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	assert.NotEqual(t, s.Path("site", "电影"), s.Path("site", "综艺"))
	assert.NotEqual(t, s.Path("a_b", "c"), s.Path("a", "b_c"))
	assert.Equal(t, s.Path("site", "电影"), s.Path("site", "电影"))

	long := s.Path("ns", string(make([]byte, 200)))
	assert.LessOrEqual(t, len(filepath.Base(long)), maxReadableName+len("-0123456789abcdef.json"))
}

func TestFileStoreCleanup(t *testing.T) {
	clock := newFakeClock()
	dir := t.TempDir()
	s, err := NewFileStore(dir, WithClock(clock.Now))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "ns", "a", "1", time.Second))
	require.NoError(t, s.Set(ctx, "ns", "b", "2", time.Hour))
	require.NoError(t, s.Set(ctx, "ns", "c", "3", 0))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	clock.Advance(time.Minute)
	n, err := s.Cleanup()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = os.Stat(s.Path("ns", "a"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(s.Path("ns", "b"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "notes.txt"))
	assert.NoError(t, err)
}

func TestMemoryStoreCleanup(t *testing.T) {
	clock := newFakeClock()
	s := NewMemoryStore(WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "ns", "a", "1", time.Second))
	require.NoError(t, s.Set(ctx, "ns", "b", "2", 0))
	clock.Advance(time.Minute)

	assert.Equal(t, 1, s.Cleanup())
	assert.Equal(t, 1, s.Len())
}

func TestOpen(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := Open(ctx, Config{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, Config{Backend: "file", Dir: t.TempDir(), CleanupInterval: time.Hour})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, Config{Backend: "file"})
	assert.Error(t, err)

	_, err = Open(ctx, Config{Backend: "etcd"})
	assert.Error(t, err)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("VVIP_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("VVIP_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()

	s, err := NewRedisStore(ctx, RedisConfig{Addr: addr, Prefix: "vvip-test:" + strconv.FormatInt(time.Now().UnixNano(), 36) + ":"})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(ctx, "ns", "k", "v", time.Minute))
	v, found, err := s.Get(ctx, "ns", "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", v)

	require.NoError(t, s.Update(ctx, "ns", "k", 0, func(old string, found bool) (string, bool, error) {
		return old + "2", true, nil
	}))
	v, _, _ = s.Get(ctx, "ns", "k")
	assert.Equal(t, "v2", v)

	require.NoError(t, s.Delete(ctx, "ns", "k"))
	_, found, _ = s.Get(ctx, "ns", "k")
	assert.False(t, found)
}
