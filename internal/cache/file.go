package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"time"
)

// record is the on-disk form of one entry.
type record struct {
	Value      string `json:"value"`
	CreateTime int64  `json:"createTime"`
	ExpireTime int64  `json:"expireTime"`
}

func (r record) expired(now time.Time) bool {
	return r.ExpireTime != 0 && r.ExpireTime < now.UnixMilli()
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// FileStore keeps one JSON file per entry in a directory.
type FileStore struct {
	dir    string
	opts   options
	locks  keyLocks
	closed atomic.Bool
}

// NewFileStore creates the directory if needed and returns a store over it.
func NewFileStore(dir string, opts ...Option) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("cache: file store needs a directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create %s: %w", dir, err)
	}
	return &FileStore{dir: dir, opts: buildOptions(opts)}, nil
}

// Dir returns the record directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// maxReadableName bounds the human-readable part of a record file name.
const maxReadableName = 48

// Path returns the record file for (namespace, key): a readable prefix with
// characters outside [a-zA-Z0-9_-] folded to "_", then the 64-bit FNV-1a
// hash of namespace NUL key. The hash keeps every pair in its own file.
func (s *FileStore) Path(namespace, key string) string {
	readable := unsafeName.ReplaceAllString(namespace+"_"+key, "_")
	if len(readable) > maxReadableName {
		readable = readable[:maxReadableName]
	}
	h := fnv.New64a()
	h.Write([]byte(namespace))
	h.Write([]byte{0})
	h.Write([]byte(key))
	return filepath.Join(s.dir, fmt.Sprintf("%s-%016x.json", readable, h.Sum64()))
}

// Get implements Store. Expired records are removed on read.
func (s *FileStore) Get(_ context.Context, namespace, key string) (string, bool, error) {
	if s.closed.Load() {
		return "", false, ErrClosed
	}
	unlock := s.locks.lock(namespace, key)
	defer unlock()
	return s.get(namespace, key)
}

func (s *FileStore) get(namespace, key string) (string, bool, error) {
	p := s.Path(namespace, key)
	rec, err := readRecord(p)
	if err != nil {
		// unreadable records count as missing
		return "", false, nil
	}
	if rec.expired(s.opts.now()) {
		_ = os.Remove(p)
		return "", false, nil
	}
	return rec.Value, true, nil
}

// Set implements Store.
func (s *FileStore) Set(_ context.Context, namespace, key, value string, ttl time.Duration) error {
	if s.closed.Load() {
		return ErrClosed
	}
	unlock := s.locks.lock(namespace, key)
	defer unlock()
	return s.set(namespace, key, value, ttl)
}

func (s *FileStore) set(namespace, key, value string, ttl time.Duration) error {
	now := s.opts.now()
	rec := record{Value: value, CreateTime: now.UnixMilli()}
	if exp := expiry(now, ttl); !exp.IsZero() {
		rec.ExpireTime = exp.UnixMilli()
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(s.Path(namespace, key), data)
}

// Delete implements Store.
func (s *FileStore) Delete(_ context.Context, namespace, key string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	unlock := s.locks.lock(namespace, key)
	defer unlock()
	return s.delete(namespace, key)
}

func (s *FileStore) delete(namespace, key string) error {
	err := os.Remove(s.Path(namespace, key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Update implements Store.
func (s *FileStore) Update(_ context.Context, namespace, key string, ttl time.Duration, fn UpdateFunc) error {
	if s.closed.Load() {
		return ErrClosed
	}
	unlock := s.locks.lock(namespace, key)
	defer unlock()

	old, found, err := s.get(namespace, key)
	if err != nil {
		return err
	}
	value, keep, err := fn(old, found)
	if err != nil {
		return err
	}
	if !keep {
		return s.delete(namespace, key)
	}
	return s.set(namespace, key, value, ttl)
}

// Cleanup removes expired record files and returns how many were removed.
// Files that cannot be read are skipped.
func (s *FileStore) Cleanup() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}
	now := s.opts.now()
	n := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		p := filepath.Join(s.dir, e.Name())
		rec, err := readRecord(p)
		if err != nil || !rec.expired(now) {
			continue
		}
		if os.Remove(p) == nil {
			n++
		}
	}
	return n, nil
}

// RunJanitor calls Cleanup every interval until ctx ends or the store
// closes.
func (s *FileStore) RunJanitor(ctx context.Context, interval time.Duration) {
	runJanitor(ctx, interval, func() bool {
		if s.closed.Load() {
			return false
		}
		_, _ = s.Cleanup()
		return true
	})
}

// Close implements Store.
func (s *FileStore) Close() error {
	s.closed.Store(true)
	return nil
}

func readRecord(path string) (record, error) {
	var rec record
	data, err := os.ReadFile(path)
	if err != nil {
		return rec, err
	}
	err = json.Unmarshal(data, &rec)
	return rec, err
}

// writeAtomic writes data next to path and renames it into place.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return err
	}
	return nil
}
