package plugin

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrRemoteSource is returned when watching a plugin that is not a local
// file.
var ErrRemoteSource = errors.New("plugin source is not a local file")

// Reloader reloads managed plugins when files in their directory change.
// Rapid changes are coalesced; a reload happens delay after the last one.
type Reloader struct {
	manager *Manager
	watcher *fsnotify.Watcher
	delay   time.Duration
	logger  *zap.Logger

	mu      sync.Mutex
	dirs    map[string][]string // directory -> plugin names
	pending map[string]*time.Timer
	closed  bool
}

// ReloaderOption configures a Reloader.
type ReloaderOption func(*Reloader)

// WithReloadDelay sets the debounce delay.
func WithReloadDelay(d time.Duration) ReloaderOption {
	return func(r *Reloader) {
		if d > 0 {
			r.delay = d
		}
	}
}

// WithReloadLogger sets the logger.
func WithReloadLogger(logger *zap.Logger) ReloaderOption {
	return func(r *Reloader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewReloader creates a reloader for plugins of m.
func NewReloader(m *Manager, opts ...ReloaderOption) (*Reloader, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	r := &Reloader{
		manager: m,
		watcher: w,
		delay:   200 * time.Millisecond,
		logger:  zap.NewNop(),
		dirs:    make(map[string][]string),
		pending: make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Watch starts watching the directory of the named plugin.
func (r *Reloader) Watch(name string) error {
	a, ok := r.manager.Get(name)
	if !ok {
		return ErrPluginNotFound
	}
	if a.Source().IsRemote() {
		return ErrRemoteSource
	}
	dir := filepath.Dir(a.Source().Location)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, watching := r.dirs[dir]; !watching {
		if err := r.watcher.Add(dir); err != nil {
			return err
		}
	}
	for _, n := range r.dirs[dir] {
		if n == name {
			return nil
		}
	}
	r.dirs[dir] = append(r.dirs[dir], name)
	return nil
}

// Run processes file events until ctx is done or the reloader is closed.
func (r *Reloader) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) {
				continue
			}
			switch filepath.Ext(ev.Name) {
			case ".lua", ".yaml", ".yml":
				r.schedule(ctx, filepath.Dir(ev.Name))
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn("plugin watcher error", zap.Error(err))
		}
	}
}

// schedule queues a reload of every plugin in dir.
func (r *Reloader) schedule(ctx context.Context, dir string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	for _, name := range r.dirs[dir] {
		if t, ok := r.pending[name]; ok {
			t.Reset(r.delay)
			continue
		}
		name := name
		r.pending[name] = time.AfterFunc(r.delay, func() {
			r.mu.Lock()
			delete(r.pending, name)
			r.mu.Unlock()

			if err := r.manager.Reload(ctx, name); err != nil {
				r.logger.Warn("plugin reload failed", zap.String("plugin", name), zap.Error(err))
				return
			}
			r.logger.Info("plugin reloaded", zap.String("plugin", name))
		})
	}
}

// Close stops watching and cancels pending reloads.
func (r *Reloader) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	for name, t := range r.pending {
		t.Stop()
		delete(r.pending, name)
	}
	r.mu.Unlock()

	return r.watcher.Close()
}
