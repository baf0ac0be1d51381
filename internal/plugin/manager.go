package plugin

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// Manager holds named adapters for a long-running host, such as the watch
// mode of the CLI, and replaces one adapter at a time when its source
// changes. Every adapter still owns its own execution context; the manager
// only keeps the name index.
type Manager struct {
	loader *Loader
	cfg    ManagerConfig
	logger *zap.Logger

	mu       sync.RWMutex
	adapters map[string]*Adapter
	order    []string // load order; UnloadAll walks it backwards

	subMu   sync.Mutex
	subs    []subscription
	nextSub int
}

type subscription struct {
	id int
	fn EventHandler
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// AutoInit calls Init with the source's extension after every load and
	// reload.
	AutoInit bool
}

// DefaultManagerConfig returns the configuration the CLI uses.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{AutoInit: true}
}

// EventHandler receives manager events. It runs on the goroutine that
// caused the event, outside the manager's locks; a panic is logged and
// swallowed.
type EventHandler func(event ManagerEvent)

// ManagerEvent reports a change to one named plugin.
type ManagerEvent struct {
	Type   ManagerEventType
	Plugin string
	Error  error
}

// ManagerEventType classifies manager events.
type ManagerEventType int

const (
	// EventPluginLoaded follows a successful load.
	EventPluginLoaded ManagerEventType = iota
	// EventPluginUnloaded follows destroy and removal.
	EventPluginUnloaded
	// EventPluginInitialized follows a successful init.
	EventPluginInitialized
	// EventPluginReloaded follows the swap to a freshly loaded adapter.
	EventPluginReloaded
	// EventPluginError reports a failed load, init, reload or destroy.
	EventPluginError
)

var eventTypeNames = [...]string{
	EventPluginLoaded:      "loaded",
	EventPluginUnloaded:    "unloaded",
	EventPluginInitialized: "initialized",
	EventPluginReloaded:    "reloaded",
	EventPluginError:       "error",
}

func (t ManagerEventType) String() string {
	if t < 0 || int(t) >= len(eventTypeNames) {
		return "unknown"
	}
	return eventTypeNames[t]
}

// NewManager creates a manager that loads through loader.
func NewManager(loader *Loader, cfg ManagerConfig) *Manager {
	return &Manager{
		loader:   loader,
		cfg:      cfg,
		logger:   loader.logger.Named("manager"),
		adapters: make(map[string]*Adapter),
	}
}

// Load loads src and registers it as name. A name can be held only once;
// a second Load returns ErrAlreadyLoaded. With AutoInit an init failure is
// reported as an event and the adapter stays registered in StateError.
func (m *Manager) Load(ctx context.Context, name string, src Source) (*Adapter, error) {
	if _, ok := m.Get(name); ok {
		return nil, fmt.Errorf("plugin %q: %w", name, ErrAlreadyLoaded)
	}

	a, err := m.loader.Load(ctx, src)
	if err != nil {
		m.publish(ManagerEvent{Type: EventPluginError, Plugin: name, Error: err})
		return nil, fmt.Errorf("load plugin %q: %w", name, err)
	}

	m.mu.Lock()
	if _, taken := m.adapters[name]; taken {
		m.mu.Unlock()
		_ = a.Destroy(ctx)
		return nil, fmt.Errorf("plugin %q: %w", name, ErrAlreadyLoaded)
	}
	m.adapters[name] = a
	m.order = append(m.order, name)
	m.mu.Unlock()

	m.publish(ManagerEvent{Type: EventPluginLoaded, Plugin: name})
	m.initialize(ctx, name, a, true)
	return a, nil
}

// initialize runs init when AutoInit is set.
func (m *Manager) initialize(ctx context.Context, name string, a *Adapter, announce bool) {
	if !m.cfg.AutoInit {
		return
	}
	if err := a.Init(ctx, a.Source().Extension); err != nil {
		m.logger.Warn("plugin init failed", zap.String("plugin", name), zap.Error(err))
		m.publish(ManagerEvent{Type: EventPluginError, Plugin: name, Error: err})
		return
	}
	if announce {
		m.publish(ManagerEvent{Type: EventPluginInitialized, Plugin: name})
	}
}

// Unload destroys the named adapter and forgets it.
func (m *Manager) Unload(ctx context.Context, name string) error {
	m.mu.Lock()
	a, ok := m.adapters[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("plugin %q: %w", name, ErrPluginNotFound)
	}
	delete(m.adapters, name)
	m.order = slices.DeleteFunc(m.order, func(n string) bool { return n == name })
	m.mu.Unlock()

	m.destroy(ctx, name, a)
	m.publish(ManagerEvent{Type: EventPluginUnloaded, Plugin: name})
	return nil
}

// UnloadAll unloads every adapter, most recently loaded first.
func (m *Manager) UnloadAll(ctx context.Context) error {
	m.mu.RLock()
	names := slices.Clone(m.order)
	m.mu.RUnlock()
	slices.Reverse(names)

	var errs []error
	for _, name := range names {
		if err := m.Unload(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Reload loads the named plugin's source again in a new context and swaps
// it in. The running adapter is destroyed only once the new one loaded, so
// an edit that fails to load leaves the old plugin serving. The manifest is
// looked up again.
func (m *Manager) Reload(ctx context.Context, name string) error {
	old, ok := m.Get(name)
	if !ok {
		return fmt.Errorf("plugin %q: %w", name, ErrPluginNotFound)
	}

	src := old.Source()
	src.Manifest = nil

	a, err := m.loader.Load(ctx, src)
	if err != nil {
		m.logger.Warn("plugin reload failed; keeping running adapter", zap.String("plugin", name), zap.Error(err))
		m.publish(ManagerEvent{Type: EventPluginError, Plugin: name, Error: err})
		return fmt.Errorf("reload %q: %w", name, err)
	}
	m.initialize(ctx, name, a, false)

	m.mu.Lock()
	if m.adapters[name] != old {
		m.mu.Unlock()
		_ = a.Destroy(ctx)
		return fmt.Errorf("plugin %q: %w", name, ErrPluginNotFound)
	}
	m.adapters[name] = a
	m.mu.Unlock()

	m.destroy(ctx, name, old)
	m.logger.Info("plugin reloaded", zap.String("plugin", name), zap.String("context", a.ID()))
	m.publish(ManagerEvent{Type: EventPluginReloaded, Plugin: name})
	return nil
}

func (m *Manager) destroy(ctx context.Context, name string, a *Adapter) {
	if err := a.Destroy(ctx); err != nil {
		m.publish(ManagerEvent{Type: EventPluginError, Plugin: name, Error: err})
	}
}

// Get returns the adapter registered as name.
func (m *Manager) Get(name string) (*Adapter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.adapters[name]
	return a, ok
}

// Names returns the registered names in load order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.order)
}

// Count returns the number of registered adapters.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.adapters)
}

// Errors returns the init error of every adapter in StateError.
func (m *Manager) Errors() map[string]error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	errs := make(map[string]error)
	for name, a := range m.adapters {
		if a.State() == StateError && a.Error() != nil {
			errs[name] = a.Error()
		}
	}
	return errs
}

// Loader returns the loader adapters are created with.
func (m *Manager) Loader() *Loader {
	return m.loader
}

// Subscribe registers handler and returns a function that removes it.
func (m *Manager) Subscribe(handler EventHandler) func() {
	if handler == nil {
		return func() {}
	}

	m.subMu.Lock()
	m.nextSub++
	id := m.nextSub
	m.subs = append(m.subs, subscription{id: id, fn: handler})
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		m.subs = slices.DeleteFunc(m.subs, func(s subscription) bool { return s.id == id })
	}
}

func (m *Manager) publish(ev ManagerEvent) {
	m.subMu.Lock()
	subs := slices.Clone(m.subs)
	m.subMu.Unlock()

	for _, s := range subs {
		m.deliver(s.fn, ev)
	}
}

func (m *Manager) deliver(fn EventHandler, ev ManagerEvent) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("manager event handler panicked",
				zap.Stringer("event", ev.Type),
				zap.String("plugin", ev.Plugin),
				zap.Any("panic", r))
		}
	}()
	fn(ev)
}
