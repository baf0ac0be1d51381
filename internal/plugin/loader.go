package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/vvip-tv/vvip-parser/internal/cache"
	"github.com/vvip-tv/vvip-parser/internal/fetch"
	"github.com/vvip-tv/vvip-parser/internal/plugin/api"
	plua "github.com/vvip-tv/vvip-parser/internal/plugin/lua"
	"github.com/vvip-tv/vvip-parser/internal/plugin/security"
	"github.com/vvip-tv/vvip-parser/internal/query"
)

// Loader loads plugins into isolated execution contexts. The services it
// holds (HTTP client, key-value store, query engine) are shared by every
// plugin it loads; contexts never are.
type Loader struct {
	// Search paths for discovery and module references (checked in order)
	paths []string

	logger      *zap.Logger
	client      *fetch.Client
	sources     *fetch.SourceReader
	store       cache.Store
	query       *query.Engine
	limits      security.ResourceLimits
	permissions *security.PermissionSet
	proxy       api.ProxyConfig
}

// PluginInfo contains discovery information about a plugin.
type PluginInfo struct {
	Name     string
	Path     string
	Manifest *Manifest
	Error    error
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithPaths sets the plugin search paths.
func WithPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.paths = paths
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClient sets the HTTP client used for sources and plugin requests.
func WithClient(c *fetch.Client) LoaderOption {
	return func(l *Loader) {
		if c != nil {
			l.client = c
		}
	}
}

// WithStore sets the shared key-value store.
func WithStore(s cache.Store) LoaderOption {
	return func(l *Loader) {
		if s != nil {
			l.store = s
		}
	}
}

// WithQueryEngine sets the selector engine.
func WithQueryEngine(e *query.Engine) LoaderOption {
	return func(l *Loader) {
		if e != nil {
			l.query = e
		}
	}
}

// WithLimits sets the default per-plugin resource limits.
func WithLimits(limits security.ResourceLimits) LoaderOption {
	return func(l *Loader) {
		l.limits = limits
	}
}

// WithPermissions sets the policy applied to every plugin.
func WithPermissions(set *security.PermissionSet) LoaderOption {
	return func(l *Loader) {
		l.permissions = set
	}
}

// WithProxy sets the local proxy endpoint reported by getProxy.
func WithProxy(p api.ProxyConfig) LoaderOption {
	return func(l *Loader) {
		l.proxy = p
	}
}

// NewLoader creates a new plugin loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		paths:  DefaultPluginPaths(),
		logger: zap.NewNop(),
		limits: security.DefaultResourceLimits(),
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.client == nil {
		l.client = fetch.New(fetch.WithLogger(l.logger))
	}
	if l.store == nil {
		l.store = cache.NewMemoryStore()
	}
	if l.query == nil {
		l.query = query.New(query.WithLogger(l.logger))
	}
	l.sources = fetch.NewSourceReader(l.client)

	return l
}

// DefaultPluginPaths returns the default plugin search paths.
func DefaultPluginPaths() []string {
	paths := make([]string, 0, 2)

	// User plugins: ~/.config/vvip/plugins/
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "vvip", "plugins"))
	}

	// Project plugins: ./plugins/
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, "plugins"))
	}

	return paths
}

// Paths returns the configured search paths.
func (l *Loader) Paths() []string {
	return l.paths
}

// Store returns the shared key-value store.
func (l *Loader) Store() cache.Store {
	return l.store
}

// Load reads the plugin source, evaluates it in a fresh context with a fresh
// capability surface and returns an adapter in StateCreated. Init must still
// be called.
func (l *Loader) Load(ctx context.Context, src Source) (*Adapter, error) {
	location, err := l.normalize(src.Location)
	if err != nil {
		return nil, &SourceError{Location: src.Location, Err: err}
	}
	src.Location = location

	if src.Manifest == nil {
		m, err := FindManifest(location)
		if err != nil {
			return nil, err
		}
		src.Manifest = m
	}
	if src.Extension.IsZero() && src.Manifest != nil && src.Manifest.Extension != "" {
		src.Extension = ParseExtension(src.Manifest.Extension)
	}

	text, err := l.sources.Fetch(ctx, location)
	if err != nil {
		return nil, &SourceError{Location: location, Err: err}
	}

	limits := l.limits
	if src.Manifest != nil {
		limits = src.Manifest.ResourceLimits(limits)
	}
	monitor := security.NewResourceMonitor(limits)

	logger := l.logger.Named("plugin").With(zap.String("plugin", src.Name()))

	checker := security.NewDefaultPermissionChecker(src.Name())
	checker.ApplyPermissionSet(l.permissions)
	if src.Manifest != nil {
		checker.ApplyPermissionSet(src.Manifest.PermissionSet())
	}

	c, err := plua.NewContext(
		plua.WithLogger(logger),
		plua.WithQueueSize(limits.QueueSize),
		plua.WithExecutionTimeout(limits.ExecutionTimeout),
		plua.WithTimerBudget(monitor),
		plua.WithOrigin(location),
		plua.WithSearchRoots(l.paths...),
		plua.WithFetcher(l.sources),
		plua.WithAccess(checker),
	)
	if err != nil {
		return nil, fmt.Errorf("create execution context: %w", err)
	}

	env := &api.Env{
		Context: c,
		Checker: checker,
		Monitor: monitor,
		HTTP:    l.client,
		Store:   l.store,
		Query:   l.query,
		Proxy:   l.proxy,
	}
	reg, err := api.DefaultRegistry(env)
	if err != nil {
		c.Close()
		return nil, err
	}

	var exports Exports
	err = c.Do(ctx, func(L *lua.LState) error {
		withheld, err := reg.InjectAll(L, checker)
		if err != nil {
			return err
		}
		if len(withheld) > 0 {
			logger.Debug("capabilities withheld", zap.Strings("modules", withheld))
		}

		exportsTbl := L.NewTable()
		moduleTbl := L.NewTable()
		moduleTbl.RawSetString("exports", exportsTbl)
		L.SetGlobal("exports", exportsTbl)
		L.SetGlobal("module", moduleTbl)
		L.SetGlobal("__filename", lua.LString(location))
		L.SetGlobal("__dirname", lua.LString(dirOf(location)))

		results, err := c.Eval(L, location, text)
		if err != nil {
			return &ExecutionError{Op: "load", Err: err}
		}

		if src.Extension.IsCode() {
			if _, err := c.Eval(L, "extension", src.Extension.Raw); err != nil {
				return &ExecutionError{Op: "extension", Err: err}
			}
		}

		exports = harvestExports(L, results, exportsTbl, moduleTbl, reg.Globals())
		return nil
	})
	if err != nil {
		c.Close()
		var execErr *ExecutionError
		if !errors.As(err, &execErr) {
			err = &ExecutionError{Op: "load", Err: err}
		}
		return nil, err
	}

	for _, w := range c.Warnings() {
		logger.Warn("plugin loaded with unresolved reference", zap.String("reference", w.Reference))
	}
	logger.Info("plugin loaded",
		zap.String("location", location),
		zap.String("context", c.ID()),
		zap.Strings("exports", exports.Names()))

	return newAdapter(src, c, exports, checker, monitor, logger), nil
}

// normalize makes local locations absolute.
func (l *Loader) normalize(location string) (string, error) {
	if location == "" {
		return "", errors.New("empty location")
	}
	if isRemoteLocation(location) {
		return location, nil
	}
	return filepath.Abs(strings.TrimPrefix(location, "file://"))
}

func dirOf(location string) string {
	if isRemoteLocation(location) {
		if i := strings.IndexAny(location, "?#"); i >= 0 {
			location = location[:i]
		}
		return path.Dir(location)
	}
	return filepath.Dir(location)
}

// Discover finds single-file plugins (*.lua) in the search paths. The first
// path holding a name wins. Returns plugins sorted by name.
func (l *Loader) Discover() ([]*PluginInfo, error) {
	discovered := make(map[string]*PluginInfo)

	for _, basePath := range l.paths {
		entries, err := os.ReadDir(basePath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue // Not an error if path doesn't exist
			}
			return nil, err
		}

		for _, entry := range entries {
			if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" || strings.HasPrefix(entry.Name(), "_") {
				continue
			}
			name := strings.TrimSuffix(entry.Name(), ".lua")
			if _, exists := discovered[name]; exists {
				continue
			}

			info := &PluginInfo{Name: name, Path: filepath.Join(basePath, entry.Name())}
			info.Manifest, info.Error = FindManifest(info.Path)
			discovered[name] = info
		}
	}

	plugins := make([]*PluginInfo, 0, len(discovered))
	for _, info := range discovered {
		plugins = append(plugins, info)
	}
	sort.Slice(plugins, func(i, j int) bool {
		return plugins[i].Name < plugins[j].Name
	})

	return plugins, nil
}

// FindPlugin returns the path of a discovered plugin by name.
func (l *Loader) FindPlugin(name string) (*PluginInfo, error) {
	for _, basePath := range l.paths {
		luaPath := filepath.Join(basePath, name+".lua")
		if _, err := os.Stat(luaPath); err == nil {
			info := &PluginInfo{Name: name, Path: luaPath}
			info.Manifest, info.Error = FindManifest(luaPath)
			return info, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
}
