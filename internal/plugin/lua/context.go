package lua

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Context is an isolated execution environment for one plugin instance:
// a sandboxed state, the goroutine that owns it, the module resolver and the
// timers scheduled by the plugin. Contexts are never shared.
type Context struct {
	id     string
	state  *State
	exec   *Executor
	bridge *Bridge
	timers *Timers

	resolver *Resolver
	logger   *zap.Logger

	// base is cancelled on Close; in-flight requests made on behalf of the
	// plugin use it.
	base   context.Context
	cancel context.CancelFunc

	warnMu   sync.Mutex
	warnings []ReferenceWarning

	closed    atomic.Bool
	closeOnce sync.Once
}

type contextConfig struct {
	logger     *zap.Logger
	queueSize  int
	jobTimeout time.Duration
	budget     TimerBudget
	origin     string
	roots      []string
	fetcher    Fetcher
	access     Access
	stateOpts  []StateOption
}

// ContextOption configures a Context.
type ContextOption func(*contextConfig)

// WithLogger sets the logger. The context adds its id as a field.
func WithLogger(logger *zap.Logger) ContextOption {
	return func(c *contextConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithQueueSize sets the executor queue length.
func WithQueueSize(n int) ContextOption {
	return func(c *contextConfig) {
		c.queueSize = n
	}
}

// WithExecutionTimeout bounds the Lua run time of every job. Zero means no
// bound.
func WithExecutionTimeout(d time.Duration) ContextOption {
	return func(c *contextConfig) {
		c.jobTimeout = d
	}
}

// WithTimerBudget limits pending timers.
func WithTimerBudget(b TimerBudget) ContextOption {
	return func(c *contextConfig) {
		c.budget = b
	}
}

// WithOrigin sets the location of the plugin source; relative module
// references resolve against it.
func WithOrigin(location string) ContextOption {
	return func(c *contextConfig) {
		c.origin = location
	}
}

// WithSearchRoots adds local directories searched for module references.
func WithSearchRoots(roots ...string) ContextOption {
	return func(c *contextConfig) {
		c.roots = append(c.roots, roots...)
	}
}

// WithFetcher sets how module sources are read.
func WithFetcher(f Fetcher) ContextOption {
	return func(c *contextConfig) {
		c.fetcher = f
	}
}

// WithAccess sets the policy consulted before reading a module.
func WithAccess(a Access) ContextOption {
	return func(c *contextConfig) {
		c.access = a
	}
}

// WithStateOptions passes options through to NewState.
func WithStateOptions(opts ...StateOption) ContextOption {
	return func(c *contextConfig) {
		c.stateOpts = append(c.stateOpts, opts...)
	}
}

// NewContext creates a context and starts its executor.
func NewContext(opts ...ContextOption) (*Context, error) {
	cfg := contextConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	state, err := NewState(cfg.stateOpts...)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	base, cancel := context.WithCancel(context.Background())

	c := &Context{
		id:     id,
		state:  state,
		exec:   NewExecutor(state.L, cfg.queueSize),
		bridge: NewBridge(state.L),
		logger: cfg.logger.With(zap.String("context", id)),
		base:   base,
		cancel: cancel,
	}
	c.timers = newTimers(c, cfg.budget)
	c.resolver = newResolver(c, cfg)
	c.exec.SetJobTimeout(cfg.jobTimeout)

	go c.exec.Run(base)

	err = c.exec.Execute(context.Background(), func(L *lua.LState) error {
		state.Sandbox().SetResolver(c.resolver.require)
		registerPromiseType(L, c)
		return nil
	})
	if err != nil {
		c.Close()
		return nil, err
	}

	return c, nil
}

// ID returns the unique context id.
func (c *Context) ID() string {
	return c.id
}

// Logger returns the context logger.
func (c *Context) Logger() *zap.Logger {
	return c.logger
}

// Bridge returns the value bridge. Use it only inside jobs.
func (c *Context) Bridge() *Bridge {
	return c.bridge
}

// Timers returns the context timers.
func (c *Context) Timers() *Timers {
	return c.timers
}

// Resolver returns the module resolver.
func (c *Context) Resolver() *Resolver {
	return c.resolver
}

// Base returns a context.Context that ends when the execution context
// closes.
func (c *Context) Base() context.Context {
	return c.base
}

// Do runs fn on the context's goroutine and waits for it. ctx bounds only the
// wait.
func (c *Context) Do(ctx context.Context, fn func(L *lua.LState) error) error {
	if c.closed.Load() {
		return ErrContextClosed
	}
	err := c.exec.Execute(ctx, fn)
	if errors.Is(err, ErrExecutorClosed) {
		return ErrContextClosed
	}
	return err
}

// Post queues fn without waiting. A failure is logged with what.
func (c *Context) Post(what string, fn func(L *lua.LState) error) {
	if c.closed.Load() {
		return
	}
	err := c.exec.ExecuteAsync(fn, func(err error) {
		if err != nil && !errors.Is(err, ErrExecutorClosed) && !errors.Is(err, context.Canceled) {
			c.logger.Warn(what+" failed", zap.Error(err))
		}
	})
	if err != nil && !errors.Is(err, ErrExecutorClosed) {
		c.logger.Warn(what+" dropped", zap.Error(err))
	}
}

// Eval compiles and runs code as a chunk named name and returns the values
// it returns. It must be called from inside a job.
func (c *Context) Eval(L *lua.LState, name, code string) ([]lua.LValue, error) {
	c.resolver.loading[name] = true
	defer delete(c.resolver.loading, name)
	return c.state.DoString(name, code)
}

// Call calls fn from inside a job and returns its results.
func (c *Context) Call(L *lua.LState, fn lua.LValue, args ...lua.LValue) ([]lua.LValue, error) {
	if fn.Type() != lua.LTFunction {
		return nil, ErrNotFunction
	}
	return callProtected(L, fn, args...)
}

func (c *Context) addWarning(w ReferenceWarning) {
	c.logger.Warn("module reference unresolved",
		zap.String("reference", w.Reference),
		zap.String("origin", w.Origin),
		zap.Error(w.Err))

	c.warnMu.Lock()
	c.warnings = append(c.warnings, w)
	c.warnMu.Unlock()
}

// Warnings returns the module references that failed to resolve.
func (c *Context) Warnings() []ReferenceWarning {
	c.warnMu.Lock()
	defer c.warnMu.Unlock()
	out := make([]ReferenceWarning, len(c.warnings))
	copy(out, c.warnings)
	return out
}

// Closed reports whether Close has been called.
func (c *Context) Closed() bool {
	return c.closed.Load()
}

// Close stops timers, cancels in-flight requests, waits for the running job
// and releases the state. It must not be called from inside a job.
func (c *Context) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.timers.StopAll()
		c.cancel()
		c.exec.Close()
		<-c.exec.Stopped()
		c.state.Close()
	})
	return nil
}
