// Package lua provides the Lua runtime that plugins execute in.
package lua

import (
	"fmt"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// Default sizes for a plugin state.
const (
	DefaultCallStackSize   = 256
	DefaultRegistrySize    = 1024 * 20
	DefaultRegistryMaxSize = 1024 * 256
)

// State wraps a sandboxed gopher-lua state.
//
// gopher-lua's LState is not goroutine-safe. A State is driven by exactly one
// Executor; the mutex only guards Close against a concurrent caller. State
// methods must not be called from Go functions running inside Lua, which use
// the *lua.LState they are handed instead.
type State struct {
	L *lua.LState

	mu sync.Mutex

	callStackSize   int
	registryMaxSize int

	sandbox *Sandbox

	closed bool
}

// StateOption configures a State.
type StateOption func(*State)

// WithCallStackSize sets the maximum Lua call depth.
func WithCallStackSize(n int) StateOption {
	return func(s *State) {
		if n > 0 {
			s.callStackSize = n
		}
	}
}

// WithRegistryMaxSize caps the Lua registry (value stack) growth.
func WithRegistryMaxSize(n int) StateOption {
	return func(s *State) {
		if n > 0 {
			s.registryMaxSize = n
		}
	}
}

// NewState creates a sandboxed Lua state with only safe libraries open.
func NewState(opts ...StateOption) (*State, error) {
	state := &State{
		callStackSize:   DefaultCallStackSize,
		registryMaxSize: DefaultRegistryMaxSize,
	}
	for _, opt := range opts {
		opt(state)
	}

	L := lua.NewState(lua.Options{
		SkipOpenLibs:        true,
		CallStackSize:       state.callStackSize,
		RegistrySize:        DefaultRegistrySize,
		RegistryMaxSize:     state.registryMaxSize,
		IncludeGoStackTrace: false,
	})
	state.L = L

	if err := openSafeLibraries(L); err != nil {
		L.Close()
		return nil, err
	}

	state.sandbox = NewSandbox(L)
	state.sandbox.Install()

	return state, nil
}

// openSafeLibraries opens base, table, string, math and coroutine. io, debug
// and package stay closed; os is reduced by the sandbox.
func openSafeLibraries(L *lua.LState) error {
	libs := []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
		{lua.CoroutineLibName, lua.OpenCoroutine},
		{lua.OsLibName, lua.OpenOs},
	}
	for _, lib := range libs {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.fn),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			return fmt.Errorf("open %s library: %w", lib.name, err)
		}
	}
	return nil
}

// DoString compiles code as a chunk called name and runs it, returning the
// values the chunk returns.
func (s *State) DoString(name, code string) ([]lua.LValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStateClosed
	}

	fn, err := s.L.Load(strings.NewReader(code), name)
	if err != nil {
		return nil, err
	}
	return callProtected(s.L, fn)
}

// Call calls fn with args and returns its results. Returns an empty slice
// (not nil) if the function returns no values.
func (s *State) Call(fn lua.LValue, args ...lua.LValue) ([]lua.LValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStateClosed
	}
	if fn.Type() != lua.LTFunction {
		return nil, fmt.Errorf("%w (got %s)", ErrNotFunction, fn.Type())
	}
	return callProtected(s.L, fn, args...)
}

// callProtected calls fn in protected mode and collects every result.
func callProtected(L *lua.LState, fn lua.LValue, args ...lua.LValue) (results []lua.LValue, err error) {
	top := L.GetTop()

	defer func() {
		if r := recover(); r != nil {
			L.SetTop(top)
			results, err = nil, fmt.Errorf("lua panic: %v", r)
		}
	}()

	L.Push(fn)
	for _, arg := range args {
		L.Push(arg)
	}
	if err := L.PCall(len(args), lua.MultRet, nil); err != nil {
		L.SetTop(top)
		return nil, err
	}

	n := L.GetTop() - top
	results = make([]lua.LValue, n)
	for i := 0; i < n; i++ {
		results[i] = L.Get(top + i + 1)
	}
	L.SetTop(top)
	return results, nil
}

// GetGlobal returns a global variable value.
func (s *State) GetGlobal(name string) lua.LValue {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lua.LNil
	}
	return s.L.GetGlobal(name)
}

// SetGlobal sets a global variable.
func (s *State) SetGlobal(name string, value lua.LValue) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.L.SetGlobal(name, value)
}

// LuaState returns the underlying gopher-lua state. Only the owning
// executor goroutine may use it.
func (s *State) LuaState() *lua.LState {
	return s.L
}

// Sandbox returns the sandbox installed in the state.
func (s *State) Sandbox() *Sandbox {
	return s.sandbox
}

// IsClosed returns true if the state has been closed.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the Lua state. Subsequent calls return ErrStateClosed.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.L.Close()
	s.closed = true
	return nil
}
