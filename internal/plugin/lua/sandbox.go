package lua

import (
	lua "github.com/yuin/gopher-lua"
)

// builtinModules can be required by name without going through a resolver.
var builtinModules = map[string]bool{
	"string":    true,
	"table":     true,
	"math":      true,
	"coroutine": true,
	"os":        true,
}

// safeOSFuncs are the os functions left visible to plugins.
var safeOSFuncs = []string{"time", "clock", "date", "difftime"}

// Sandbox restricts what plugin code can reach.
type Sandbox struct {
	L *lua.LState

	resolver lua.LGFunction
}

// NewSandbox creates a new sandbox for the Lua state.
func NewSandbox(L *lua.LState) *Sandbox {
	return &Sandbox{L: L}
}

// Install removes loaders that read code from outside the resolver, reduces
// os to its clock functions, aliases global/globalThis to _G and installs
// require.
func (s *Sandbox) Install() {
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "module"} {
		s.L.SetGlobal(name, lua.LNil)
	}

	s.restrictOS()

	globals := s.L.Get(lua.GlobalsIndex)
	s.L.SetGlobal("global", globals)
	s.L.SetGlobal("globalThis", globals)

	s.installRequire()
}

// restrictOS replaces os with a table holding only safeOSFuncs.
func (s *Sandbox) restrictOS() {
	full, ok := s.L.GetGlobal("os").(*lua.LTable)
	safe := s.L.NewTable()
	if ok {
		for _, name := range safeOSFuncs {
			safe.RawSetString(name, full.RawGetString(name))
		}
	}
	s.L.SetGlobal("os", safe)
}

// SetResolver routes non-builtin require calls to fn. The resolver receives
// the module name as its only argument and must push exactly one value.
func (s *Sandbox) SetResolver(fn lua.LGFunction) {
	s.resolver = fn
}

// installRequire sets require to a function that returns builtin library
// tables and defers everything else to the resolver.
func (s *Sandbox) installRequire() {
	s.L.SetGlobal("require", s.L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)

		if builtinModules[name] {
			L.Push(L.GetGlobal(name))
			return 1
		}

		if s.resolver == nil {
			L.RaiseError("module %q is not available", name)
			return 0
		}
		return s.resolver(L)
	}))
}
