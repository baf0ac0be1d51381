package api

import (
	"fmt"
	"slices"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/vvip-tv/vvip-parser/internal/plugin/security"
)

// Module is a group of globals installed into a plugin context together.
type Module interface {
	// Name identifies the module, e.g. "net" or "store".
	Name() string

	// RequiredCapability is the capability a plugin needs to see the
	// module, or "" for modules every plugin gets.
	RequiredCapability() security.Capability

	// Globals lists the global names the module installs.
	Globals() []string

	// Register installs the globals. It runs on the context's executor.
	Register(L *lua.LState) error
}

// Registry is the set of modules for one plugin context. It is built once
// per load and is not safe for concurrent mutation.
type Registry struct {
	modules []Module // sorted by name
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds mod. Names must be unique.
func (r *Registry) Register(mod Module) error {
	i, found := slices.BinarySearchFunc(r.modules, mod.Name(), func(m Module, name string) int {
		return strings.Compare(m.Name(), name)
	})
	if found {
		return fmt.Errorf("module %q already registered", mod.Name())
	}
	r.modules = slices.Insert(r.modules, i, mod)
	return nil
}

// Get returns the module called name.
func (r *Registry) Get(name string) (Module, bool) {
	i := slices.IndexFunc(r.modules, func(m Module) bool { return m.Name() == name })
	if i < 0 {
		return nil, false
	}
	return r.modules[i], true
}

// List returns the module names in install order.
func (r *Registry) List() []string {
	names := make([]string, len(r.modules))
	for i, mod := range r.modules {
		names[i] = mod.Name()
	}
	return names
}

// Globals returns every global name a module installs, granted or not.
// Export harvesting uses it to tell plugin functions from host ones.
func (r *Registry) Globals() map[string]bool {
	out := make(map[string]bool)
	for _, mod := range r.modules {
		for _, g := range mod.Globals() {
			out[g] = true
		}
	}
	return out
}

// InjectAll installs the modules checker grants, in name order, and returns
// the names of the modules it withheld. Their globals stay nil. A nil
// checker grants only modules that need no capability.
func (r *Registry) InjectAll(L *lua.LState, checker *security.PermissionChecker) ([]string, error) {
	var withheld []string
	for _, mod := range r.modules {
		if c := mod.RequiredCapability(); c != "" && (checker == nil || !checker.HasCapability(c)) {
			withheld = append(withheld, mod.Name())
			continue
		}
		if err := mod.Register(L); err != nil {
			return withheld, fmt.Errorf("register module %q: %w", mod.Name(), err)
		}
	}
	return withheld, nil
}

// DefaultRegistry returns the full capability surface bound to env.
func DefaultRegistry(env *Env) (*Registry, error) {
	r := NewRegistry()
	for _, mod := range []Module{
		NewConsoleModule(env),
		NewJSONModule(env),
		NewUtilModule(env),
		NewQueryModule(env),
		NewCryptoModule(),
		NewNetModule(env),
		NewStoreModule(env),
		NewTimerModule(env),
	} {
		if err := r.Register(mod); err != nil {
			return nil, err
		}
	}
	return r, nil
}
