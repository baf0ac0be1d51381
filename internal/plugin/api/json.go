package api

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/vvip-tv/vvip-parser/internal/plugin/security"
)

// JSONModule installs the json table:
//
//	json.encode(value) -> string, "" when value cannot be encoded
//	json.decode(text)  -> value, nil when text is not JSON
type JSONModule struct {
	env *Env
}

// NewJSONModule creates a new json module.
func NewJSONModule(env *Env) *JSONModule {
	return &JSONModule{env: env}
}

// Name returns the module name.
func (m *JSONModule) Name() string {
	return "json"
}

// RequiredCapability returns the capability required for this module.
func (m *JSONModule) RequiredCapability() security.Capability {
	return ""
}

// Globals returns the installed global names.
func (m *JSONModule) Globals() []string {
	return []string{"json"}
}

// Register registers the module into the Lua state.
func (m *JSONModule) Register(L *lua.LState) error {
	mod := L.NewTable()
	L.SetField(mod, "encode", L.NewFunction(func(L *lua.LState) int { return m.encode(L, mod) }))
	L.SetField(mod, "decode", L.NewFunction(func(L *lua.LState) int { return m.decode(L, mod) }))
	L.SetGlobal("json", mod)
	return nil
}

func (m *JSONModule) encode(L *lua.LState, mod *lua.LTable) int {
	s, err := m.env.Context.Bridge().EncodeJSON(L.Get(selfOffset(L, mod) + 1))
	if err != nil {
		L.Push(lua.LString(""))
		return 1
	}
	L.Push(lua.LString(s))
	return 1
}

func (m *JSONModule) decode(L *lua.LState, mod *lua.LTable) int {
	v, err := m.env.Context.Bridge().DecodeJSON(L.OptString(selfOffset(L, mod)+1, ""))
	if err != nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(v)
	return 1
}
