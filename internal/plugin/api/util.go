package api

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/vvip-tv/vvip-parser/internal/plugin/security"
	"github.com/vvip-tv/vvip-parser/internal/query"
	"github.com/vvip-tv/vvip-parser/internal/textutil"
)

// UtilModule installs joinUrl, s2t, t2s, getProxy and similarity.
type UtilModule struct {
	env *Env
}

// NewUtilModule creates a new util module.
func NewUtilModule(env *Env) *UtilModule {
	return &UtilModule{env: env}
}

// Name returns the module name.
func (m *UtilModule) Name() string {
	return "util"
}

// RequiredCapability returns the capability required for this module.
// Utility functions require no special capability.
func (m *UtilModule) RequiredCapability() security.Capability {
	return ""
}

// Globals returns the installed global names.
func (m *UtilModule) Globals() []string {
	return []string{"joinUrl", "s2t", "t2s", "getProxy", "similarity"}
}

// Register registers the module into the Lua state.
func (m *UtilModule) Register(L *lua.LState) error {
	L.SetGlobal("joinUrl", L.NewFunction(m.joinURL))
	L.SetGlobal("s2t", L.NewFunction(m.s2t))
	L.SetGlobal("t2s", L.NewFunction(m.t2s))
	L.SetGlobal("getProxy", L.NewFunction(m.getProxy))
	L.SetGlobal("similarity", L.NewFunction(m.similarity))
	return nil
}

// joinUrl(base, ref) -> url
func (m *UtilModule) joinURL(L *lua.LState) int {
	base := L.OptString(1, "")
	ref := L.OptString(2, "")
	L.Push(lua.LString(query.JoinURL(base, ref)))
	return 1
}

func (m *UtilModule) s2t(L *lua.LState) int {
	L.Push(lua.LString(textutil.S2T(L.OptString(1, ""))))
	return 1
}

func (m *UtilModule) t2s(L *lua.LState) int {
	L.Push(lua.LString(textutil.T2S(L.OptString(1, ""))))
	return 1
}

// getProxy(local) -> "http://host:port" or ""
func (m *UtilModule) getProxy(L *lua.LState) int {
	var host string
	var port int
	if m.env != nil {
		host, port = m.env.Proxy.Host, m.env.Proxy.Port
	}
	L.Push(lua.LString(textutil.ProxyURL(truthy(L.Get(1)), host, port)))
	return 1
}

// similarity(a, b) -> number in [0, 1]
func (m *UtilModule) similarity(L *lua.LState) int {
	a := L.OptString(1, "")
	b := L.OptString(2, "")
	L.Push(lua.LNumber(textutil.Similarity(a, b)))
	return 1
}
