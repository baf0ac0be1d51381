package api

import (
	"context"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/vvip-tv/vvip-parser/internal/cache"
	"github.com/vvip-tv/vvip-parser/internal/fetch"
	plua "github.com/vvip-tv/vvip-parser/internal/plugin/lua"
	"github.com/vvip-tv/vvip-parser/internal/plugin/security"
	"github.com/vvip-tv/vvip-parser/internal/query"
)

// ProxyConfig is the local proxy endpoint reported by getProxy.
type ProxyConfig struct {
	Host string
	Port int
}

// Env is what the modules of one plugin instance act on: its execution
// context and permissions, plus the services every plugin shares.
type Env struct {
	Context *plua.Context
	Checker *security.PermissionChecker
	Monitor *security.ResourceMonitor

	HTTP  *fetch.Client
	Store cache.Store
	Query *query.Engine
	Proxy ProxyConfig

	// Logger receives console output. Defaults to the context logger.
	Logger *zap.Logger
}

func (e *Env) logger() *zap.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return e.Context.Logger()
}

// ctx returns the context blocking calls made from L should honor: the
// job deadline when one is set, otherwise the plugin context lifetime.
func (e *Env) ctx(L *lua.LState) context.Context {
	if c := L.Context(); c != nil {
		return c
	}
	return e.Context.Base()
}

// truthy follows the scripting convention plugins are written against:
// nil, false, 0 and "" are false.
func truthy(v lua.LValue) bool {
	switch x := v.(type) {
	case nil, *lua.LNilType:
		return false
	case lua.LBool:
		return bool(x)
	case lua.LNumber:
		return x != 0
	case lua.LString:
		return x != ""
	default:
		return true
	}
}

// selfOffset returns 1 when the function was called with method syntax on
// tbl, so tbl:get(a) and tbl.get(a) both work.
func selfOffset(L *lua.LState, tbl *lua.LTable) int {
	if L.GetTop() > 0 && L.Get(1) == tbl {
		return 1
	}
	return 0
}
