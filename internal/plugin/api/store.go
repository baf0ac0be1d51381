package api

import (
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/vvip-tv/vvip-parser/internal/plugin/security"
)

// StoreModule installs the shared key-value store as the store global, also
// reachable as _G["local"]:
//
//	store.get(namespace, key) -> string or nil
//	store.set(namespace, key, value[, ttlSeconds])
//	store.delete(namespace, key)
//
// Values are strings; tables are stored as JSON and setting nil deletes.
// Both store.get(...) and store:get(...) work.
type StoreModule struct {
	env *Env
}

// NewStoreModule creates a new store module.
func NewStoreModule(env *Env) *StoreModule {
	return &StoreModule{env: env}
}

// Name returns the module name.
func (m *StoreModule) Name() string {
	return "store"
}

// RequiredCapability returns the capability required for this module.
func (m *StoreModule) RequiredCapability() security.Capability {
	return security.CapabilityStore
}

// Globals returns the installed global names.
func (m *StoreModule) Globals() []string {
	return []string{"store", "local"}
}

// Register registers the module into the Lua state.
func (m *StoreModule) Register(L *lua.LState) error {
	mod := L.NewTable()
	L.SetField(mod, "get", L.NewFunction(func(L *lua.LState) int { return m.get(L, mod) }))
	L.SetField(mod, "set", L.NewFunction(func(L *lua.LState) int { return m.set(L, mod) }))
	L.SetField(mod, "delete", L.NewFunction(func(L *lua.LState) int { return m.del(L, mod) }))

	L.SetGlobal("store", mod)
	L.SetGlobal("local", mod)
	return nil
}

func (m *StoreModule) get(L *lua.LState, mod *lua.LTable) int {
	off := selfOffset(L, mod)
	ns := L.CheckString(off + 1)
	key := L.CheckString(off + 2)

	if m.env.Store == nil {
		L.Push(lua.LNil)
		return 1
	}
	v, ok, err := m.env.Store.Get(m.env.ctx(L), ns, key)
	if err != nil {
		m.env.logger().Warn("store get failed", zap.String("namespace", ns), zap.String("key", key), zap.Error(err))
	}
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(v))
	return 1
}

func (m *StoreModule) set(L *lua.LState, mod *lua.LTable) int {
	off := selfOffset(L, mod)
	ns := L.CheckString(off + 1)
	key := L.CheckString(off + 2)
	value := L.Get(off + 3)
	ttl := time.Duration(L.OptNumber(off+4, 0) * lua.LNumber(time.Second))

	if m.env.Store == nil {
		return 0
	}
	ctx := m.env.ctx(L)

	var err error
	switch v := value.(type) {
	case *lua.LNilType:
		err = m.env.Store.Delete(ctx, ns, key)
	case *lua.LTable:
		var s string
		if s, err = m.env.Context.Bridge().EncodeJSON(v); err == nil {
			err = m.env.Store.Set(ctx, ns, key, s, ttl)
		}
	default:
		err = m.env.Store.Set(ctx, ns, key, v.String(), ttl)
	}
	if err != nil {
		m.env.logger().Warn("store set failed", zap.String("namespace", ns), zap.String("key", key), zap.Error(err))
	}
	return 0
}

func (m *StoreModule) del(L *lua.LState, mod *lua.LTable) int {
	off := selfOffset(L, mod)
	ns := L.CheckString(off + 1)
	key := L.CheckString(off + 2)

	if m.env.Store == nil {
		return 0
	}
	if err := m.env.Store.Delete(m.env.ctx(L), ns, key); err != nil {
		m.env.logger().Warn("store delete failed", zap.String("namespace", ns), zap.String("key", key), zap.Error(err))
	}
	return 0
}
