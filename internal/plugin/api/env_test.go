package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap/zaptest"

	"github.com/vvip-tv/vvip-parser/internal/cache"
	"github.com/vvip-tv/vvip-parser/internal/fetch"
	plua "github.com/vvip-tv/vvip-parser/internal/plugin/lua"
	"github.com/vvip-tv/vvip-parser/internal/plugin/security"
)

// newTestEnv builds a context with every default module installed and the
// given capabilities granted. With no capabilities, all are granted.
func newTestEnv(t *testing.T, caps ...security.Capability) *Env {
	t.Helper()

	logger := zaptest.NewLogger(t)
	c, err := plua.NewContext(plua.WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	checker := security.NewDefaultPermissionChecker(c.ID())
	if len(caps) > 0 {
		checker = security.NewPermissionChecker(c.ID())
		checker.GrantAll(caps)
	}

	env := &Env{
		Context: c,
		Checker: checker,
		Monitor: security.NewResourceMonitor(security.RelaxedResourceLimits()),
		HTTP:    fetch.New(fetch.WithLogger(logger)),
		Store:   cache.NewMemoryStore(),
		Logger:  logger,
	}

	reg, err := DefaultRegistry(env)
	require.NoError(t, err)
	require.NoError(t, c.Do(context.Background(), func(L *lua.LState) error {
		_, err := reg.InjectAll(L, checker)
		return err
	}))
	return env
}

// run evaluates code in the env's context.
func run(t *testing.T, env *Env, code string) {
	t.Helper()
	err := env.Context.Do(context.Background(), func(L *lua.LState) error {
		_, err := env.Context.Eval(L, "test.lua", code)
		return err
	})
	require.NoError(t, err)
}

// global reads a global converted to Go.
func global(t *testing.T, env *Env, name string) any {
	t.Helper()
	var v any
	err := env.Context.Do(context.Background(), func(L *lua.LState) error {
		v = env.Context.Bridge().ToGoValue(L.GetGlobal(name))
		return nil
	})
	require.NoError(t, err)
	return v
}

// eventually waits for a global to become non-nil.
func eventually(t *testing.T, env *Env, name string) any {
	t.Helper()
	var v any
	require.Eventually(t, func() bool {
		v = global(t, env, name)
		return v != nil
	}, 2*time.Second, 5*time.Millisecond)
	return v
}

func TestTruthy(t *testing.T) {
	cases := []struct {
		v    lua.LValue
		want bool
	}{
		{lua.LNil, false},
		{lua.LFalse, false},
		{lua.LTrue, true},
		{lua.LNumber(0), false},
		{lua.LNumber(2), true},
		{lua.LString(""), false},
		{lua.LString("0"), true},
		{&lua.LTable{}, true},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, truthy(tc.v), "truthy(%v)", tc.v)
	}
}

func TestCapabilityGatesGlobals(t *testing.T) {
	env := newTestEnv(t, security.CapabilityCrypto)
	run(t, env, `
		has_md5 = md5X ~= nil
		has_req = req ~= nil
		has_store = store ~= nil
		has_timer = setTimeout ~= nil
		has_join = joinUrl ~= nil
	`)
	require.Equal(t, true, global(t, env, "has_md5"))
	require.Equal(t, false, global(t, env, "has_req"))
	require.Equal(t, false, global(t, env, "has_store"))
	require.Equal(t, false, global(t, env, "has_timer"))
	require.Equal(t, true, global(t, env, "has_join"))
}

func TestCapabilityIdentityStable(t *testing.T) {
	env := newTestEnv(t)
	run(t, env, `captured = req`)
	run(t, env, `same = captured == req and fetch == http and _http == http and store == _G["local"]`)
	require.Equal(t, true, global(t, env, "same"))
}
