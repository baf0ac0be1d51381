package api

import (
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/vvip-tv/vvip-parser/internal/plugin/security"
)

// TimerModule installs setTimeout, clearTimeout, setInterval and
// clearInterval. Callbacks run on the plugin's own executor; extra
// arguments are passed through to them. A timer that cannot be scheduled
// returns nil.
type TimerModule struct {
	env *Env
}

// NewTimerModule creates a new timer module.
func NewTimerModule(env *Env) *TimerModule {
	return &TimerModule{env: env}
}

// Name returns the module name.
func (m *TimerModule) Name() string {
	return "timer"
}

// RequiredCapability returns the capability required for this module.
func (m *TimerModule) RequiredCapability() security.Capability {
	return security.CapabilityTimer
}

// Globals returns the installed global names.
func (m *TimerModule) Globals() []string {
	return []string{"setTimeout", "clearTimeout", "setInterval", "clearInterval"}
}

// Register registers the module into the Lua state.
func (m *TimerModule) Register(L *lua.LState) error {
	L.SetGlobal("setTimeout", L.NewFunction(func(L *lua.LState) int { return m.schedule(L, false) }))
	L.SetGlobal("setInterval", L.NewFunction(func(L *lua.LState) int { return m.schedule(L, true) }))

	clear := L.NewFunction(m.clear)
	L.SetGlobal("clearTimeout", clear)
	L.SetGlobal("clearInterval", clear)
	return nil
}

// setTimeout(fn, ms, ...) -> id
func (m *TimerModule) schedule(L *lua.LState, repeat bool) int {
	fn := L.CheckFunction(1)
	delay := time.Duration(float64(L.OptNumber(2, 0)) * float64(time.Millisecond))

	var args []lua.LValue
	for i := 3; i <= L.GetTop(); i++ {
		args = append(args, L.Get(i))
	}

	id, err := m.env.Context.Timers().Schedule(fn, delay, repeat, args...)
	if err != nil {
		m.env.logger().Warn("timer not scheduled", zap.Bool("repeat", repeat), zap.Error(err))
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(id))
	return 1
}

// clearTimeout(id)
func (m *TimerModule) clear(L *lua.LState) int {
	if n, ok := L.Get(1).(lua.LNumber); ok {
		m.env.Context.Timers().Cancel(int(n))
	}
	return 0
}
