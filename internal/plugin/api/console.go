package api

import (
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vvip-tv/vvip-parser/internal/plugin/security"
)

// ConsoleModule routes console.log/info/warn/error/debug and print to the
// plugin logger. Tables are written as JSON.
type ConsoleModule struct {
	env *Env
}

// NewConsoleModule creates a new console module.
func NewConsoleModule(env *Env) *ConsoleModule {
	return &ConsoleModule{env: env}
}

// Name returns the module name.
func (m *ConsoleModule) Name() string {
	return "console"
}

// RequiredCapability returns the capability required for this module.
func (m *ConsoleModule) RequiredCapability() security.Capability {
	return ""
}

// Globals returns the installed global names.
func (m *ConsoleModule) Globals() []string {
	return []string{"console", "print"}
}

// Register registers the module into the Lua state.
func (m *ConsoleModule) Register(L *lua.LState) error {
	mod := L.NewTable()
	levels := map[string]zapcore.Level{
		"log":   zapcore.InfoLevel,
		"info":  zapcore.InfoLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"debug": zapcore.DebugLevel,
	}
	for name, level := range levels {
		L.SetField(mod, name, L.NewFunction(m.writer(mod, level)))
	}
	L.SetGlobal("console", mod)
	L.SetGlobal("print", L.NewFunction(m.writer(nil, zapcore.InfoLevel)))
	return nil
}

func (m *ConsoleModule) writer(mod *lua.LTable, level zapcore.Level) lua.LGFunction {
	return func(L *lua.LState) int {
		start := 1
		if mod != nil {
			start += selfOffset(L, mod)
		}
		parts := make([]string, 0, L.GetTop())
		for i := start; i <= L.GetTop(); i++ {
			parts = append(parts, m.format(L.Get(i)))
		}

		logger := m.env.logger().WithOptions(zap.AddCallerSkip(1))
		if ce := logger.Check(level, strings.Join(parts, " ")); ce != nil {
			ce.Write(zap.String("source", "plugin"))
		}
		return 0
	}
}

func (m *ConsoleModule) format(v lua.LValue) string {
	if t, ok := v.(*lua.LTable); ok {
		if s, err := m.env.Context.Bridge().EncodeJSON(t); err == nil {
			return s
		}
	}
	return v.String()
}
