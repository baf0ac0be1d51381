package lua

import (
	"sync"

	lua "github.com/yuin/gopher-lua"
)

const promiseTypeName = "vvip.promise"

// Promise is a value produced on another goroutine and consumed by Lua.
//
// The producer resolves it with a plain Go value; conversion to Lua happens
// on the executor when the plugin calls :await() or a callback fires.
type Promise struct {
	done  chan struct{}
	once  sync.Once
	value any

	mu        sync.Mutex
	callbacks []func(any)
}

// NewPromise creates an unresolved promise.
func NewPromise() *Promise {
	return &Promise{done: make(chan struct{})}
}

// Resolve settles the promise. Later calls are ignored.
func (p *Promise) Resolve(v any) {
	p.once.Do(func() {
		p.value = v
		close(p.done)

		p.mu.Lock()
		cbs := p.callbacks
		p.callbacks = nil
		p.mu.Unlock()
		for _, cb := range cbs {
			cb(v)
		}
	})
}

// Done is closed when the promise settles.
func (p *Promise) Done() <-chan struct{} {
	return p.done
}

// Value returns the settled value, or nil before settlement.
func (p *Promise) Value() any {
	select {
	case <-p.done:
		return p.value
	default:
		return nil
	}
}

// OnResolve registers cb to run with the value once settled. cb runs on the
// resolving goroutine, or immediately if already settled.
func (p *Promise) OnResolve(cb func(any)) {
	p.mu.Lock()
	select {
	case <-p.done:
		p.mu.Unlock()
		cb(p.value)
		return
	default:
	}
	p.callbacks = append(p.callbacks, cb)
	p.mu.Unlock()
}

// registerPromiseType installs the promise metatable in L.
func registerPromiseType(L *lua.LState, c *Context) {
	mt := L.NewTypeMetatable(promiseTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"await": func(L *lua.LState) int {
			p := checkPromise(L)
			select {
			case <-p.done:
			case <-c.base.Done():
				L.Push(lua.LNil)
				return 1
			}
			L.Push(c.bridge.ToLuaValue(p.value))
			return 1
		},
		"done": func(L *lua.LState) int {
			p := checkPromise(L)
			select {
			case <-p.done:
				L.Push(lua.LTrue)
			default:
				L.Push(lua.LFalse)
			}
			return 1
		},
		"next": func(L *lua.LState) int {
			p := checkPromise(L)
			fn := L.CheckFunction(2)
			p.OnResolve(func(v any) {
				c.Post("promise callback", func(L *lua.LState) error {
					return L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, c.bridge.ToLuaValue(v))
				})
			})
			L.Push(L.Get(1))
			return 1
		},
	}))
	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString("promise"))
		return 1
	}))
}

// NewPromiseValue wraps p as a Lua userdata with await/done/next methods.
func (c *Context) NewPromiseValue(L *lua.LState, p *Promise) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = p
	L.SetMetatable(ud, L.GetTypeMetatable(promiseTypeName))
	return ud
}

func checkPromise(L *lua.LState) *Promise {
	ud := L.CheckUserData(1)
	p, ok := ud.Value.(*Promise)
	if !ok {
		L.ArgError(1, "promise expected")
		return nil
	}
	return p
}
