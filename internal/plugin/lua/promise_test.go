package lua

import (
	"context"
	"testing"
	"time"

	lua "github.com/yuin/gopher-lua"
)

func TestPromiseResolveOnce(t *testing.T) {
	p := NewPromise()
	if p.Value() != nil {
		t.Error("Value() before Resolve should be nil")
	}

	var calls int
	p.OnResolve(func(v any) { calls++ })

	p.Resolve("first")
	p.Resolve("second")

	select {
	case <-p.Done():
	default:
		t.Fatal("Done() should be closed after Resolve")
	}
	if p.Value() != "first" {
		t.Errorf("Value() = %v, want first", p.Value())
	}
	if calls != 1 {
		t.Errorf("callbacks = %d, want 1", calls)
	}

	var late any
	p.OnResolve(func(v any) { late = v })
	if late != "first" {
		t.Errorf("late callback got %v, want first", late)
	}
}

func TestPromiseAwait(t *testing.T) {
	c := newTestContext(t)
	p := NewPromise()

	go func() {
		time.Sleep(10 * time.Millisecond)
		p.Resolve(map[string]any{"status": 200})
	}()

	var status lua.LValue
	var done lua.LValue
	err := c.Do(context.Background(), func(L *lua.LState) error {
		L.SetGlobal("p", c.NewPromiseValue(L, p))
		if _, err := c.Eval(L, "await", `r = p:await(); finished = p:done()`); err != nil {
			return err
		}
		status = L.GetField(L.GetGlobal("r"), "status")
		done = L.GetGlobal("finished")
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if status != lua.LNumber(200) {
		t.Errorf("status = %v, want 200", status)
	}
	if done != lua.LTrue {
		t.Errorf("done() = %v, want true", done)
	}
}

func TestPromiseNext(t *testing.T) {
	c := newTestContext(t)
	p := NewPromise()

	err := c.Do(context.Background(), func(L *lua.LState) error {
		L.SetGlobal("p", c.NewPromiseValue(L, p))
		_, err := c.Eval(L, "next", `p:next(function(v) got = v end)`)
		return err
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	p.Resolve("body")

	waitFor(t, c, func(L *lua.LState) bool {
		return L.GetGlobal("got") == lua.LString("body")
	})
}
