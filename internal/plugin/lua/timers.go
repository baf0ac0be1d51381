package lua

import (
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// TimerBudget limits how many timers a context may hold at once.
type TimerBudget interface {
	AcquireTimer() bool
	ReleaseTimer()
}

type timerEntry struct {
	fn       *lua.LFunction
	args     []lua.LValue
	interval time.Duration
	repeat   bool
	t        *time.Timer
}

// Timers schedules Lua callbacks on a context's executor.
type Timers struct {
	c *Context

	mu      sync.Mutex
	nextID  int
	entries map[int]*timerEntry
	stopped bool

	budget TimerBudget
}

func newTimers(c *Context, budget TimerBudget) *Timers {
	return &Timers{
		c:       c,
		entries: make(map[int]*timerEntry),
		budget:  budget,
	}
}

// Schedule arranges for fn to be called after delay, and every delay after
// that when repeat is set. It returns the timer id.
func (t *Timers) Schedule(fn *lua.LFunction, delay time.Duration, repeat bool, args ...lua.LValue) (int, error) {
	if delay < 0 {
		delay = 0
	}
	if repeat && delay < time.Millisecond {
		delay = time.Millisecond
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return 0, ErrContextClosed
	}
	if t.budget != nil && !t.budget.AcquireTimer() {
		return 0, ErrTooManyTimers
	}

	t.nextID++
	id := t.nextID
	e := &timerEntry{fn: fn, args: args, interval: delay, repeat: repeat}
	e.t = time.AfterFunc(delay, func() { t.fire(id) })
	t.entries[id] = e
	return id, nil
}

// fire queues the callback of timer id on the executor.
func (t *Timers) fire(id int) {
	t.mu.Lock()
	e, ok := t.entries[id]
	if !ok || t.stopped {
		t.mu.Unlock()
		return
	}
	if !e.repeat {
		t.remove(id)
	}
	t.mu.Unlock()

	t.c.Post("timer", func(L *lua.LState) error {
		// an interval may have been cleared while queued
		if e.repeat && !t.active(id) {
			return nil
		}
		err := L.CallByParam(lua.P{Fn: e.fn, NRet: 0, Protect: true}, e.args...)

		if e.repeat {
			t.mu.Lock()
			if _, ok := t.entries[id]; ok && !t.stopped {
				e.t.Reset(e.interval)
			}
			t.mu.Unlock()
		}
		return err
	})
}

func (t *Timers) active(id int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[id]
	return ok
}

// remove deletes an entry. Caller holds t.mu.
func (t *Timers) remove(id int) {
	if _, ok := t.entries[id]; !ok {
		return
	}
	delete(t.entries, id)
	if t.budget != nil {
		t.budget.ReleaseTimer()
	}
}

// Cancel stops timer id. Unknown ids are ignored.
func (t *Timers) Cancel(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.entries[id]; ok {
		e.t.Stop()
		t.remove(id)
	}
}

// Pending returns the number of scheduled timers.
func (t *Timers) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// StopAll cancels every timer and refuses new ones.
func (t *Timers) StopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, e := range t.entries {
		e.t.Stop()
		t.remove(id)
	}
	t.stopped = true
}
