package lua

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// Job is a unit of Lua work run on the executor goroutine.
type Job struct {
	// Fn receives the LState and performs all Lua operations.
	Fn func(L *lua.LState) error

	// Result receives the outcome and is closed afterwards.
	Result chan error
}

// Executor runs every operation on a Lua state from one goroutine.
//
// gopher-lua's LState is NOT goroutine-safe. Callers on any goroutine submit
// jobs; the goroutine running Run executes them in order. A job that blocks
// (a synchronous network request, a promise await) parks only this
// executor, so other plugins keep running.
//
//	exec := NewExecutor(L, 0)
//	go exec.Run(ctx)
//	defer exec.Close()
//
//	err := exec.Execute(ctx, func(L *lua.LState) error {
//	    return L.CallByParam(lua.P{Fn: fn, Protect: true})
//	})
type Executor struct {
	L       *lua.LState
	queue   chan *Job
	closed  atomic.Bool
	done    chan struct{}
	stopped chan struct{}

	// jobTimeout bounds every job through LState.SetContext when > 0.
	jobTimeout time.Duration

	closeOnce sync.Once
}

// NewExecutor creates a new Executor for the given Lua state.
// The queue size determines how many jobs can be buffered.
func NewExecutor(L *lua.LState, queueSize int) *Executor {
	if queueSize <= 0 {
		queueSize = 100
	}
	return &Executor{
		L:       L,
		queue:   make(chan *Job, queueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// SetJobTimeout bounds the Lua run time of each job. Zero disables the bound.
// It must be called before Run.
func (e *Executor) SetJobTimeout(d time.Duration) {
	e.jobTimeout = d
}

// Run processes jobs until the context is cancelled or Close is called.
// MUST be called from the goroutine that owns the Lua state.
func (e *Executor) Run(ctx context.Context) {
	defer close(e.stopped)
	for {
		select {
		case <-ctx.Done():
			e.closed.Store(true)
			e.drainQueue(ctx.Err())
			return
		case <-e.done:
			e.drainQueue(ErrExecutorClosed)
			return
		case job := <-e.queue:
			err := e.run(ctx, job)
			job.Result <- err
			close(job.Result)
		}
	}
}

// Stopped is closed once Run has returned.
func (e *Executor) Stopped() <-chan struct{} {
	return e.stopped
}

// run executes a single job with panic recovery.
func (e *Executor) run(ctx context.Context, job *Job) (err error) {
	if e.jobTimeout > 0 {
		jctx, cancel := context.WithTimeout(ctx, e.jobTimeout)
		e.L.SetContext(jctx)
		defer func() {
			e.L.RemoveContext()
			cancel()
		}()
	}

	defer func() {
		if r := recover(); r != nil {
			switch v := r.(type) {
			case error:
				err = v
			case string:
				err = errors.New(v)
			default:
				err = fmt.Errorf("lua panic: %v", v)
			}
		}
	}()
	return job.Fn(e.L)
}

// drainQueue fails every queued job with err.
func (e *Executor) drainQueue(err error) {
	for {
		select {
		case job := <-e.queue:
			job.Result <- err
			close(job.Result)
		default:
			return
		}
	}
}

// Execute runs fn on the executor goroutine and waits for it.
//
// If ctx ends first Execute returns ctx.Err(); the job still runs to
// completion. Execute must not be called from inside a running job.
func (e *Executor) Execute(ctx context.Context, fn func(L *lua.LState) error) error {
	if e.closed.Load() {
		return ErrExecutorClosed
	}

	job := &Job{
		Fn:     fn,
		Result: make(chan error, 1),
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrExecutorClosed
	case e.queue <- job:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err, ok := <-job.Result:
		if !ok {
			return ErrExecutorClosed
		}
		return err
	case <-e.stopped:
		return e.settle(job)
	}
}

// settle collects the result of a job queued after Run may have exited.
func (e *Executor) settle(job *Job) error {
	select {
	case err, ok := <-job.Result:
		if ok {
			return err
		}
	default:
	}
	return ErrExecutorClosed
}

// ExecuteAsync queues fn without waiting. Timer and callback deliveries use
// it. onDone, if non-nil, receives the job result on another goroutine.
func (e *Executor) ExecuteAsync(fn func(L *lua.LState) error, onDone func(error)) error {
	if e.closed.Load() {
		return ErrExecutorClosed
	}

	job := &Job{
		Fn:     fn,
		Result: make(chan error, 1),
	}

	select {
	case <-e.done:
		return ErrExecutorClosed
	case e.queue <- job:
		go func() {
			var err error
			select {
			case err = <-job.Result:
			case <-e.stopped:
				err = e.settle(job)
			}
			if onDone != nil {
				onDone(err)
			}
		}()
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending returns the number of queued jobs.
func (e *Executor) Pending() int {
	return len(e.queue)
}

// Close stops the executor and prevents new jobs.
// Queued jobs complete with ErrExecutorClosed.
func (e *Executor) Close() {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		close(e.done)
	})
}

// IsClosed returns true if the executor has been closed.
func (e *Executor) IsClosed() bool {
	return e.closed.Load()
}
