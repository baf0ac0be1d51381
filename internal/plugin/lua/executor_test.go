package lua

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	lua "github.com/yuin/gopher-lua"
)

func startExecutor(t *testing.T, queueSize int) (*Executor, context.Context) {
	t.Helper()
	L := lua.NewState()
	exec := NewExecutor(L, queueSize)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	go exec.Run(ctx)
	t.Cleanup(func() {
		exec.Close()
		<-exec.Stopped()
		cancel()
		L.Close()
	})
	return exec, ctx
}

func TestNewExecutorDefaultQueueSize(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	exec := NewExecutor(L, 0)
	if cap(exec.queue) != 100 {
		t.Errorf("queue cap = %d, want 100", cap(exec.queue))
	}
	if exec.IsClosed() {
		t.Error("new executor should not be closed")
	}
}

func TestExecutorExecute(t *testing.T) {
	exec, ctx := startExecutor(t, 10)

	var got lua.LValue
	err := exec.Execute(ctx, func(L *lua.LState) error {
		if err := L.DoString(`x = 40 + 2`); err != nil {
			return err
		}
		got = L.GetGlobal("x")
		return nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got != lua.LNumber(42) {
		t.Errorf("x = %v, want 42", got)
	}
}

func TestExecutorExecuteReturnsError(t *testing.T) {
	exec, ctx := startExecutor(t, 10)

	want := errors.New("boom")
	err := exec.Execute(ctx, func(L *lua.LState) error { return want })
	if !errors.Is(err, want) {
		t.Errorf("Execute() error = %v, want %v", err, want)
	}
}

func TestExecutorExecuteAsync(t *testing.T) {
	exec, _ := startExecutor(t, 10)

	done := make(chan error, 1)
	var executed atomic.Bool
	err := exec.ExecuteAsync(func(L *lua.LState) error {
		executed.Store(true)
		return nil
	}, func(err error) { done <- err })
	if err != nil {
		t.Fatalf("ExecuteAsync() error = %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("async job error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("async job did not complete")
	}
	if !executed.Load() {
		t.Error("async job was not executed")
	}
}

func TestExecutorQueueFull(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	// not running: nothing drains the queue
	exec := NewExecutor(L, 1)
	defer exec.Close()

	if err := exec.ExecuteAsync(func(L *lua.LState) error { return nil }, nil); err != nil {
		t.Fatalf("first ExecuteAsync() error = %v", err)
	}
	if err := exec.ExecuteAsync(func(L *lua.LState) error { return nil }, nil); !errors.Is(err, ErrQueueFull) {
		t.Errorf("second ExecuteAsync() error = %v, want ErrQueueFull", err)
	}
	if exec.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", exec.Pending())
	}
}

func TestExecutorClose(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	exec := NewExecutor(L, 10)
	go exec.Run(context.Background())

	exec.Close()
	<-exec.Stopped()

	if !exec.IsClosed() {
		t.Error("executor should be closed")
	}
	if err := exec.Execute(context.Background(), func(L *lua.LState) error { return nil }); err != ErrExecutorClosed {
		t.Errorf("Execute() after Close error = %v, want ErrExecutorClosed", err)
	}
	if err := exec.ExecuteAsync(func(L *lua.LState) error { return nil }, nil); err != ErrExecutorClosed {
		t.Errorf("ExecuteAsync() after Close error = %v, want ErrExecutorClosed", err)
	}

	exec.Close()
}

func TestExecutorConcurrentAccess(t *testing.T) {
	exec, ctx := startExecutor(t, 100)

	var wg sync.WaitGroup
	counter := 0 // only touched on the executor goroutine
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				err := exec.Execute(ctx, func(L *lua.LState) error {
					counter++
					return nil
				})
				if err != nil {
					t.Errorf("Execute() error = %v", err)
				}
			}
		}()
	}
	wg.Wait()

	var final int
	_ = exec.Execute(ctx, func(L *lua.LState) error {
		final = counter
		return nil
	})
	if final != 100 {
		t.Errorf("counter = %d, want 100", final)
	}
}

func TestExecutorWaitCancelled(t *testing.T) {
	exec, _ := startExecutor(t, 10)

	release := make(chan struct{})
	go func() {
		_ = exec.Execute(context.Background(), func(L *lua.LState) error {
			<-release
			return nil
		})
	}()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := exec.Execute(ctx, func(L *lua.LState) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Execute() error = %v, want DeadlineExceeded", err)
	}
}

func TestExecutorJobTimeout(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	exec := NewExecutor(L, 10)
	exec.SetJobTimeout(50 * time.Millisecond)
	go exec.Run(context.Background())
	defer exec.Close()

	err := exec.Execute(context.Background(), func(L *lua.LState) error {
		return L.DoString(`while true do end`)
	})
	if err == nil {
		t.Fatal("Execute() of endless loop should fail with a timeout")
	}

	err = exec.Execute(context.Background(), func(L *lua.LState) error {
		return L.DoString(`y = 1`)
	})
	if err != nil {
		t.Errorf("Execute() after timeout error = %v", err)
	}
}

func TestExecutorPanicRecovery(t *testing.T) {
	exec, ctx := startExecutor(t, 10)

	err := exec.Execute(ctx, func(L *lua.LState) error {
		panic("test panic")
	})
	if err == nil || err.Error() != "test panic" {
		t.Fatalf("Execute() error = %v, want test panic", err)
	}

	var executed bool
	if err := exec.Execute(ctx, func(L *lua.LState) error {
		executed = true
		return nil
	}); err != nil {
		t.Fatalf("Execute() after panic error = %v", err)
	}
	if !executed {
		t.Error("job after panic was not executed")
	}
}
