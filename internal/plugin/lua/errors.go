package lua

import "errors"

// Errors for Lua runtime operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrExecutorClosed is returned when attempting to use a closed executor.
	ErrExecutorClosed = errors.New("lua executor is closed")

	// ErrQueueFull is returned by ExecuteAsync when the queue has no room.
	ErrQueueFull = errors.New("lua executor queue full")

	// ErrContextClosed is returned when using a closed execution context.
	ErrContextClosed = errors.New("execution context is closed")

	// ErrTooManyTimers is returned when the timer budget is spent.
	ErrTooManyTimers = errors.New("too many pending timers")

	// ErrNotFunction is returned when a value expected to be callable is not.
	ErrNotFunction = errors.New("value is not a function")
)
