package plugin

// State represents the lifecycle state of an adapter.
type State int

// Adapter states.
const (
	// StateCreated - loaded, init not called yet.
	StateCreated State = iota

	// StateInitialized - init returned.
	StateInitialized

	// StateActive - an operation has run after init.
	StateActive

	// StateDestroyed - destroy called; every operation fails.
	StateDestroyed

	// StateError - init raised. Operations remain callable.
	StateError
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitialized:
		return "initialized"
	case StateActive:
		return "active"
	case StateDestroyed:
		return "destroyed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// IsUsable returns true if operations may be called.
func (s State) IsUsable() bool {
	return s != StateDestroyed
}
