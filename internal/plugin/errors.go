package plugin

import (
	"errors"
	"fmt"
)

// Plugin system errors.
var (
	// ErrSourceUnavailable is returned when plugin source cannot be read or
	// fetched.
	ErrSourceUnavailable = errors.New("plugin source unavailable")

	// ErrExecution is returned when plugin code raises, during load or
	// during an operation.
	ErrExecution = errors.New("plugin execution failed")

	// ErrAdapterDestroyed is returned by every operation after Destroy.
	ErrAdapterDestroyed = errors.New("plugin adapter destroyed")

	// ErrPluginNotFound is returned when a managed plugin key is unknown.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrAlreadyLoaded is returned when a managed plugin key is taken.
	ErrAlreadyLoaded = errors.New("plugin is already loaded")

	// ErrInvalidManifest is returned when manifest validation fails.
	ErrInvalidManifest = errors.New("invalid plugin manifest")
)

// SourceError reports a plugin source that could not be obtained.
type SourceError struct {
	Location string
	Err      error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("plugin source %s unavailable: %v", e.Location, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// Is reports ErrSourceUnavailable as matching.
func (e *SourceError) Is(target error) bool {
	return target == ErrSourceUnavailable
}

// ExecutionError reports plugin code that raised. Op is "load",
// "extension" or the operation name.
type ExecutionError struct {
	Op  string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("plugin %s: %v", e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Is reports ErrExecution as matching.
func (e *ExecutionError) Is(target error) bool {
	return target == ErrExecution
}
