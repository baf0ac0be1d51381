// Package security provides security primitives for the plugin system.
package security

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Capability names a part of the capability surface. Names are dotted;
// granting "network" also grants "network.source".
type Capability string

// Capabilities known to the plugin host.
const (
	// CapabilityNetwork gates req, http, _http and fetch.
	CapabilityNetwork Capability = "network"

	// CapabilityRemoteSource lets require() pull modules over HTTP or S3.
	CapabilityRemoteSource Capability = "network.source"

	// CapabilityFileRead lets require() read local modules.
	CapabilityFileRead Capability = "filesystem.read"

	// CapabilityStore gates the shared key-value store.
	CapabilityStore Capability = "store"

	// CapabilityCrypto gates md5X, aesX and rsaX.
	CapabilityCrypto Capability = "crypto"

	// CapabilityTimer gates setTimeout and setInterval.
	CapabilityTimer Capability = "timer"
)

// known is sorted.
var known = []Capability{
	CapabilityCrypto,
	CapabilityFileRead,
	CapabilityNetwork,
	CapabilityRemoteSource,
	CapabilityStore,
	CapabilityTimer,
}

// ErrCapabilityDenied matches every *CapabilityError.
var ErrCapabilityDenied = errors.New("capability denied")

// ParseCapability converts a configured name into a Capability.
func ParseCapability(name string) (Capability, error) {
	c := Capability(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := slices.BinarySearch(known, c); !ok {
		return "", fmt.Errorf("unknown capability %q (known: %s)", name, joinCapabilities(known))
	}
	return c, nil
}

// AllCapabilities returns every known capability, sorted.
func AllCapabilities() []Capability {
	return slices.Clone(known)
}

// ImpliesCapability reports whether holding granted satisfies required.
func ImpliesCapability(granted, required Capability) bool {
	return granted == required || strings.HasPrefix(string(required), string(granted)+".")
}

func joinCapabilities(caps []Capability) string {
	parts := make([]string, len(caps))
	for i, c := range caps {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}

// CapabilityError reports a refused capability use. Capability modules turn
// it into a sentinel result rather than a Lua error.
type CapabilityError struct {
	Capability Capability
	Operation  string
	Message    string
}

func (e *CapabilityError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("capability %q required for %s: %s", e.Capability, e.Operation, e.Message)
	}
	return fmt.Sprintf("capability %q: %s", e.Capability, e.Message)
}

// Is reports whether target is ErrCapabilityDenied.
func (e *CapabilityError) Is(target error) bool {
	return target == ErrCapabilityDenied
}

// NewCapabilityError creates a capability error.
func NewCapabilityError(c Capability, operation, message string) *CapabilityError {
	return &CapabilityError{Capability: c, Operation: operation, Message: message}
}
