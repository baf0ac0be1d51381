package security

import (
	"errors"
	"strings"
	"testing"
)

func TestAllCapabilitiesSorted(t *testing.T) {
	caps := AllCapabilities()
	if len(caps) != 6 {
		t.Fatalf("AllCapabilities() len = %d, want 6", len(caps))
	}
	for i := 1; i < len(caps); i++ {
		if caps[i-1] >= caps[i] {
			t.Errorf("AllCapabilities() not sorted at %d: %q >= %q", i, caps[i-1], caps[i])
		}
	}
}

func TestParseCapability(t *testing.T) {
	tests := []struct {
		in      string
		want    Capability
		wantErr bool
	}{
		{"network", CapabilityNetwork, false},
		{" Store ", CapabilityStore, false},
		{"network.source", CapabilityRemoteSource, false},
		{"shell", "", true},
		{"", "", true},
	}

	if _, err := ParseCapability("shell"); err == nil || !strings.Contains(err.Error(), "known: crypto") {
		t.Errorf("ParseCapability(shell) error = %v, want list of known names", err)
	}

	for _, tt := range tests {
		got, err := ParseCapability(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCapability(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCapability(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestImpliesCapability(t *testing.T) {
	tests := []struct {
		granted, required Capability
		want              bool
	}{
		{CapabilityNetwork, CapabilityNetwork, true},
		{CapabilityNetwork, CapabilityRemoteSource, true},
		{CapabilityRemoteSource, CapabilityNetwork, false},
		{CapabilityStore, CapabilityCrypto, false},
		{"net", CapabilityNetwork, false},
	}

	for _, tt := range tests {
		if got := ImpliesCapability(tt.granted, tt.required); got != tt.want {
			t.Errorf("ImpliesCapability(%q, %q) = %v, want %v", tt.granted, tt.required, got, tt.want)
		}
	}
}

func TestCapabilityError(t *testing.T) {
	err := NewCapabilityError(CapabilityNetwork, "network request", "host is blocked")
	want := `capability "network" required for network request: host is blocked`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	err = NewCapabilityError(CapabilityStore, "", "not granted")
	want = `capability "store": not granted`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	var capErr *CapabilityError
	if !errors.As(error(err), &capErr) {
		t.Error("errors.As(*CapabilityError) = false")
	}
	if !errors.Is(err, ErrCapabilityDenied) {
		t.Error("errors.Is(err, ErrCapabilityDenied) = false")
	}
}
