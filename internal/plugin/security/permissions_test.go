package security

import (
	"path/filepath"
	"testing"
)

func TestPermissionCheckerGrantRevoke(t *testing.T) {
	pc := NewPermissionChecker("p1")

	if pc.HasCapability(CapabilityNetwork) {
		t.Error("new checker should have no capabilities")
	}

	pc.Grant(CapabilityNetwork)
	if !pc.HasCapability(CapabilityNetwork) {
		t.Error("HasCapability(network) = false after Grant")
	}
	if !pc.HasCapability(CapabilityRemoteSource) {
		t.Error("HasCapability(network.source) should be implied by network")
	}

	pc.Revoke(CapabilityNetwork)
	if pc.HasCapability(CapabilityRemoteSource) {
		t.Error("HasCapability(network.source) = true after revoking network")
	}
	if err := pc.CheckCapability(CapabilityNetwork); err == nil {
		t.Error("CheckCapability(network) should fail after Revoke")
	}
}

func TestDefaultPermissionChecker(t *testing.T) {
	pc := NewDefaultPermissionChecker("p1")
	if pc.PluginID() != "p1" {
		t.Errorf("PluginID() = %q, want %q", pc.PluginID(), "p1")
	}
	for _, cap := range AllCapabilities() {
		if !pc.HasCapability(cap) {
			t.Errorf("HasCapability(%q) = false", cap)
		}
	}
	if got := len(pc.Capabilities()); got != len(AllCapabilities()) {
		t.Errorf("Capabilities() len = %d, want %d", got, len(AllCapabilities()))
	}
}

func TestCheckNetwork(t *testing.T) {
	pc := NewDefaultPermissionChecker("p1")
	pc.BlockHost("*.internal")
	pc.BlockHost("169.254.169.254")

	tests := []struct {
		host    string
		wantErr bool
	}{
		{"example.com", false},
		{"example.com:8080", false},
		{"api.internal", true},
		{"API.Internal:443", true},
		{"169.254.169.254", true},
		{"[::1]:80", false},
	}
	for _, tt := range tests {
		err := pc.CheckNetwork(tt.host)
		if (err != nil) != tt.wantErr {
			t.Errorf("CheckNetwork(%q) error = %v, wantErr %v", tt.host, err, tt.wantErr)
		}
	}

	pc.AllowHost("*.example.com")
	if err := pc.CheckNetwork("cdn.example.com"); err != nil {
		t.Errorf("CheckNetwork(cdn.example.com) error = %v", err)
	}
	if err := pc.CheckNetwork("other.org"); err == nil {
		t.Error("CheckNetwork(other.org) should fail with allow list set")
	}
}

func TestCheckURL(t *testing.T) {
	pc := NewDefaultPermissionChecker("p1")
	pc.BlockHost("blocked.test")

	if err := pc.CheckURL("https://ok.test/a?b=c"); err != nil {
		t.Errorf("CheckURL(ok) error = %v", err)
	}
	if err := pc.CheckURL("http://blocked.test:8080/x"); err == nil {
		t.Error("CheckURL(blocked) should fail")
	}
	if err := pc.CheckURL("http://[::1"); err == nil {
		t.Error("CheckURL(invalid) should fail")
	}

	pc.Revoke(CapabilityNetwork)
	if err := pc.CheckURL("https://ok.test/"); err == nil {
		t.Error("CheckURL should fail without network capability")
	}
}

func TestCheckRemoteSource(t *testing.T) {
	pc := NewPermissionChecker("p1")
	pc.Grant(CapabilityRemoteSource)

	if err := pc.CheckRemoteSource("plugins.example.com"); err != nil {
		t.Errorf("CheckRemoteSource() error = %v", err)
	}
	if err := pc.CheckNetwork("plugins.example.com"); err == nil {
		t.Error("CheckNetwork() should fail with only network.source granted")
	}
}

func TestCheckFileRead(t *testing.T) {
	root := t.TempDir()
	plugins := filepath.Join(root, "plugins")
	secret := filepath.Join(plugins, "secret")

	pc := NewDefaultPermissionChecker("p1")
	if err := pc.CheckFileRead(filepath.Join(root, "any.lua")); err != nil {
		t.Errorf("CheckFileRead() with no allow list error = %v", err)
	}

	pc.AllowPath(plugins)
	pc.BlockPath(secret)

	tests := []struct {
		path    string
		wantErr bool
	}{
		{filepath.Join(plugins, "lib.lua"), false},
		{filepath.Join(plugins, "sub", "x.lua"), false},
		{filepath.Join(secret, "key.lua"), true},
		{filepath.Join(root, "pluginsx", "a.lua"), true},
		{filepath.Join(plugins, "..", "escape.lua"), true},
	}
	for _, tt := range tests {
		err := pc.CheckFileRead(tt.path)
		if (err != nil) != tt.wantErr {
			t.Errorf("CheckFileRead(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
		}
	}
}

func TestMatchHost(t *testing.T) {
	tests := []struct {
		host, pattern string
		want          bool
	}{
		{"example.com", "example.com", true},
		{"Example.COM", "example.com", true},
		{"a.example.com", "*.example.com", true},
		{"example.com", "*.example.com", false},
		{"badexample.com", "*.example.com", false},
	}
	for _, tt := range tests {
		if got := matchHost(tt.host, tt.pattern); got != tt.want {
			t.Errorf("matchHost(%q, %q) = %v, want %v", tt.host, tt.pattern, got, tt.want)
		}
	}
}

func TestApplyPermissionSet(t *testing.T) {
	pc := NewDefaultPermissionChecker("p1")
	pc.ApplyPermissionSet(&PermissionSet{
		Deny:         []Capability{CapabilityTimer, CapabilityCrypto},
		BlockedHosts: []string{"ads.test"},
	})

	if pc.HasCapability(CapabilityTimer) {
		t.Error("timer should be denied")
	}
	if pc.HasCapability(CapabilityCrypto) {
		t.Error("crypto should be denied")
	}
	if !pc.HasCapability(CapabilityStore) {
		t.Error("store should stay granted")
	}
	if err := pc.CheckNetwork("ads.test"); err == nil {
		t.Error("ads.test should be blocked")
	}

	pc.ApplyPermissionSet(nil)
}
