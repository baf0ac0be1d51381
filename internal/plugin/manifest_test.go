package plugin

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/vvip-tv/vvip-parser/internal/plugin/security"
)

func TestParseManifest(t *testing.T) {
	data := []byte(`
name: site
limits: strict
deny: [timer, crypto]
allowedHosts: ["*.example.com"]
blockedHosts: [ads.example.com]
extension: |
  rule = {}
`)
	m, err := ParseManifest(data, "site.yaml")
	if err != nil {
		t.Fatalf("ParseManifest() error = %v", err)
	}
	if m.Name != "site" || m.Path() != "site.yaml" {
		t.Errorf("Name = %q, Path = %q", m.Name, m.Path())
	}
	if !ParseExtension(m.Extension).IsCode() {
		t.Errorf("Extension = %q", m.Extension)
	}

	limits := m.ResourceLimits(security.DefaultResourceLimits())
	if limits != security.StrictResourceLimits() {
		t.Errorf("ResourceLimits() = %+v, want strict", limits)
	}

	set := m.PermissionSet()
	if len(set.Deny) != 2 || set.Deny[0] != security.CapabilityTimer || set.Deny[1] != security.CapabilityCrypto {
		t.Errorf("Deny = %v", set.Deny)
	}

	checker := security.NewDefaultPermissionChecker("site")
	checker.ApplyPermissionSet(set)
	if checker.HasCapability(security.CapabilityTimer) {
		t.Error("timer should be denied")
	}
	if err := checker.CheckURL("https://ads.example.com/x"); err == nil {
		t.Error("blocked host should be refused")
	}
	if err := checker.CheckURL("https://other.org/x"); err == nil {
		t.Error("host outside allowed list should be refused")
	}
	if err := checker.CheckURL("https://api.example.com/x"); err != nil {
		t.Errorf("allowed host refused: %v", err)
	}
}

func TestParseManifestDefaults(t *testing.T) {
	m, err := ParseManifest([]byte("name: site\n"), "site.yaml")
	if err != nil {
		t.Fatalf("ParseManifest() error = %v", err)
	}
	if m.Limits != LimitsDefault {
		t.Errorf("Limits = %q, want default", m.Limits)
	}
	base := security.RelaxedResourceLimits()
	if m.ResourceLimits(base) != base {
		t.Error("default profile should keep the base limits")
	}
}

func TestParseManifestInvalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":       "name: [",
		"bad name":       "name: \"bad name\"",
		"bad limits":     "limits: huge",
		"bad capability": "deny: [teleport]",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseManifest([]byte(data), "x.yaml")
			if !errors.Is(err, ErrInvalidManifest) {
				t.Errorf("ParseManifest() error = %v, want ErrInvalidManifest", err)
			}
		})
	}
}

func TestFindManifest(t *testing.T) {
	dir := t.TempDir()
	lua := writeFile(t, dir, "site.lua", "")
	writeFile(t, dir, "site.yml", "name: site\nlimits: relaxed\n")

	m, err := FindManifest(lua)
	if err != nil {
		t.Fatalf("FindManifest() error = %v", err)
	}
	if m == nil || m.Limits != LimitsRelaxed || m.Path() != filepath.Join(dir, "site.yml") {
		t.Errorf("FindManifest() = %+v", m)
	}

	other := writeFile(t, dir, "other.lua", "")
	if m, err := FindManifest(other); m != nil || err != nil {
		t.Errorf("FindManifest(no sidecar) = %v, %v", m, err)
	}
	if m, err := FindManifest("https://example.com/site.lua"); m != nil || err != nil {
		t.Errorf("FindManifest(remote) = %v, %v", m, err)
	}
}

func TestLoadManifestMissing(t *testing.T) {
	if _, err := LoadManifest(filepath.Join(t.TempDir(), "none.yaml")); err == nil {
		t.Error("LoadManifest() should fail for a missing file")
	}
}
