package plugin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vvip-tv/vvip-parser/internal/plugin/security"
)

// Manifest is an optional YAML sidecar describing how a plugin may run. A
// local plugin site.lua picks up site.yaml (or site.yml) next to it.
//
//	name: site
//	limits: strict
//	deny: [timer]
//	allowedHosts: ["*.example.com"]
//	extension: |
//	  rule = { host = "https://example.com" }
type Manifest struct {
	Name string `yaml:"name"`

	// Limits is "default", "strict" or "relaxed".
	Limits string `yaml:"limits"`

	// Deny withholds capabilities from this plugin.
	Deny []string `yaml:"deny"`

	AllowedHosts []string `yaml:"allowedHosts"`
	BlockedHosts []string `yaml:"blockedHosts"`

	// Extension is used when the caller passes none.
	Extension string `yaml:"extension"`

	// Internal: path of the manifest file
	path string
}

// Limit profiles.
const (
	LimitsDefault = "default"
	LimitsStrict  = "strict"
	LimitsRelaxed = "relaxed"
)

// namePattern validates plugin names.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// LoadManifest loads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return ParseManifest(data, path)
}

// ParseManifest parses and validates manifest YAML. path is recorded for
// error messages.
func ParseManifest(data []byte, path string) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidManifest, path, err)
	}
	m.path = path
	m.applyDefaults()

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// FindManifest returns the sidecar manifest of a local plugin, or nil when
// there is none.
func FindManifest(location string) (*Manifest, error) {
	if isRemoteLocation(location) {
		return nil, nil
	}
	base := strings.TrimSuffix(location, filepath.Ext(location))
	for _, ext := range []string{".yaml", ".yml"} {
		p := base + ext
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		return LoadManifest(p)
	}
	return nil, nil
}

func (m *Manifest) applyDefaults() {
	if m.Limits == "" {
		m.Limits = LimitsDefault
	}
}

// Validate checks that the manifest is valid.
func (m *Manifest) Validate() error {
	if m.Name != "" && !namePattern.MatchString(m.Name) {
		return fmt.Errorf("%w: name %q", ErrInvalidManifest, m.Name)
	}

	switch m.Limits {
	case LimitsDefault, LimitsStrict, LimitsRelaxed:
	default:
		return fmt.Errorf("%w: limits %q", ErrInvalidManifest, m.Limits)
	}

	for _, name := range m.Deny {
		if _, err := security.ParseCapability(name); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidManifest, err)
		}
	}
	return nil
}

// Path returns the manifest file path.
func (m *Manifest) Path() string {
	return m.path
}

// ResourceLimits returns the limits profile, starting from base for
// "default".
func (m *Manifest) ResourceLimits(base security.ResourceLimits) security.ResourceLimits {
	switch m.Limits {
	case LimitsStrict:
		return security.StrictResourceLimits()
	case LimitsRelaxed:
		return security.RelaxedResourceLimits()
	default:
		return base
	}
}

// PermissionSet converts the manifest into a policy. Capability names were
// checked by Validate.
func (m *Manifest) PermissionSet() *security.PermissionSet {
	set := &security.PermissionSet{
		AllowedHosts: m.AllowedHosts,
		BlockedHosts: m.BlockedHosts,
	}
	for _, name := range m.Deny {
		if c, err := security.ParseCapability(name); err == nil {
			set.Deny = append(set.Deny, c)
		}
	}
	return set
}
