package security

import (
	"net"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
)

// PermissionChecker decides which capabilities a plugin instance may use and
// which hosts and paths it may reach.
type PermissionChecker struct {
	mu sync.RWMutex

	capabilities map[Capability]bool

	// normalized absolute paths
	allowedPaths []string
	blockedPaths []string

	// lowercased host patterns
	allowedHosts []string
	blockedHosts []string

	pluginID string
}

// NewPermissionChecker creates a checker with no capabilities granted.
func NewPermissionChecker(pluginID string) *PermissionChecker {
	return &PermissionChecker{
		capabilities: make(map[Capability]bool),
		pluginID:     pluginID,
	}
}

// NewDefaultPermissionChecker creates a checker with every known capability
// granted.
func NewDefaultPermissionChecker(pluginID string) *PermissionChecker {
	pc := NewPermissionChecker(pluginID)
	pc.GrantAll(AllCapabilities())
	return pc
}

// PluginID returns the plugin the checker belongs to.
func (pc *PermissionChecker) PluginID() string {
	return pc.pluginID
}

// Grant grants a capability to the plugin.
func (pc *PermissionChecker) Grant(cap Capability) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.capabilities[cap] = true
}

// Revoke revokes a capability and every capability it implies.
func (pc *PermissionChecker) Revoke(cap Capability) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	for granted := range pc.capabilities {
		if ImpliesCapability(cap, granted) {
			delete(pc.capabilities, granted)
		}
	}
}

// GrantAll grants multiple capabilities.
func (pc *PermissionChecker) GrantAll(caps []Capability) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	for _, cap := range caps {
		pc.capabilities[cap] = true
	}
}

// HasCapability returns true if the capability is granted directly or through
// a parent.
func (pc *PermissionChecker) HasCapability(cap Capability) bool {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	if pc.capabilities[cap] {
		return true
	}
	for granted := range pc.capabilities {
		if ImpliesCapability(granted, cap) {
			return true
		}
	}
	return false
}

// CheckCapability returns an error if the capability is not granted.
func (pc *PermissionChecker) CheckCapability(cap Capability) error {
	if !pc.HasCapability(cap) {
		return NewCapabilityError(cap, "", "not granted")
	}
	return nil
}

// Capabilities returns all granted capabilities.
func (pc *PermissionChecker) Capabilities() []Capability {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	caps := make([]Capability, 0, len(pc.capabilities))
	for cap := range pc.capabilities {
		caps = append(caps, cap)
	}
	return caps
}

// AllowPath adds a directory local module references may be read from.
func (pc *PermissionChecker) AllowPath(path string) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.allowedPaths = append(pc.allowedPaths, normalizePath(path))
}

// BlockPath adds a directory local module references may never be read from.
func (pc *PermissionChecker) BlockPath(path string) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.blockedPaths = append(pc.blockedPaths, normalizePath(path))
}

func normalizePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return filepath.Clean(abs)
}

// CheckFileRead checks whether a local module reference may be read.
// With no allowed paths configured every non-blocked path is readable.
func (pc *PermissionChecker) CheckFileRead(path string) error {
	if !pc.HasCapability(CapabilityFileRead) {
		return NewCapabilityError(CapabilityFileRead, "read file", "not granted")
	}

	pc.mu.RLock()
	defer pc.mu.RUnlock()

	abs := normalizePath(path)
	for _, blocked := range pc.blockedPaths {
		if isWithinPath(abs, blocked) {
			return NewCapabilityError(CapabilityFileRead, "read file", "path is blocked")
		}
	}

	if len(pc.allowedPaths) == 0 {
		return nil
	}
	for _, allowed := range pc.allowedPaths {
		if isWithinPath(abs, allowed) {
			return nil
		}
	}
	return NewCapabilityError(CapabilityFileRead, "read file", "path not in allowed list")
}

// isWithinPath reports whether target is base or below it.
func isWithinPath(target, base string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// AllowHost adds a host pattern to the allowed list. "*.example.com" matches
// every subdomain.
func (pc *PermissionChecker) AllowHost(host string) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.allowedHosts = append(pc.allowedHosts, strings.ToLower(host))
}

// BlockHost adds a host pattern to the blocked list.
func (pc *PermissionChecker) BlockHost(host string) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.blockedHosts = append(pc.blockedHosts, strings.ToLower(host))
}

// CheckNetwork checks if a request to host (optionally host:port) is
// permitted.
func (pc *PermissionChecker) CheckNetwork(host string) error {
	return pc.checkHost(CapabilityNetwork, host)
}

// CheckURL checks a full request URL.
func (pc *PermissionChecker) CheckURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return NewCapabilityError(CapabilityNetwork, "network request", "invalid url")
	}
	return pc.CheckNetwork(u.Host)
}

// CheckRemoteSource checks whether a module may be resolved from host.
func (pc *PermissionChecker) CheckRemoteSource(host string) error {
	return pc.checkHost(CapabilityRemoteSource, host)
}

func (pc *PermissionChecker) checkHost(cap Capability, host string) error {
	if !pc.HasCapability(cap) {
		return NewCapabilityError(cap, "network request", "not granted")
	}

	pc.mu.RLock()
	defer pc.mu.RUnlock()

	hostOnly := strings.ToLower(extractHost(host))

	for _, blocked := range pc.blockedHosts {
		if matchHost(hostOnly, blocked) {
			return NewCapabilityError(cap, "network request", "host is blocked")
		}
	}

	if len(pc.allowedHosts) > 0 {
		for _, allowed := range pc.allowedHosts {
			if matchHost(hostOnly, allowed) {
				return nil
			}
		}
		return NewCapabilityError(cap, "network request", "host not in allowed list")
	}

	return nil
}

// extractHost strips the port from host:port, handling bracketed IPv6.
func extractHost(hostPort string) string {
	host, _, err := net.SplitHostPort(hostPort)
	if err == nil {
		return host
	}
	if strings.HasPrefix(hostPort, "[") && strings.HasSuffix(hostPort, "]") {
		return hostPort[1 : len(hostPort)-1]
	}
	return hostPort
}

// matchHost checks if a host matches a pattern (case-insensitive).
func matchHost(host, pattern string) bool {
	host = strings.ToLower(host)
	pattern = strings.ToLower(pattern)

	if host == pattern {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		return strings.HasSuffix(host, pattern[1:])
	}
	return false
}

// PermissionSet is the configured permission policy applied to every plugin.
type PermissionSet struct {
	// Deny lists capabilities withheld from plugins.
	Deny []Capability

	AllowedHosts []string
	BlockedHosts []string

	AllowedPaths []string
	BlockedPaths []string
}

// ApplyPermissionSet applies a policy on top of the current grants.
func (pc *PermissionChecker) ApplyPermissionSet(set *PermissionSet) {
	if set == nil {
		return
	}
	for _, cap := range set.Deny {
		pc.Revoke(cap)
	}
	for _, h := range set.AllowedHosts {
		pc.AllowHost(h)
	}
	for _, h := range set.BlockedHosts {
		pc.BlockHost(h)
	}
	for _, p := range set.AllowedPaths {
		pc.AllowPath(p)
	}
	for _, p := range set.BlockedPaths {
		pc.BlockPath(p)
	}
}
