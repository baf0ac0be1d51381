// Package security provides security primitives for the plugin system.
//
// Plugins are not treated as hostile; these controls keep a misbehaving
// plugin from starving the rest of the process and let an operator switch
// parts of the capability surface off.
//
// # Capabilities
//
// Each capability module in the api package names the capability it needs.
// Modules whose capability is not granted are simply not installed, so the
// plugin sees nil globals instead of errors. "network" implies
// "network.source".
//
// # Permissions
//
// The PermissionChecker holds the granted capabilities plus host and path
// allow/block lists used by request and module resolution:
//
//	checker := security.NewDefaultPermissionChecker(id)
//	checker.ApplyPermissionSet(&security.PermissionSet{
//	    Deny:         []security.Capability{security.CapabilityTimer},
//	    BlockedHosts: []string{"*.internal"},
//	})
//
//	if err := checker.CheckURL("http://api.internal/x"); err != nil {
//	    // request refused
//	}
//
// # Resource Limits
//
// ResourceMonitor rate limits network requests with a token bucket, caps
// pending timers and response sizes, and carries the optional execution
// timeout.
package security
