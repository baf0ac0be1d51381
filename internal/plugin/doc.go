// Package plugin loads content-source plugins and exposes their operations.
//
// A plugin is a Lua script. It is read from a local path, an http(s) URL or
// an s3://bucket/key URL, evaluated in a fresh execution context whose
// globals are its capability surface, and wrapped in an Adapter.
//
// # Quick Start
//
//	loader := plugin.NewLoader(plugin.WithLogger(logger), plugin.WithStore(store))
//
//	a, err := loader.Load(ctx, plugin.Source{Location: "plugins/site.lua"})
//	if err != nil {
//	    return err
//	}
//	defer a.Destroy(ctx)
//
//	if err := a.Init(ctx, plugin.ParseExtension(ext)); err != nil {
//	    return err
//	}
//	home, err := a.Home(ctx, true)
//
// # Plugin Shape
//
// A plugin exposes a subset of init, home, homeVod, category, detail,
// search, play, proxy, action, sniffer, isVideo and destroy. The loader
// looks for them, in order, in the table the chunk returns, a replaced
// module.exports, exports.default, the exports table, and finally global
// functions:
//
//	local M = {}
//	function M.home(filter) return json.encode({class = {}}) end
//	function M.search(key, quick, pg) ... end
//	return M
//
// Operations a plugin does not export return documented defaults; see the
// Default* constants.
//
// # Modules
//
// require("./lib") resolves against the plugin's own location and runs the
// module in the same context. A module that cannot be resolved becomes an
// empty table and a warning; the load continues.
//
// # Extension
//
// Init receives the caller's extension: a table for structured
// configuration, a string otherwise. Extension text that assigns rule is
// code; it runs in the plugin's context after the plugin body and before
// Init, overriding the plugin's rule.
//
// # Manifest
//
// A local plugin may carry a YAML sidecar (site.yaml next to site.lua)
// that selects a limits profile, withholds capabilities and restricts
// hosts.
//
// # Lifecycle
//
//	created -> initialized -> active -> destroyed
//
// Every operation after Destroy fails with ErrAdapterDestroyed. Plugin
// errors surface as *ExecutionError and leave the adapter usable.
//
// # Managing many plugins
//
// Manager holds named adapters; Reloader watches local plugin directories
// and reloads plugins whose files change.
package plugin
