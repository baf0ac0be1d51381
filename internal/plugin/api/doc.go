// Package api provides the capability surface installed into plugin
// contexts.
//
// Plugins see capabilities as plain globals. Each group of globals is a
// Module:
//
//   - console: console.log/info/warn/error/debug, print
//   - json: json.encode, json.decode
//   - util: joinUrl, s2t, t2s, getProxy, similarity
//   - query: pd, pdfh, pdfa, pdfl, jsonGet
//   - crypto: md5X, aesX, rsaX, base64Encode, base64Decode
//   - net: req, http, _http, fetch
//   - store: store (alias local)
//   - timer: setTimeout, clearTimeout, setInterval, clearInterval
//
// # Capabilities
//
// A module may require a capability. Registry.InjectAll installs only the
// modules whose capability the plugin's PermissionChecker grants; the
// globals of the others stay nil.
//
// # Env
//
// Modules act on an Env: the plugin's execution context, its permission
// checker and resource monitor, and the services shared by every plugin
// (HTTP client, key-value store, query engine).
//
//	env := &api.Env{Context: c, Checker: checker, Monitor: monitor, HTTP: client, Store: store}
//	reg, err := api.DefaultRegistry(env)
//	if err != nil {
//	    return err
//	}
//	err = c.Do(ctx, func(L *lua.LState) error {
//	    _, err := reg.InjectAll(L, checker)
//	    return err
//	})
//
// # Failures
//
// Capabilities do not raise Lua errors for failed work. Network failures
// return a response with ok false and status 500; crypto failures return
// ""; store failures are logged and read as missing.
package api
