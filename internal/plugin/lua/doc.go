// Package lua provides the Lua runtime that plugins execute in.
//
// This package wraps gopher-lua to provide:
//   - Sandboxed state management
//   - One executor goroutine per state
//   - Go-Lua value and JSON conversion
//   - Module resolution for require()
//   - Promises and timers delivered on the executor
//
// # Context
//
// A Context is one plugin instance's world. Everything that touches its
// state runs on its executor goroutine:
//
//	c, err := lua.NewContext(
//	    lua.WithOrigin("/srv/plugins/site.lua"),
//	    lua.WithFetcher(fetcher),
//	    lua.WithLogger(logger),
//	)
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	err = c.Do(ctx, func(L *glua.LState) error {
//	    _, err := c.Eval(L, "site.lua", src)
//	    return err
//	})
//
// # Sandbox
//
// The state opens base, table, string, math and coroutine. io, debug and
// package are never opened; os keeps only time, clock, date and difftime.
// dofile, loadfile, load and loadstring are removed. global and globalThis
// alias _G.
//
// # Modules
//
// require resolves relative names against the plugin's location (local
// path, http(s) URL or s3 URL) and evaluates the module in the same state.
// A failed reference yields an empty table and a ReferenceWarning; the load
// continues.
//
// # Blocking
//
// A Go function that blocks inside a job, such as a synchronous HTTP
// request or a promise await, parks only that context's executor.
package lua
