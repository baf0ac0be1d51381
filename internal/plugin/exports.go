package plugin

import (
	"sort"

	lua "github.com/yuin/gopher-lua"
)

// Operation names a plugin may export.
const (
	OpInit     = "init"
	OpHome     = "home"
	OpHomeVod  = "homeVod"
	OpCategory = "category"
	OpDetail   = "detail"
	OpSearch   = "search"
	OpPlay     = "play"
	OpProxy    = "proxy"
	OpAction   = "action"
	OpSniffer  = "sniffer"
	OpIsVideo  = "isVideo"
	OpDestroy  = "destroy"
)

// Operations lists every exportable operation name.
var Operations = []string{
	OpInit, OpHome, OpHomeVod, OpCategory, OpDetail, OpSearch,
	OpPlay, OpProxy, OpAction, OpSniffer, OpIsVideo, OpDestroy,
}

// Export is one exported operation. Self is set when the function was
// declared with method syntax (function M:home()) and must receive its
// table as the first argument.
type Export struct {
	Fn   *lua.LFunction
	Self *lua.LTable
}

// Exports maps operation names to the plugin functions implementing them.
// Every member is optional.
type Exports map[string]Export

// Has reports whether op is exported.
func (e Exports) Has(op string) bool {
	_, ok := e[op]
	return ok
}

// Names returns the exported operation names, sorted.
func (e Exports) Names() []string {
	names := make([]string, 0, len(e))
	for name := range e {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// harvestExports finds the plugin's operations after its chunk ran. The
// first of these that yields a table wins:
//
//  1. the value the chunk returned
//  2. module.exports, when the plugin replaced it
//  3. exports.default
//  4. the exports table itself
//
// When none of them holds an operation, global functions named after
// operations are collected, skipping names in reserved.
func harvestExports(L *lua.LState, results []lua.LValue, exportsTbl, moduleTbl *lua.LTable, reserved map[string]bool) Exports {
	var candidates []*lua.LTable
	if len(results) > 0 {
		if t, ok := results[0].(*lua.LTable); ok {
			candidates = append(candidates, t)
		}
	}
	if t, ok := moduleTbl.RawGetString("exports").(*lua.LTable); ok && t != exportsTbl {
		candidates = append(candidates, t)
	}
	if t, ok := exportsTbl.RawGetString("default").(*lua.LTable); ok {
		candidates = append(candidates, t)
	}
	candidates = append(candidates, exportsTbl)

	for _, t := range candidates {
		if ex := collect(L, t); len(ex) > 0 {
			return ex
		}
	}

	ex := make(Exports)
	for _, op := range Operations {
		if reserved[op] {
			continue
		}
		if fn, ok := L.GetGlobal(op).(*lua.LFunction); ok {
			ex[op] = Export{Fn: fn}
		}
	}
	return ex
}

// collect reads operations from t, following its __index chain so class
// style plugins work.
func collect(L *lua.LState, t *lua.LTable) Exports {
	ex := make(Exports)
	for _, op := range Operations {
		fn, ok := L.GetField(t, op).(*lua.LFunction)
		if !ok {
			continue
		}
		e := Export{Fn: fn}
		if isMethod(fn) {
			e.Self = t
		}
		ex[op] = e
	}
	return ex
}

// isMethod reports whether fn's first parameter is the implicit self.
func isMethod(fn *lua.LFunction) bool {
	p := fn.Proto
	return p != nil && p.NumParameters > 0 && len(p.DbgLocals) > 0 && p.DbgLocals[0].Name == "self"
}
