package api

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/vvip-tv/vvip-parser/internal/plugin/security"
	"github.com/vvip-tv/vvip-parser/internal/query"
)

// QueryModule installs the selector functions:
//
//	pd(html, rule, base)                -> string, link attributes resolved
//	pdfh(html, rule)                    -> string
//	pdfa(html, rule)                    -> {fragment, ...}
//	pdfl(html, rule, text, url, base)   -> {"text$url", ...}
//	jsonGet(json, path)                 -> string
//
// The parsed document of the last markup is kept, so repeated queries over
// one page parse it once.
type QueryModule struct {
	env *Env

	// only touched on the executor goroutine
	lastMarkup string
	lastDoc    *query.Document
}

// NewQueryModule creates a new query module.
func NewQueryModule(env *Env) *QueryModule {
	return &QueryModule{env: env}
}

// Name returns the module name.
func (m *QueryModule) Name() string {
	return "query"
}

// RequiredCapability returns the capability required for this module.
func (m *QueryModule) RequiredCapability() security.Capability {
	return ""
}

// Globals returns the installed global names.
func (m *QueryModule) Globals() []string {
	return []string{"pd", "pdfh", "pdfa", "pdfl", "jsonGet"}
}

// Register registers the module into the Lua state.
func (m *QueryModule) Register(L *lua.LState) error {
	if m.env.Query == nil {
		m.env.Query = query.New()
	}
	L.SetGlobal("pd", L.NewFunction(m.pd))
	L.SetGlobal("pdfh", L.NewFunction(m.pdfh))
	L.SetGlobal("pdfa", L.NewFunction(m.pdfa))
	L.SetGlobal("pdfl", L.NewFunction(m.pdfl))
	L.SetGlobal("jsonGet", L.NewFunction(m.jsonGet))
	return nil
}

// document returns the parsed form of markup, reusing the previous parse.
func (m *QueryModule) document(markup string) *query.Document {
	if m.lastDoc != nil && markup == m.lastMarkup {
		return m.lastDoc
	}
	doc, err := query.Parse(markup)
	if err != nil {
		return nil
	}
	m.lastMarkup, m.lastDoc = markup, doc
	return doc
}

func (m *QueryModule) pd(L *lua.LState) int {
	doc := m.document(L.OptString(1, ""))
	rule := L.OptString(2, "")
	base := L.OptString(3, "")
	if doc == nil {
		L.Push(lua.LString(""))
		return 1
	}
	L.Push(lua.LString(m.env.Query.ExtractOne(doc, rule, base)))
	return 1
}

func (m *QueryModule) pdfh(L *lua.LState) int {
	doc := m.document(L.OptString(1, ""))
	rule := L.OptString(2, "")
	if doc == nil {
		L.Push(lua.LString(""))
		return 1
	}
	L.Push(lua.LString(m.env.Query.ExtractOne(doc, rule, "")))
	return 1
}

func (m *QueryModule) pdfa(L *lua.LState) int {
	doc := m.document(L.OptString(1, ""))
	rule := L.OptString(2, "")
	if doc == nil {
		L.Push(L.NewTable())
		return 1
	}
	L.Push(stringList(L, m.env.Query.ExtractAll(doc, rule)))
	return 1
}

func (m *QueryModule) pdfl(L *lua.LState) int {
	doc := m.document(L.OptString(1, ""))
	rule := L.OptString(2, "")
	textRule := L.OptString(3, "")
	urlRule := L.OptString(4, "")
	base := L.OptString(5, "")
	if doc == nil {
		L.Push(L.NewTable())
		return 1
	}
	L.Push(stringList(L, m.env.Query.ExtractPairs(doc, rule, textRule, urlRule, base)))
	return 1
}

// jsonGet(json, path) -> string
func (m *QueryModule) jsonGet(L *lua.LState) int {
	L.Push(lua.LString(query.JSONGet(L.OptString(1, ""), L.OptString(2, ""))))
	return 1
}

func stringList(L *lua.LState, items []string) *lua.LTable {
	t := L.CreateTable(len(items), 0)
	for _, s := range items {
		t.Append(lua.LString(s))
	}
	return t
}
