package api

import (
	"context"
	"net/url"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/vvip-tv/vvip-parser/internal/fetch"
	plua "github.com/vvip-tv/vvip-parser/internal/plugin/lua"
	"github.com/vvip-tv/vvip-parser/internal/plugin/security"
)

const (
	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"
)

// NetModule installs req, http, _http and fetch.
//
// req(url, opts) blocks the calling plugin until the response arrives and
// returns it. http(url, opts) returns a promise; opts.async == false makes
// it behave like req. fetch and _http are http.
//
// Options: method, headers (or header), data (or body), postType ("json" or
// "form"), timeout, redirect, buffer ("base64" or 2), async, complete.
//
// A response is {ok, status, statusText, headers, url, redirected,
// content}. Failures are responses too: ok false, status 500 and the cause
// in statusText.
type NetModule struct {
	env *Env
}

// NewNetModule creates a new net module.
func NewNetModule(env *Env) *NetModule {
	return &NetModule{env: env}
}

// Name returns the module name.
func (m *NetModule) Name() string {
	return "net"
}

// RequiredCapability returns the capability required for this module.
func (m *NetModule) RequiredCapability() security.Capability {
	return security.CapabilityNetwork
}

// Globals returns the installed global names.
func (m *NetModule) Globals() []string {
	return []string{"req", "http", "_http", "fetch"}
}

// Register registers the module into the Lua state.
func (m *NetModule) Register(L *lua.LState) error {
	L.SetGlobal("req", L.NewFunction(m.req))

	httpFn := L.NewFunction(m.http)
	L.SetGlobal("http", httpFn)
	L.SetGlobal("_http", httpFn)
	L.SetGlobal("fetch", httpFn)
	return nil
}

// req(url, opts) -> response
func (m *NetModule) req(L *lua.LState) int {
	r, _, _ := m.request(L)
	resp := m.perform(m.env.ctx(L), r)
	L.Push(m.env.Context.Bridge().ToLuaValue(responseValue(resp)))
	return 1
}

// http(url, opts) -> promise, or response when opts.async is false
func (m *NetModule) http(L *lua.LState) int {
	r, complete, async := m.request(L)
	if !async {
		resp := m.perform(m.env.ctx(L), r)
		L.Push(m.env.Context.Bridge().ToLuaValue(responseValue(resp)))
		return 1
	}

	c := m.env.Context
	p := plua.NewPromise()
	go func() {
		v := responseValue(m.perform(c.Base(), r))
		if complete != nil {
			c.Post("http complete callback", func(L *lua.LState) error {
				return L.CallByParam(lua.P{Fn: complete, NRet: 0, Protect: true}, c.Bridge().ToLuaValue(v))
			})
		}
		p.Resolve(v)
	}()

	L.Push(c.NewPromiseValue(L, p))
	return 1
}

// perform checks permissions and the rate limit, then sends r.
func (m *NetModule) perform(ctx context.Context, r fetch.Request) fetch.Response {
	if m.env.Checker != nil {
		if err := m.env.Checker.CheckURL(r.URL); err != nil {
			return fetch.Failure(r.URL, err)
		}
	}
	if m.env.Monitor != nil {
		if err := m.env.Monitor.WaitNetwork(ctx); err != nil {
			return fetch.Failure(r.URL, err)
		}
	}

	resp := m.env.HTTP.Do(ctx, r)

	if m.env.Monitor != nil {
		m.env.Monitor.AddBytesRead(int64(len(resp.Content)))
	}
	return resp
}

// request reads the url and options arguments.
func (m *NetModule) request(L *lua.LState) (r fetch.Request, complete *lua.LFunction, async bool) {
	r = fetch.Request{URL: L.CheckString(1)}
	async = true
	if m.env.Monitor != nil {
		r.MaxBytes = m.env.Monitor.MaxResponseSize()
	}

	opts, ok := L.Get(2).(*lua.LTable)
	if !ok {
		return r, nil, async
	}
	b := m.env.Context.Bridge()

	if s, ok := b.GetTableString(opts, "method"); ok {
		r.Method = s
	}

	headers := opts.RawGetString("headers")
	if headers == lua.LNil {
		headers = opts.RawGetString("header")
	}
	if ht, ok := headers.(*lua.LTable); ok {
		r.Headers = b.StringMap(ht)
	}

	postType, _ := b.GetTableString(opts, "postType")
	data := opts.RawGetString("data")
	if data == lua.LNil {
		data = opts.RawGetString("body")
	}
	r.Body, r.ContentType = encodeBody(b, data, postType)

	if n, ok := opts.RawGetString("timeout").(lua.LNumber); ok {
		r.Timeout = timeoutFrom(float64(n))
	}
	if v := opts.RawGetString("redirect"); v != lua.LNil && !truthy(v) {
		r.NoRedirect = true
	}
	switch v := opts.RawGetString("buffer").(type) {
	case lua.LString:
		r.Base64 = v == "base64"
	case lua.LNumber:
		r.Base64 = v == 2
	}
	if v := opts.RawGetString("async"); v != lua.LNil && !truthy(v) {
		async = false
	}
	complete, _ = b.GetTableFunc(opts, "complete")

	return r, complete, async
}

// encodeBody turns the data option into a request body. Tables become JSON
// unless postType is "form".
func encodeBody(b *plua.Bridge, data lua.LValue, postType string) (body, contentType string) {
	switch postType {
	case "json":
		contentType = contentTypeJSON
	case "form":
		contentType = contentTypeForm
	}

	switch v := data.(type) {
	case *lua.LNilType:
		return "", ""
	case lua.LString:
		return string(v), contentType
	case *lua.LTable:
		if postType == "form" {
			values := url.Values{}
			for k, s := range b.StringMap(v) {
				values.Set(k, s)
			}
			return values.Encode(), contentType
		}
		s, err := b.EncodeJSON(v)
		if err != nil {
			return "", contentType
		}
		return s, contentTypeJSON
	default:
		return data.String(), contentType
	}
}

// timeoutFrom reads a timeout option. Values of 1000 and above are
// milliseconds; smaller values are seconds.
func timeoutFrom(n float64) time.Duration {
	switch {
	case n <= 0:
		return 0
	case n < 1000:
		return time.Duration(n * float64(time.Second))
	default:
		return time.Duration(n * float64(time.Millisecond))
	}
}

func responseValue(resp fetch.Response) map[string]any {
	headers := resp.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	return map[string]any{
		"ok":         resp.OK,
		"status":     resp.Status,
		"statusText": resp.StatusText,
		"headers":    headers,
		"url":        resp.URL,
		"redirected": resp.Redirected,
		"content":    resp.Content,
	}
}
