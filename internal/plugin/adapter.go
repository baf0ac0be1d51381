package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	plua "github.com/vvip-tv/vvip-parser/internal/plugin/lua"
	"github.com/vvip-tv/vvip-parser/internal/plugin/security"
)

// Results returned when an operation is not exported.
const (
	DefaultHome     = `{"class":[]}`
	DefaultHomeVod  = `{"list":[]}`
	DefaultCategory = `{"page":1,"pagecount":0,"list":[]}`
	DefaultDetail   = `{"list":[]}`
	DefaultSearch   = `{"list":[]}`
	DefaultPlay     = `{"parse":0,"url":""}`
)

// mediaExtensions are the path suffixes IsVideo accepts by default.
var mediaExtensions = map[string]bool{
	".mp4": true, ".m3u8": true, ".flv": true, ".avi": true, ".mkv": true,
	".mov": true, ".mp3": true, ".m4a": true, ".ts": true, ".webm": true,
	".wav": true, ".aac": true, ".flac": true,
}

// ProxyResult is the response of a proxy operation.
type ProxyResult struct {
	Status      int
	ContentType string
	Body        string
	Headers     map[string]string
}

// DefaultProxy is returned when proxy is not exported.
var DefaultProxy = ProxyResult{Status: 404, ContentType: "text/plain"}

// MarshalJSON writes the result as [status, contentType, body] with headers
// appended when present.
func (p ProxyResult) MarshalJSON() ([]byte, error) {
	out := []any{p.Status, p.ContentType, p.Body}
	if len(p.Headers) > 0 {
		out = append(out, p.Headers)
	}
	return json.Marshal(out)
}

// Adapter wraps one loaded plugin behind a stable interface. It owns the
// plugin's execution context; operations run on that context's goroutine.
//
// The adapter does not serialize overlapping calls beyond what the context
// executor does: a call that waits on the network inside the plugin holds
// the executor, other calls queue behind it.
type Adapter struct {
	mu sync.RWMutex

	source  Source
	ctx     *plua.Context
	exports Exports
	state   State
	err     error

	checker *security.PermissionChecker
	monitor *security.ResourceMonitor
	logger  *zap.Logger
}

func newAdapter(src Source, c *plua.Context, exports Exports, checker *security.PermissionChecker, monitor *security.ResourceMonitor, logger *zap.Logger) *Adapter {
	return &Adapter{
		source:  src,
		ctx:     c,
		exports: exports,
		state:   StateCreated,
		checker: checker,
		monitor: monitor,
		logger:  logger,
	}
}

// ID returns the execution context id.
func (a *Adapter) ID() string {
	return a.ctx.ID()
}

// Source returns the source the adapter was loaded from.
func (a *Adapter) Source() Source {
	return a.source
}

// State returns the current lifecycle state.
func (a *Adapter) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Error returns the error of a failed init, if any.
func (a *Adapter) Error() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.err
}

// Exports returns the names of the exported operations.
func (a *Adapter) Exports() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.exports.Names()
}

// Warnings returns module references that failed to resolve during load.
func (a *Adapter) Warnings() []plua.ReferenceWarning {
	return a.ctx.Warnings()
}

// Usage returns the plugin's resource usage.
func (a *Adapter) Usage() security.ResourceUsage {
	return a.monitor.GetUsage()
}

// Init calls the plugin's init with the extension. The extension's structured
// form is passed as a table, raw text as a string.
func (a *Adapter) Init(ctx context.Context, ext Extension) error {
	_, err := a.call(ctx, OpInit, ext.Value())

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateDestroyed {
		return ErrAdapterDestroyed
	}
	if errors.Is(err, ErrAdapterDestroyed) {
		return err
	}
	if err != nil {
		a.state = StateError
		a.err = err
		return err
	}
	a.state = StateInitialized
	a.err = nil
	return nil
}

// Home returns the category list.
func (a *Adapter) Home(ctx context.Context, filter bool) (string, error) {
	return a.text(ctx, OpHome, DefaultHome, filter)
}

// HomeVod returns the recommended items.
func (a *Adapter) HomeVod(ctx context.Context) (string, error) {
	return a.text(ctx, OpHomeVod, DefaultHomeVod)
}

// Category returns page pg of category tid.
func (a *Adapter) Category(ctx context.Context, tid, pg string, filter bool, extend map[string]string) (string, error) {
	if extend == nil {
		extend = map[string]string{}
	}
	return a.text(ctx, OpCategory, DefaultCategory, tid, page(pg), filter, extend)
}

// Detail returns the detail record of id.
func (a *Adapter) Detail(ctx context.Context, id string) (string, error) {
	return a.text(ctx, OpDetail, DefaultDetail, id)
}

// Search searches for key.
func (a *Adapter) Search(ctx context.Context, key string, quick bool, pg string) (string, error) {
	return a.text(ctx, OpSearch, DefaultSearch, key, quick, page(pg))
}

// page returns pg as given, or "1" when empty. Pages are passed as text so
// plugins that paginate by cursor receive their token unchanged.
func page(pg string) string {
	if pg == "" {
		return "1"
	}
	return pg
}

// Play resolves the playback address of episode id on route flag.
func (a *Adapter) Play(ctx context.Context, flag, id string, flags []string) (string, error) {
	if flags == nil {
		flags = []string{}
	}
	return a.text(ctx, OpPlay, DefaultPlay, flag, id, flags)
}

// Action runs a plugin-defined action.
func (a *Adapter) Action(ctx context.Context, action string) (string, error) {
	return a.text(ctx, OpAction, "", action)
}

// Sniffer reports whether the plugin sniffs playback addresses itself.
func (a *Adapter) Sniffer(ctx context.Context) (bool, error) {
	v, err := a.call(ctx, OpSniffer)
	if err != nil || v == nil {
		return false, err
	}
	return toBool(v), nil
}

// IsVideo reports whether rawURL is directly playable. Without an isVideo
// export the URL path is checked for a media extension.
func (a *Adapter) IsVideo(ctx context.Context, rawURL string) (bool, error) {
	v, err := a.call(ctx, OpIsVideo, rawURL)
	if err != nil {
		return false, err
	}
	if v == nil {
		return IsMediaURL(rawURL), nil
	}
	return toBool(v), nil
}

// Proxy serves a proxied request.
func (a *Adapter) Proxy(ctx context.Context, params map[string]string) (ProxyResult, error) {
	if params == nil {
		params = map[string]string{}
	}
	v, err := a.call(ctx, OpProxy, params)
	if err != nil {
		return ProxyResult{}, err
	}
	if v == nil {
		return DefaultProxy, nil
	}
	return toProxyResult(v), nil
}

// Destroy calls the plugin's destroy, stops its timers and closes its
// context. Calling it again does nothing.
func (a *Adapter) Destroy(ctx context.Context) error {
	a.mu.Lock()
	if a.state == StateDestroyed {
		a.mu.Unlock()
		return nil
	}
	// Marked before destroy runs so a concurrent Destroy returns at once and
	// no other operation is admitted.
	exports := a.exports
	a.state = StateDestroyed
	a.exports = nil
	a.mu.Unlock()

	var err error
	if e, ok := exports[OpDestroy]; ok {
		err = a.ctx.Do(ctx, func(L *lua.LState) error {
			_, err := invoke(L, a.ctx, e)
			return err
		})
		if err != nil {
			a.logger.Warn("plugin destroy failed", zap.Error(err))
			err = &ExecutionError{Op: OpDestroy, Err: err}
		}
	}

	a.ctx.Close()
	a.logger.Debug("adapter destroyed")
	return err
}

// text runs op and returns its result as text, or def when op is not
// exported.
func (a *Adapter) text(ctx context.Context, op, def string, args ...any) (string, error) {
	v, err := a.call(ctx, op, args...)
	if err != nil {
		return "", err
	}
	if v == nil {
		return def, nil
	}
	return toText(v), nil
}

// call runs op with args on the context goroutine. It returns (nil, nil)
// when op is not exported; otherwise the first result converted to Go, with
// promises awaited.
func (a *Adapter) call(ctx context.Context, op string, args ...any) (any, error) {
	a.mu.Lock()
	if a.state == StateDestroyed {
		a.mu.Unlock()
		return nil, ErrAdapterDestroyed
	}
	e, ok := a.exports[op]
	if a.state == StateInitialized && op != OpInit {
		a.state = StateActive
	}
	a.mu.Unlock()

	if !ok {
		return nil, nil
	}

	var out any
	err := a.ctx.Do(ctx, func(L *lua.LState) error {
		b := a.ctx.Bridge()
		largs := make([]lua.LValue, len(args))
		for i, arg := range args {
			largs[i] = b.ToLuaValue(arg)
		}

		v, err := invoke(L, a.ctx, e, largs...)
		if err != nil {
			return err
		}
		if ud, ok := v.(*lua.LUserData); ok {
			if p, ok := ud.Value.(*plua.Promise); ok {
				out, err = await(ctx, a.ctx, p)
				return err
			}
		}
		if t, ok := v.(*lua.LTable); ok {
			// encode on the executor so Lua-specific table rules apply
			s, err := b.EncodeJSON(t)
			if err != nil {
				return err
			}
			out = rawJSON(s)
			return nil
		}
		out = b.ToGoValue(v)
		if out == nil {
			out = ""
		}
		return nil
	})

	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, plua.ErrContextClosed):
		return nil, ErrAdapterDestroyed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		if ctx.Err() != nil {
			return nil, err
		}
	}
	a.logger.Debug("plugin operation failed", zap.String("op", op), zap.Error(err))
	return nil, &ExecutionError{Op: op, Err: err}
}

// invoke calls an export and returns its first result.
func invoke(L *lua.LState, c *plua.Context, e Export, args ...lua.LValue) (lua.LValue, error) {
	if e.Self != nil {
		args = append([]lua.LValue{e.Self}, args...)
	}
	results, err := c.Call(L, e.Fn, args...)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return lua.LNil, nil
	}
	return results[0], nil
}

// await waits for a promise returned by an operation.
func await(ctx context.Context, c *plua.Context, p *plua.Promise) (any, error) {
	select {
	case <-p.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.Base().Done():
		return nil, plua.ErrContextClosed
	}
	v := p.Value()
	if v == nil {
		return "", nil
	}
	return v, nil
}

// rawJSON marks a result already encoded as JSON.
type rawJSON string

func toText(v any) string {
	switch x := v.(type) {
	case rawJSON:
		return string(x)
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func toBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return x != "" && x != "false" && x != "0"
	case rawJSON:
		return x != "" && x != "[]"
	case float64:
		return x != 0
	}
	return v != nil
}

// toProxyResult reads [status, contentType, body, headers].
func toProxyResult(v any) ProxyResult {
	var items []any
	switch x := v.(type) {
	case rawJSON:
		if err := json.Unmarshal([]byte(x), &items); err != nil {
			return DefaultProxy
		}
	case []any:
		items = x
	default:
		return DefaultProxy
	}

	res := ProxyResult{Status: 200}
	if len(items) > 0 {
		if n, ok := items[0].(float64); ok {
			res.Status = int(n)
		}
	}
	if len(items) > 1 {
		res.ContentType, _ = items[1].(string)
	}
	if len(items) > 2 {
		res.Body = toText(items[2])
	}
	if len(items) > 3 {
		if h, ok := items[3].(map[string]any); ok {
			res.Headers = make(map[string]string, len(h))
			for k, hv := range h {
				res.Headers[k] = toText(hv)
			}
		}
	}
	return res
}

// IsMediaURL reports whether the path of rawURL ends in a known media file
// extension.
func IsMediaURL(rawURL string) bool {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	return mediaExtensions[strings.ToLower(path.Ext(p))]
}
