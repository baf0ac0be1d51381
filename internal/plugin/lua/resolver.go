package lua

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// ErrCyclicReference is recorded when a module requires itself, directly or
// through other modules.
var ErrCyclicReference = errors.New("cyclic module reference")

// Fetcher reads module source text for a resolved location: a local path,
// an http(s) URL or an s3://bucket/key URL.
type Fetcher interface {
	Fetch(ctx context.Context, location string) (string, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, location string) (string, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, location string) (string, error) {
	return f(ctx, location)
}

// Access decides whether a resolved location may be read.
type Access interface {
	CheckFileRead(path string) error
	CheckRemoteSource(host string) error
}

// ReferenceWarning records a module reference that could not be resolved.
// The plugin received an empty table in its place.
type ReferenceWarning struct {
	Reference string
	Origin    string
	Err       error
}

// String formats the warning for logs and CLI output.
func (w ReferenceWarning) String() string {
	return fmt.Sprintf("unresolved reference %q from %q: %v", w.Reference, w.Origin, w.Err)
}

// Resolver implements require() for one context. Modules are evaluated in
// the context's own state and cached per resolved location.
type Resolver struct {
	c *Context

	origin  string
	roots   []string
	fetcher Fetcher
	access  Access

	// only touched on the executor goroutine
	cache   map[string]lua.LValue
	loading map[string]bool
}

func newResolver(c *Context, cfg contextConfig) *Resolver {
	return &Resolver{
		c:       c,
		origin:  cfg.origin,
		roots:   cfg.roots,
		fetcher: cfg.fetcher,
		access:  cfg.access,
		cache:   make(map[string]lua.LValue),
		loading: make(map[string]bool),
	}
}

// require is the Lua entry point. Failures never raise; they leave a
// warning and return an empty placeholder table.
func (r *Resolver) require(L *lua.LState) int {
	name := L.CheckString(1)

	v, err := r.load(L, name)
	if err != nil {
		r.c.addWarning(ReferenceWarning{Reference: name, Origin: r.origin, Err: err})
		L.Push(L.NewTable())
		return 1
	}
	L.Push(v)
	return 1
}

// load resolves name, evaluating the module on first use.
func (r *Resolver) load(L *lua.LState, name string) (lua.LValue, error) {
	if r.fetcher == nil {
		return nil, fmt.Errorf("no module fetcher configured")
	}

	candidates := r.Candidates(name)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("cannot resolve %q", name)
	}

	var errs []error
	for _, loc := range candidates {
		if v, ok := r.cache[loc]; ok {
			return reexport(L, v), nil
		}
		if r.loading[loc] {
			return nil, fmt.Errorf("%w: %s", ErrCyclicReference, loc)
		}

		if err := r.checkAccess(loc); err != nil {
			errs = append(errs, err)
			continue
		}

		src, err := r.fetcher.Fetch(r.c.base, loc)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		v, err := r.evaluate(L, loc, src)
		if err != nil {
			return nil, err
		}
		r.cache[loc] = v
		r.c.logger.Debug("module resolved", zap.String("reference", name), zap.String("location", loc))
		return reexport(L, v), nil
	}
	return nil, errors.Join(errs...)
}

// evaluate runs a module chunk in L and returns its export value.
func (r *Resolver) evaluate(L *lua.LState, loc, src string) (lua.LValue, error) {
	r.loading[loc] = true
	defer delete(r.loading, loc)

	fn, err := L.Load(strings.NewReader(src), loc)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", loc, err)
	}
	results, err := callProtected(L, fn)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", loc, err)
	}
	if len(results) == 0 || results[0] == lua.LNil {
		return L.NewTable(), nil
	}
	return results[0], nil
}

// reexport returns a fresh table holding the module's named values, or the
// value itself when the module did not return a table.
func reexport(L *lua.LState, v lua.LValue) lua.LValue {
	src, ok := v.(*lua.LTable)
	if !ok {
		return v
	}
	out := L.NewTable()
	src.ForEach(func(k, val lua.LValue) {
		out.RawSet(k, val)
	})
	if mt := L.GetMetatable(src); mt != lua.LNil {
		L.SetMetatable(out, mt)
	}
	return out
}

func (r *Resolver) checkAccess(loc string) error {
	if r.access == nil {
		return nil
	}
	if isRemote(loc) {
		u, err := url.Parse(loc)
		if err != nil {
			return err
		}
		return r.access.CheckRemoteSource(u.Host)
	}
	return r.access.CheckFileRead(loc)
}

// Candidates lists the locations tried for a reference, in order.
//
// "./x", "../x", "x.lua" and "dir/x" are paths relative to the plugin's own
// location. A dotted name such as "lib.util" maps to "lib/util.lua". Names
// without an extension also try ".lua". Local plugins then try each extra
// search root.
func (r *Resolver) Candidates(ref string) []string {
	if ref == "" {
		return nil
	}
	if isRemote(ref) || filepath.IsAbs(ref) {
		return []string{ref}
	}

	rel := ref
	if !strings.HasPrefix(rel, "./") && !strings.HasPrefix(rel, "../") &&
		!strings.Contains(rel, "/") && !strings.HasSuffix(rel, ".lua") {
		rel = strings.ReplaceAll(rel, ".", "/")
	}

	names := []string{rel}
	if path.Ext(rel) != ".lua" {
		names = append(names, rel+".lua")
	}

	var out []string
	for _, n := range names {
		if loc := joinLocation(r.origin, n); loc != "" {
			out = append(out, loc)
		}
	}
	if !isRemote(r.origin) {
		for _, root := range r.roots {
			for _, n := range names {
				out = append(out, filepath.Join(root, filepath.FromSlash(n)))
			}
		}
	}
	return dedupe(out)
}

// joinLocation resolves a relative module path against the location of the
// referring source.
func joinLocation(origin, rel string) string {
	switch {
	case strings.HasPrefix(origin, "s3://"):
		u, err := url.Parse(origin)
		if err != nil {
			return ""
		}
		key := path.Join(path.Dir(strings.TrimPrefix(u.Path, "/")), rel)
		return "s3://" + u.Host + "/" + strings.TrimPrefix(key, "/")
	case isRemote(origin):
		base, err := url.Parse(origin)
		if err != nil {
			return ""
		}
		ref, err := url.Parse(rel)
		if err != nil {
			return ""
		}
		return base.ResolveReference(ref).String()
	case origin == "":
		return filepath.Clean(filepath.FromSlash(rel))
	default:
		return filepath.Join(filepath.Dir(origin), filepath.FromSlash(rel))
	}
}

func isRemote(loc string) bool {
	return strings.HasPrefix(loc, "http://") || strings.HasPrefix(loc, "https://") || strings.HasPrefix(loc, "s3://")
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
