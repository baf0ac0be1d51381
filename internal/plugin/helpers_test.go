package plugin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"
)

// writeFile writes content under dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func newTestLoader(t *testing.T, dir string, opts ...LoaderOption) *Loader {
	t.Helper()
	opts = append([]LoaderOption{WithPaths(dir), WithLogger(zaptest.NewLogger(t))}, opts...)
	return NewLoader(opts...)
}

// loadCode writes code as dir/site.lua and loads it.
func loadCode(t *testing.T, code string) *Adapter {
	t.Helper()
	dir := t.TempDir()
	p := writeFile(t, dir, "site.lua", code)
	return mustLoad(t, newTestLoader(t, dir), Source{Location: p})
}

func mustLoad(t *testing.T, l *Loader, src Source) *Adapter {
	t.Helper()
	a, err := l.Load(context.Background(), src)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	t.Cleanup(func() { a.Destroy(context.Background()) })
	return a
}
