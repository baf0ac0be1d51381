package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func getByPath(m map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = m
	for _, p := range parts {
		mm, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = mm[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func TestEnvLoader_Load(t *testing.T) {
	t.Setenv("VVIP_LOG_LEVEL", "debug")
	t.Setenv("VVIP_HTTP_MAX_BODY_SIZE", "1024")
	t.Setenv("AWS_REGION", "eu-west-1")

	config, err := NewEnvLoader(EnvPrefix).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if val, ok := getByPath(config, "log.level"); !ok || val != "debug" {
		t.Errorf("log.level = %v, want 'debug'", val)
	}
	if val, ok := getByPath(config, "http.maxBodySize"); !ok || val != int64(1024) {
		t.Errorf("http.maxBodySize = %v (%T), want 1024", val, val)
	}
	if val, ok := getByPath(config, "s3.region"); !ok || val != "eu-west-1" {
		t.Errorf("s3.region = %v, want 'eu-west-1'", val)
	}
}

func TestEnvLoader_KeepRaw(t *testing.T) {
	t.Setenv("VVIP_CACHE_REDIS_PASSWORD", "0123")
	t.Setenv("VVIP_CACHE_REDIS_DB", "3")

	loader := NewEnvLoader(EnvPrefix)
	loader.KeepRaw("cache.redisPassword")
	config, _ := loader.Load()

	if val, _ := getByPath(config, "cache.redisPassword"); val != "0123" {
		t.Errorf("cache.redisPassword = %v (%T), want raw string", val, val)
	}
	if val, _ := getByPath(config, "cache.redisDb"); val != int64(3) {
		t.Errorf("cache.redisDb = %v (%T), want 3", val, val)
	}
}

func TestEnvLoader_envToPath(t *testing.T) {
	loader := NewEnvLoader(EnvPrefix)

	tests := []struct {
		env      string
		expected string
	}{
		{"VVIP_HTTP_USER_AGENT", "http.userAgent"},
		{"VVIP_LOG_LEVEL", "log.level"},
		{"VVIP_CACHE_REDIS_ADDR", "cache.redisAddr"},
		{"VVIP_LOG_MAX_SIZE_MB", "log.maxSizeMb"},
		{"VVIP_CONFIG", "config"},
	}

	for _, tt := range tests {
		if got := loader.envToPath(tt.env); got != tt.expected {
			t.Errorf("envToPath(%q) = %q, want %q", tt.env, got, tt.expected)
		}
	}
}

func TestEnvLoader_parseValue(t *testing.T) {
	loader := NewEnvLoader(EnvPrefix)

	tests := []struct {
		input    string
		expected any
	}{
		{"true", true},
		{"YES", true},
		{"off", false},
		{"1", int64(1)},
		{"0", int64(0)},
		{"-10", int64(-10)},
		{"2.5", 2.5},
		{"500ms", "500ms"},
		{"1m30s", "1m30s"},
		{`["a","b"]`, []any{"a", "b"}},
		{`{"k":"v"}`, map[string]any{"k": "v"}},
		{"127.0.0.1:6379", "127.0.0.1:6379"},
		{"", ""},
	}

	for _, tt := range tests {
		got := loader.parseValue(tt.input)
		if !reflect.DeepEqual(got, tt.expected) {
			t.Errorf("parseValue(%q) = %v (%T), want %v (%T)", tt.input, got, got, tt.expected, tt.expected)
		}
	}
}

func TestEnvLoader_AddRemoveMapping(t *testing.T) {
	loader := NewEnvLoader(EnvPrefix)
	loader.AddMapping("SPIDER_HOME", "plugin.paths")
	t.Setenv("SPIDER_HOME", "/spiders")

	config, _ := loader.Load()
	if val, ok := getByPath(config, "plugin.paths"); !ok || val != "/spiders" {
		t.Errorf("plugin.paths = %v, want '/spiders'", val)
	}

	loader.RemoveMapping("SPIDER_HOME")
	config, _ = loader.Load()
	if _, ok := getByPath(config, "plugin.paths"); ok {
		t.Error("removed mapping should not be loaded")
	}
}

func TestNewEnvLoaderWithMapping(t *testing.T) {
	loader := NewEnvLoaderWithMapping("MY_", map[string]string{"MY_VAR": "my.setting"})
	t.Setenv("MY_VAR", "test_value")

	config, _ := loader.Load()
	if val, ok := getByPath(config, "my.setting"); !ok || val != "test_value" {
		t.Errorf("my.setting = %v, want 'test_value'", val)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("VVIP_TEST_DOTENV=from-file\nVVIP_TEST_PRESET=from-file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VVIP_TEST_PRESET", "from-env")
	t.Cleanup(func() { os.Unsetenv("VVIP_TEST_DOTENV") })

	loaded, err := LoadDotEnv(filepath.Join(dir, "missing.env"), path)
	if err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}
	if len(loaded) != 1 || loaded[0] != path {
		t.Errorf("loaded = %v", loaded)
	}
	if got := os.Getenv("VVIP_TEST_DOTENV"); got != "from-file" {
		t.Errorf("VVIP_TEST_DOTENV = %q", got)
	}
	if got := os.Getenv("VVIP_TEST_PRESET"); got != "from-env" {
		t.Errorf("VVIP_TEST_PRESET = %q, existing variables must win", got)
	}
}
