package plugin

import "testing"

func TestExtensionIsCode(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{`rule = {host = "x"}`, true},
		{"local rule = {}", true},
		{"var rule = {}", true},
		{"  rule={}", true},
		{"-- header\nrule = {}", true},
		{"if rule == nil then end", false},
		{"myrule = {}", false},
		{`{"rule": 1}`, false},
		{"https://example.com", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := (Extension{Raw: tt.raw}).IsCode(); got != tt.want {
			t.Errorf("IsCode(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestParseExtension(t *testing.T) {
	ext := ParseExtension(`{"token": "abc", "n": 2}`)
	if ext.Config["token"] != "abc" || ext.Config["n"] != float64(2) {
		t.Errorf("JSON Config = %v", ext.Config)
	}

	ext = ParseExtension("token: abc\nhosts:\n  - a.example\n")
	if ext.Config["token"] != "abc" {
		t.Errorf("YAML Config = %v", ext.Config)
	}
	if hosts, ok := ext.Config["hosts"].([]any); !ok || len(hosts) != 1 {
		t.Errorf("YAML hosts = %v", ext.Config["hosts"])
	}

	ext = ParseExtension("https://example.com/api")
	if ext.Config != nil || ext.Value() != "https://example.com/api" {
		t.Errorf("plain text = %+v", ext)
	}

	ext = ParseExtension("rule = {\n  host = 'x'\n}")
	if ext.Config != nil || !ext.IsCode() {
		t.Errorf("code = %+v", ext)
	}

	ext = ParseExtension("{not json")
	if ext.Config != nil || ext.Raw != "{not json" {
		t.Errorf("bad JSON = %+v", ext)
	}

	if !ParseExtension("").IsZero() {
		t.Error("empty extension should be zero")
	}
}

func TestExtensionValue(t *testing.T) {
	ext := Extension{Raw: `{"a":1}`, Config: map[string]any{"a": 1}}
	if _, ok := ext.Value().(map[string]any); !ok {
		t.Errorf("Value() = %T, want map", ext.Value())
	}
	if (Extension{Raw: "x"}).Value() != "x" {
		t.Error("Value() should return raw text without config")
	}
}

func TestSourceName(t *testing.T) {
	tests := []struct {
		loc    string
		name   string
		remote bool
	}{
		{"/srv/plugins/site.lua", "site", false},
		{"plugins/other.lua", "other", false},
		{"https://cdn.example/p/site.lua?v=2", "site", true},
		{"s3://bucket/dir/remote.lua", "remote", true},
		{"http://example.com/raw", "raw", true},
	}
	for _, tt := range tests {
		src := Source{Location: tt.loc}
		if got := src.Name(); got != tt.name {
			t.Errorf("Name(%q) = %q, want %q", tt.loc, got, tt.name)
		}
		if got := src.IsRemote(); got != tt.remote {
			t.Errorf("IsRemote(%q) = %v, want %v", tt.loc, got, tt.remote)
		}
	}
}
