package plugin

import (
	"encoding/json"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source identifies plugin code: a local path, an http(s) URL or an
// s3://bucket/key URL, plus the extension handed to init.
type Source struct {
	Location  string
	Extension Extension

	// Manifest narrows permissions and limits. When nil the loader looks
	// for a sidecar manifest next to local sources.
	Manifest *Manifest
}

// IsRemote reports whether the source is fetched over the network.
func (s Source) IsRemote() bool {
	return isRemoteLocation(s.Location)
}

// Name returns the base name of the source without its extension.
func (s Source) Name() string {
	loc := s.Location
	if i := strings.IndexAny(loc, "?#"); i >= 0 && s.IsRemote() {
		loc = loc[:i]
	}
	base := filepath.Base(filepath.FromSlash(loc))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func isRemoteLocation(loc string) bool {
	return strings.HasPrefix(loc, "http://") || strings.HasPrefix(loc, "https://") || strings.HasPrefix(loc, "s3://")
}

// Extension is the caller-supplied configuration for a plugin: either a
// structured object or raw text. Raw text that assigns a rule value is code
// and runs in the plugin's context before init.
type Extension struct {
	Raw    string
	Config map[string]any
}

// rulePattern matches a statement that assigns rule: "rule =", "local rule
// =", "var rule =" and the like.
var rulePattern = regexp.MustCompile(`(?m)^\s*(?:(?:local|var|let|const)\s+)?rule\s*=[^=]`)

// IsCode reports whether the extension is code that declares rule.
func (e Extension) IsCode() bool {
	return e.Raw != "" && rulePattern.MatchString(e.Raw)
}

// IsZero reports whether no extension was given.
func (e Extension) IsZero() bool {
	return e.Raw == "" && e.Config == nil
}

// Value returns what init receives: the structured object when there is one,
// otherwise the raw text.
func (e Extension) Value() any {
	if e.Config != nil {
		return e.Config
	}
	return e.Raw
}

// ParseExtension interprets extension text. Code that declares rule stays
// raw. A JSON or YAML object becomes Config. Anything else is raw text.
func ParseExtension(text string) Extension {
	ext := Extension{Raw: text}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || ext.IsCode() {
		return ext
	}

	if strings.HasPrefix(trimmed, "{") {
		var cfg map[string]any
		if err := json.Unmarshal([]byte(trimmed), &cfg); err == nil {
			ext.Config = cfg
		}
		return ext
	}

	// only multi-line "key: value" text is treated as YAML, so a lone URL
	// or token stays a string
	if strings.Contains(trimmed, "\n") {
		var cfg map[string]any
		if err := yaml.Unmarshal([]byte(trimmed), &cfg); err == nil && len(cfg) > 0 {
			ext.Config = cfg
		}
	}
	return ext
}
