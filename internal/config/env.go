package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every vvip environment variable.
const EnvPrefix = "VVIP_"

// EnvLoader loads configuration from environment variables.
type EnvLoader struct {
	prefix  string            // Environment variable prefix (e.g., "VVIP_")
	mapping map[string]string // Env var -> config path
	raw     map[string]bool   // Config paths kept as strings
}

// NewEnvLoader creates a new environment variable loader.
// The prefix should include the trailing underscore (e.g., "VVIP_").
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: defaultEnvMapping(),
		raw:     make(map[string]bool),
	}
}

// NewEnvLoaderWithMapping creates a loader with custom environment variable mappings.
func NewEnvLoaderWithMapping(prefix string, mapping map[string]string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: mapping,
		raw:     make(map[string]bool),
	}
}

// defaultEnvMapping returns the default environment variable mappings.
func defaultEnvMapping() map[string]string {
	return map[string]string{
		"VVIP_LOG_LEVEL":   "log.level",
		"VVIP_PLUGIN_PATH": "plugin.paths",
		"VVIP_CACHE_DIR":   "cache.dir",
		"VVIP_REDIS_ADDR":  "cache.redisAddr",
		"VVIP_USER_AGENT":  "http.userAgent",
		// Standard AWS variables
		"AWS_REGION":            "s3.region",
		"AWS_ENDPOINT_URL_S3":   "s3.endpoint",
		"AWS_ACCESS_KEY_ID":     "s3.accessKeyId",
		"AWS_SECRET_ACCESS_KEY": "s3.secretAccessKey",
	}
}

// KeepRaw marks config paths whose values are never type-converted, such
// as secrets that may look like numbers.
func (l *EnvLoader) KeepRaw(paths ...string) {
	for _, p := range paths {
		l.raw[p] = true
	}
}

// Load reads environment variables and returns a configuration map.
// Note: Empty string values are treated as valid values, not as unset.
func (l *EnvLoader) Load() (map[string]any, error) {
	config := make(map[string]any)

	for env, path := range l.mapping {
		if val, ok := os.LookupEnv(env); ok {
			setByPath(config, path, l.value(path, val))
		}
	}

	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, l.prefix) {
			continue
		}

		name, value, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		if _, mapped := l.mapping[name]; mapped {
			continue
		}

		// VVIP_HTTP_USER_AGENT -> http.userAgent
		path := l.envToPath(name)
		setByPath(config, path, l.value(path, value))
	}

	return config, nil
}

// AddMapping adds a custom environment variable mapping.
func (l *EnvLoader) AddMapping(envVar, configPath string) {
	if l.mapping == nil {
		l.mapping = make(map[string]string)
	}
	l.mapping[envVar] = configPath
}

// RemoveMapping removes an environment variable mapping.
func (l *EnvLoader) RemoveMapping(envVar string) {
	delete(l.mapping, envVar)
}

// envToPath converts VVIP_CACHE_REDIS_ADDR to cache.redisAddr: the first
// part names the section, the rest form the camelCase setting.
func (l *EnvLoader) envToPath(env string) string {
	name := strings.TrimPrefix(env, l.prefix)

	parts := strings.Split(name, "_")
	section := strings.ToLower(parts[0])
	if len(parts) == 1 {
		return section
	}

	setting := strings.ToLower(parts[1])
	for _, part := range parts[2:] {
		if len(part) > 0 {
			setting += strings.ToUpper(part[:1]) + strings.ToLower(part[1:])
		}
	}
	return section + "." + setting
}

func (l *EnvLoader) value(path, s string) any {
	if l.raw[path] {
		return s
	}
	return l.parseValue(s)
}

// parseValue attempts to parse the string value into an appropriate type.
func (l *EnvLoader) parseValue(s string) any {
	if s == "" {
		return s
	}

	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}

	// only with a decimal point, so ints stay ints
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}

	if d, err := time.ParseDuration(s); err == nil {
		return d.String()
	}

	if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			return v
		}
	}

	return s
}

// setByPath sets a value in a nested map using a dot-separated path.
func setByPath(data map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := data

	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

// LoadDotEnv loads variables from the named .env files into the process
// environment. Variables already set win. Missing files are skipped; the
// files actually read are returned.
func LoadDotEnv(paths ...string) ([]string, error) {
	var loaded []string
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, err
		}
		if err := godotenv.Load(p); err != nil {
			return loaded, &ParseError{Path: p, Message: err.Error(), Err: err}
		}
		loaded = append(loaded, p)
	}
	return loaded, nil
}
