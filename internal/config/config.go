package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the complete vvip configuration.
type Config struct {
	Log    LogConfig    `toml:"log"`
	HTTP   HTTPConfig   `toml:"http"`
	Plugin PluginConfig `toml:"plugin"`
	Cache  CacheConfig  `toml:"cache"`
	S3     S3Config     `toml:"s3"`
	Proxy  ProxyConfig  `toml:"proxy"`

	// Internal: files the configuration was read from
	sources []string
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"maxSizeMb"`
	MaxBackups int    `toml:"maxBackups"`
	MaxAgeDays int    `toml:"maxAgeDays"`
	Compress   bool   `toml:"compress"`
}

// HTTPConfig configures the client behind plugin requests and remote
// sources.
type HTTPConfig struct {
	Timeout     Duration `toml:"timeout"`
	UserAgent   string   `toml:"userAgent"`
	MaxBodySize int64    `toml:"maxBodySize"`
}

// PluginConfig configures plugin discovery, limits and permissions.
type PluginConfig struct {
	Paths []string `toml:"paths"`

	// Limits is the base profile: "default", "strict" or "relaxed". The
	// fields below override it when non-zero.
	Limits            string   `toml:"limits"`
	ExecutionTimeout  Duration `toml:"executionTimeout"`
	RequestsPerSecond float64  `toml:"requestsPerSecond"`
	Burst             int      `toml:"burst"`
	MaxResponseSize   int64    `toml:"maxResponseSize"`
	MaxTimers         int      `toml:"maxTimers"`

	Deny         []string `toml:"deny"`
	AllowedHosts []string `toml:"allowedHosts"`
	BlockedHosts []string `toml:"blockedHosts"`
	AllowedPaths []string `toml:"allowedPaths"`
	BlockedPaths []string `toml:"blockedPaths"`
}

// CacheConfig selects the shared key-value store backend.
type CacheConfig struct {
	Backend         string   `toml:"backend"`
	Dir             string   `toml:"dir"`
	CleanupInterval Duration `toml:"cleanupInterval"`

	RedisAddr     string `toml:"redisAddr"`
	RedisPassword string `toml:"redisPassword"`
	RedisDB       int    `toml:"redisDb"`
	RedisPrefix   string `toml:"redisPrefix"`
}

// S3Config configures s3:// plugin sources.
type S3Config struct {
	Region          string `toml:"region"`
	Endpoint        string `toml:"endpoint"`
	AccessKeyID     string `toml:"accessKeyId"`
	SecretAccessKey string `toml:"secretAccessKey"`
	UsePathStyle    bool   `toml:"usePathStyle"`
}

// ProxyConfig is the local proxy endpoint reported to plugins.
type ProxyConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Duration is a time.Duration written as "30s" in files and variables.
type Duration time.Duration

// UnmarshalText parses "1m30s"; a bare integer is taken as nanoseconds.
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if v, err := time.ParseDuration(s); err == nil {
		*d = Duration(v)
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid duration %q", s)
	}
	*d = Duration(n)
	return nil
}

// MarshalText writes the duration as "1m30s".
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the built-in configuration.
func Default() *Config {
	cacheDir := filepath.Join(os.TempDir(), "vvip-cache")
	if dir, err := os.UserCacheDir(); err == nil {
		cacheDir = filepath.Join(dir, "vvip")
	}

	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		HTTP: HTTPConfig{
			Timeout: Duration(15 * time.Second),
		},
		Plugin: PluginConfig{
			Limits: "default",
		},
		Cache: CacheConfig{
			Backend:         "memory",
			Dir:             cacheDir,
			CleanupInterval: Duration(time.Hour),
			RedisPrefix:     "vvip:",
		},
		Proxy: ProxyConfig{
			Host: "127.0.0.1",
		},
	}
}

type loadOptions struct {
	fs       FileSystem
	files    []string
	explicit bool
	dotenv   []string
	noEnv    bool
}

// Option configures Load.
type Option func(*loadOptions)

// WithFile reads path instead of the default locations. The file must
// exist.
func WithFile(path string) Option {
	return func(o *loadOptions) {
		if path != "" {
			o.files = []string{path}
			o.explicit = true
		}
	}
}

// WithDotEnv loads the named .env files before reading the environment.
func WithDotEnv(paths ...string) Option {
	return func(o *loadOptions) {
		o.dotenv = paths
	}
}

// WithoutEnv ignores environment variables.
func WithoutEnv() Option {
	return func(o *loadOptions) {
		o.noEnv = true
	}
}

// WithFS reads configuration files from fsys.
func WithFS(fsys FileSystem) Option {
	return func(o *loadOptions) {
		o.fs = fsys
	}
}

// DefaultFiles returns the configuration files read when none is named, in
// increasing priority: the user file, then the project file.
func DefaultFiles() []string {
	var files []string
	if dir, err := os.UserConfigDir(); err == nil {
		files = append(files, filepath.Join(dir, "vvip", "config.toml"))
	}
	files = append(files, "vvip.toml")
	return files
}

// Load builds the configuration from the defaults, the TOML files, .env
// files and VVIP_ variables, in increasing priority, and validates it.
func Load(opts ...Option) (*Config, error) {
	o := loadOptions{fs: OSFS{}, dotenv: []string{".env"}}
	if p := os.Getenv(EnvPrefix + "CONFIG"); p != "" {
		WithFile(p)(&o)
	}
	for _, opt := range opts {
		opt(&o)
	}
	if len(o.files) == 0 {
		o.files = DefaultFiles()
	}

	cfg := Default()

	tl := NewTOMLLoaderWithFS(o.fs)
	merged := map[string]any{}
	for _, f := range o.files {
		m, err := tl.LoadWithIncludes(f, maxIncludeDepth)
		if err != nil {
			return nil, err
		}
		if m == nil {
			if o.explicit {
				return nil, fmt.Errorf("%w: %s", ErrFileNotFound, f)
			}
			continue
		}
		merged = DeepMerge(merged, m)
		cfg.sources = append(cfg.sources, f)
	}
	if err := cfg.apply(merged); err != nil {
		return nil, err
	}

	if !o.noEnv {
		if _, err := LoadDotEnv(o.dotenv...); err != nil {
			return nil, err
		}
		el := NewEnvLoader(EnvPrefix)
		el.KeepRaw(fieldPaths(reflect.String)...)
		env, _ := el.Load()
		delete(env, "config")
		splitLists(env)
		if err := cfg.apply(env); err != nil {
			return nil, fmt.Errorf("environment: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse reads configuration from TOML text on top of the defaults. It does
// not consult files or the environment.
func Parse(data []byte) (*Config, error) {
	m, err := parseTOML("<data>", data)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := cfg.apply(m); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Sources returns the files the configuration was read from.
func (c *Config) Sources() []string {
	return c.sources
}

// apply decodes m over c; keys m does not hold keep their values.
func (c *Config) apply(m map[string]any) error {
	if len(m) == 0 {
		return nil
	}
	data, err := toml.Marshal(m)
	if err != nil {
		return err
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return &ParseError{Path: "<merged>", Message: err.Error(), Err: err}
	}
	return nil
}

// String renders the configuration as TOML with secrets masked.
func (c *Config) String() string {
	masked := *c
	if masked.S3.SecretAccessKey != "" {
		masked.S3.SecretAccessKey = "***"
	}
	if masked.Cache.RedisPassword != "" {
		masked.Cache.RedisPassword = "***"
	}
	data, err := toml.Marshal(&masked)
	if err != nil {
		return err.Error()
	}
	return string(data)
}

// fieldPaths lists "section.key" paths of settings of the given kind.
func fieldPaths(kind reflect.Kind) []string {
	var paths []string
	walkFields(func(path string, t reflect.Type) {
		if t.Kind() == kind {
			paths = append(paths, path)
		}
	})
	return paths
}

// splitLists turns comma separated variables into lists where the setting
// is a list. plugin.paths also splits on the OS path list separator.
func splitLists(m map[string]any) {
	walkFields(func(path string, t reflect.Type) {
		if t.Kind() != reflect.Slice {
			return
		}
		section, key, _ := strings.Cut(path, ".")
		sec, ok := m[section].(map[string]any)
		if !ok {
			return
		}
		s, ok := sec[key].(string)
		if !ok {
			return
		}
		sep := ","
		if path == "plugin.paths" {
			sep = string(os.PathListSeparator)
		}
		var items []any
		for _, part := range strings.Split(s, sep) {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, part)
			}
		}
		sec[key] = items
	})
}

func walkFields(fn func(path string, t reflect.Type)) {
	root := reflect.TypeOf(Config{})
	for i := 0; i < root.NumField(); i++ {
		sf := root.Field(i)
		section := sf.Tag.Get("toml")
		if section == "" || sf.Type.Kind() != reflect.Struct {
			continue
		}
		for j := 0; j < sf.Type.NumField(); j++ {
			f := sf.Type.Field(j)
			if key := f.Tag.Get("toml"); key != "" {
				fn(section+"."+key, f.Type)
			}
		}
	}
}
