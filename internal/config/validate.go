package config

import (
	"errors"
	"fmt"

	"github.com/vvip-tv/vvip-parser/internal/logging"
	"github.com/vvip-tv/vvip-parser/internal/plugin/security"
)

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(path, format string, args ...any) {
		errs = append(errs, &ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		add("log.level", "unknown level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		add("log.format", "must be console or json, got %q", c.Log.Format)
	}

	if c.HTTP.Timeout < 0 {
		add("http.timeout", "must not be negative")
	}
	if c.HTTP.MaxBodySize < 0 {
		add("http.maxBodySize", "must not be negative")
	}

	switch c.Plugin.Limits {
	case "", "default", "strict", "relaxed":
	default:
		add("plugin.limits", "must be default, strict or relaxed, got %q", c.Plugin.Limits)
	}
	if c.Plugin.ExecutionTimeout < 0 {
		add("plugin.executionTimeout", "must not be negative")
	}
	if c.Plugin.RequestsPerSecond < 0 {
		add("plugin.requestsPerSecond", "must not be negative")
	}
	for _, name := range c.Plugin.Deny {
		if _, err := security.ParseCapability(name); err != nil {
			add("plugin.deny", "unknown capability %q", name)
		}
	}

	switch c.Cache.Backend {
	case "", "memory":
	case "file":
		if c.Cache.Dir == "" {
			add("cache.dir", "required for the file backend")
		}
	case "redis":
		if c.Cache.RedisAddr == "" {
			add("cache.redisAddr", "required for the redis backend")
		}
	default:
		add("cache.backend", "must be memory, file or redis, got %q", c.Cache.Backend)
	}
	if c.Cache.CleanupInterval < 0 {
		add("cache.cleanupInterval", "must not be negative")
	}

	if (c.S3.AccessKeyID == "") != (c.S3.SecretAccessKey == "") {
		add("s3", "accessKeyId and secretAccessKey must be set together")
	}

	if c.Proxy.Port < 0 || c.Proxy.Port > 65535 {
		add("proxy.port", "out of range: %d", c.Proxy.Port)
	}

	return errors.Join(errs...)
}
