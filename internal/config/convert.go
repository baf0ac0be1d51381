package config

import (
	"context"

	"go.uber.org/zap"

	"github.com/vvip-tv/vvip-parser/internal/cache"
	"github.com/vvip-tv/vvip-parser/internal/fetch"
	"github.com/vvip-tv/vvip-parser/internal/logging"
	"github.com/vvip-tv/vvip-parser/internal/plugin/api"
	"github.com/vvip-tv/vvip-parser/internal/plugin/security"
)

// Logging returns the logger settings.
func (c LogConfig) Logging() logging.Config {
	return logging.Config{
		Level:      c.Level,
		Format:     c.Format,
		File:       c.File,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// ResourceLimits returns the base profile with the configured overrides.
func (c PluginConfig) ResourceLimits() security.ResourceLimits {
	var limits security.ResourceLimits
	switch c.Limits {
	case "strict":
		limits = security.StrictResourceLimits()
	case "relaxed":
		limits = security.RelaxedResourceLimits()
	default:
		limits = security.DefaultResourceLimits()
	}

	if c.ExecutionTimeout > 0 {
		limits.ExecutionTimeout = c.ExecutionTimeout.Std()
	}
	if c.RequestsPerSecond > 0 {
		limits.NetworkReqPerSecond = c.RequestsPerSecond
	}
	if c.Burst > 0 {
		limits.NetworkBurst = c.Burst
	}
	if c.MaxResponseSize > 0 {
		limits.MaxResponseSize = c.MaxResponseSize
	}
	if c.MaxTimers > 0 {
		limits.MaxTimers = c.MaxTimers
	}
	return limits
}

// PermissionSet returns the policy applied to every plugin. Unknown
// capability names were rejected by Validate.
func (c PluginConfig) PermissionSet() *security.PermissionSet {
	set := &security.PermissionSet{
		AllowedHosts: c.AllowedHosts,
		BlockedHosts: c.BlockedHosts,
		AllowedPaths: c.AllowedPaths,
		BlockedPaths: c.BlockedPaths,
	}
	for _, name := range c.Deny {
		if cap, err := security.ParseCapability(name); err == nil {
			set.Deny = append(set.Deny, cap)
		}
	}
	return set
}

// Store returns the key-value store settings.
func (c CacheConfig) Store() cache.Config {
	return cache.Config{
		Backend:         c.Backend,
		Dir:             c.Dir,
		CleanupInterval: c.CleanupInterval.Std(),
		Redis: cache.RedisConfig{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
			Prefix:   c.RedisPrefix,
		},
	}
}

// Enabled reports whether any S3 setting was given. Without them the
// default AWS credential chain decides.
func (c S3Config) Enabled() bool {
	return c.Region != "" || c.Endpoint != "" || c.AccessKeyID != ""
}

// Fetch returns the S3 reader settings.
func (c S3Config) Fetch() fetch.S3Config {
	return fetch.S3Config{
		Region:          c.Region,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		Endpoint:        c.Endpoint,
		UsePathStyle:    c.UsePathStyle,
	}
}

// API returns the proxy settings handed to plugins.
func (c ProxyConfig) API() api.ProxyConfig {
	return api.ProxyConfig{Host: c.Host, Port: c.Port}
}

// NewClient builds the HTTP client described by the http and s3 sections.
// An S3 setup failure is fatal only when S3 was configured explicitly;
// otherwise s3:// sources are just unavailable.
func (c *Config) NewClient(ctx context.Context, logger *zap.Logger) (*fetch.Client, error) {
	opts := []fetch.Option{fetch.WithLogger(logger)}
	if c.HTTP.UserAgent != "" {
		opts = append(opts, fetch.WithUserAgent(c.HTTP.UserAgent))
	}
	if c.HTTP.Timeout > 0 {
		opts = append(opts, fetch.WithTimeout(c.HTTP.Timeout.Std()))
	}
	if c.HTTP.MaxBodySize > 0 {
		opts = append(opts, fetch.WithMaxBodySize(c.HTTP.MaxBodySize))
	}
	g, err := fetch.NewS3Getter(ctx, c.S3.Fetch())
	switch {
	case err == nil:
		opts = append(opts, fetch.WithObjectGetter(g))
	case c.S3.Enabled():
		return nil, err
	default:
		logger.Debug("s3 sources unavailable", zap.Error(err))
	}
	return fetch.New(opts...), nil
}
