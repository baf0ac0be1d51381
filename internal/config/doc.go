// Package config loads the vvip configuration.
//
// Settings come from these sources, later ones winning:
//
//  1. built-in defaults (Default)
//  2. the user file, $XDG_CONFIG_HOME/vvip/config.toml
//  3. the project file, ./vvip.toml (or the file named by VVIP_CONFIG or
//     WithFile, which replaces both)
//  4. .env files, loaded into the environment without overriding it
//  5. environment variables
//
// A TOML file may pull in others with "@include" = ["base.toml"]; the
// including file wins.
//
// Environment variables map to settings by name: VVIP_CACHE_REDIS_ADDR
// sets cache.redisAddr. A few have fixed names, such as VVIP_LOG_LEVEL and
// the standard AWS_REGION, AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY.
// List settings accept comma separated values; VVIP_PLUGIN_PATH uses the
// OS path list separator.
//
// Example vvip.toml:
//
//	[log]
//	level = "debug"
//
//	[http]
//	timeout = "20s"
//
//	[plugin]
//	paths = ["/srv/spiders"]
//	limits = "strict"
//	deny = ["timer"]
//
//	[cache]
//	backend = "redis"
//	redisAddr = "127.0.0.1:6379"
package config
