package textutil

import (
	"net"
	"strconv"
)

// DefaultProxyPort is the port of the local proxy endpoint when none is
// configured.
const DefaultProxyPort = 8080

// ProxyURL returns the base address plugins route proxied media through.
// Only the local form is available; remote callers get "".
func ProxyURL(local bool, host string, port int) string {
	if !local {
		return ""
	}
	if host == "" {
		host = "127.0.0.1"
	}
	if port <= 0 {
		port = DefaultProxyPort
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}
