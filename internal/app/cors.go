package app

import (
	"net/url"
	"strings"
)

// extractOriginHost reduces an Origin header value to "host[:port]" so the
// allowed_origins patterns never need to care about the scheme.
func extractOriginHost(origin string) string {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return origin
	}
	return u.Host
}

// matchOriginPattern checks one allowed_origins entry against a request host.
// Entries are exact hosts, "*.domain" for any subdomain, or "host:*" for any
// port (useful for local frontend dev servers).
func matchOriginPattern(pattern, host string) bool {
	if pattern == host {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		return strings.HasSuffix(host, pattern[1:])
	}
	if strings.HasSuffix(pattern, ":*") {
		return strings.HasPrefix(host, pattern[:len(pattern)-1])
	}
	return false
}
