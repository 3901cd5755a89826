package app

import (
	"net/url"
	"strings"
)

// originAllowed reports whether an Origin header value matches any configured
// pattern. Patterns match against the host[:port] portion; `*.example.com`
// matches any subdomain, `localhost:*` matches any port.
func originAllowed(patterns []string, origin string) bool {
	host := origin
	if u, err := url.Parse(origin); err == nil && u.Host != "" {
		host = u.Host
	}
	for _, pattern := range patterns {
		if matchOrigin(pattern, host) {
			return true
		}
	}
	return false
}

func matchOrigin(pattern, host string) bool {
	switch {
	case pattern == host:
		return true
	case strings.HasPrefix(pattern, "*."):
		return strings.HasSuffix(host, pattern[1:])
	case strings.HasSuffix(pattern, ":*"):
		return strings.HasPrefix(host, strings.TrimSuffix(pattern, "*"))
	}
	return false
}
