package common

import (
	"net"
	"net/http"
	"strings"
)

var forwardedHeaders = []string{"X-Forwarded-For", "X-Real-IP"}

// ClientIP returns the first address named by a proxy header, falling back to
// the host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	for _, name := range forwardedHeaders {
		first, _, _ := strings.Cut(r.Header.Get(name), ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
