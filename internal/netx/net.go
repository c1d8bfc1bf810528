// Package netx holds small net/http helpers shared by the HTTP surface.
package netx

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the best guess of the caller's IP address.
//
// X-Real-IP wins (set by the fronting proxy). Otherwise the last element of
// X-Forwarded-For is used, as it is the hop closest to us. RemoteAddr is
// the fallback, with the port stripped.
func ClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	if forwardedFor := r.Header.Get("X-Forwarded-For"); forwardedFor != "" {
		ips := strings.Split(forwardedFor, ",")
		if last := strings.TrimSpace(ips[len(ips)-1]); last != "" {
			return last
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
