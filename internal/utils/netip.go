package utils

import (
	"net"
	"net/http"
	"strings"
)

// UnknownIP is returned when no address can be determined.
const UnknownIP = "unknown"

// hostNoPort strips an optional port from "ip:port", "[v6]:port" or "ip".
func hostNoPort(s string) string {
	if s == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(s); err == nil {
		return h
	}
	return s
}

// firstForwardedFor returns the left-most entry of X-Forwarded-For.
func firstForwardedFor(xff string) string {
	if i := strings.IndexByte(xff, ','); i >= 0 {
		xff = xff[:i]
	}
	return strings.TrimSpace(xff)
}

// ClientIP resolves the caller address. With trustProxy it prefers
// CF-Connecting-IP, then X-Real-IP, then the first X-Forwarded-For entry.
// Without it only RemoteAddr is used, since those headers are client
// controlled.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		candidates := []string{
			strings.TrimSpace(r.Header.Get("CF-Connecting-IP")),
			strings.TrimSpace(r.Header.Get("X-Real-IP")),
			firstForwardedFor(r.Header.Get("X-Forwarded-For")),
		}
		for _, v := range candidates {
			if ip := hostNoPort(v); ip != "" {
				return ip
			}
		}
	}
	if ip := hostNoPort(r.RemoteAddr); ip != "" {
		return ip
	}
	return UnknownIP
}
