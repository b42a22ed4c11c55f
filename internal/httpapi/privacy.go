package httpapi

import (
	"net"
	"net/http"
)

// allowIPs refuses callers outside allowedNets with 403. It runs after
// middleware.RealIP, so RemoteAddr may already be a bare address.
func allowIPs(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(allowedNets) == 0 || ipAllowed(r.RemoteAddr) {
			next.ServeHTTP(w, r)
			return
		}
		incrementRejected("forbidden_ip")
		writeJSONError(w, http.StatusForbidden, "client address not allowed")
	})
}

func ipAllowed(remote string) bool {
	host := remote
	if h, _, err := net.SplitHostPort(remote); err == nil {
		host = h
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, n := range allowedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
