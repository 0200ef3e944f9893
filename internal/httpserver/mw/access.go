package mw

import (
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/confsync/internal/logger"
	"github.com/MrSnakeDoc/confsync/internal/utils"
)

// Admin guards the operator endpoints: CIDR allow-list first, then Host check.
// Both are passthrough when their list is empty.
func Admin(allowedCIDRS, allowedHosts []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	cidrs := AllowOnlyCIDRS(allowedCIDRS, trustProxy, log)
	hosts := EnforceHost(allowedHosts, log)
	return func(next http.Handler) http.Handler { return cidrs(hosts(next)) }
}

// AllowOnlyCIDRS allows only the listed IPs/CIDRs.
// trustProxy should be true when running behind a trusted reverse proxy/tunnel (e.g., cloudflared).
func AllowOnlyCIDRS(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	m := utils.NewIPMatcher(allowed)
	if m.IsEmpty() {
		return func(next http.Handler) http.Handler { return next }
	}
	log.Debugf("AllowOnlyCIDRS: %d rules, trustProxy=%v", m.Len(), trustProxy)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r, trustProxy)
			if !m.Allow(ip) {
				log.Warn("admin request rejected",
					logger.String("reason", "ip_not_allowed"),
					logger.String("client_ip", ip),
					logger.String("path", r.URL.Path))
				forbidden(w, "ip_not_allowed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// EnforceHost allows requests only if r.Host matches one of the allowed hosts.
// "*.example.com" matches any subdomain; the port of r.Host is ignored.
func EnforceHost(allowedHosts []string, log logger.Logger) func(http.Handler) http.Handler {
	if len(allowedHosts) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	patterns := make([]string, 0, len(allowedHosts))
	for _, h := range allowedHosts {
		patterns = append(patterns, strings.ToLower(h))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := strings.ToLower(utils.ParseHostNoPort(r.Host))
			for _, p := range patterns {
				if matchHost(host, p) {
					next.ServeHTTP(w, r)
					return
				}
			}
			log.Warn("admin request rejected",
				logger.String("reason", "host_not_allowed"),
				logger.String("host", r.Host),
				logger.String("path", r.URL.Path))
			forbidden(w, "host_not_allowed")
		})
	}
}

func matchHost(host, pattern string) bool {
	if host == pattern {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		return strings.HasSuffix(host, pattern[1:])
	}
	return false
}

func forbidden(w http.ResponseWriter, kind string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"error":"forbidden","kind":"` + kind + `"}` + "\n"))
}
