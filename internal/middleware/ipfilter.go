package middleware

import (
	"net"
	"net/http"
	"strings"

	"cinecat/internal/logging"
)

type ipFilter struct {
	logger logging.Logger
	nets   []*net.IPNet
}

// IPFilter constructs a middleware that blocks requests from client IPs
// within any of the given CIDR ranges.
func IPFilter(logger logging.Logger, cidrs []string) (Middleware, error) {
	if len(cidrs) == 0 {
		return func(next http.Handler) http.Handler {
			return next
		}, nil
	}

	var nets []*net.IPNet
	for _, c := range cidrs {
		_, ipnet, err := net.ParseCIDR(c)
		if err != nil {
			return nil, err
		}
		nets = append(nets, ipnet)
	}

	f := &ipFilter{
		logger: logger,
		nets:   nets,
	}

	return f.middleware, nil
}

func (f *ipFilter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := clientIP(r)
		if clientIP == nil {
			next.ServeHTTP(w, r)
			return
		}

		for _, n := range f.nets {
			if n.Contains(clientIP) {
				f.logger.Warn("ip blocked",
					"ip", clientIP.String(),
					"path", r.URL.Path,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden"}`))
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP prefers the first X-Forwarded-For hop over the socket address.
func clientIP(r *http.Request) net.IP {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return net.ParseIP(r.RemoteAddr)
	}
	return net.ParseIP(host)
}
