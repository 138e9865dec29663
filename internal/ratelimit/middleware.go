package ratelimit

import (
	"net"
	"net/http"
	"strconv"

	"taskboard-leveler/internal/logging"
)

// Middleware returns an HTTP middleware that rate limits requests per client
// IP. Limiter errors fail open: an unreachable Redis must not take the API
// down with it.
func Middleware(limiter Limiter, logger logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	logger = logger.WithComponent("ratelimit")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result, err := limiter.Check(r.Context(), clientIP(r))
			if err != nil {
				logger.Warn("rate limit check failed", "error", err.Error())
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			if !result.Allowed {
				retryAfter := int(result.RetryAfter.Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the caller's IP, trusting RealIP-style middleware to have
// already normalized RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
