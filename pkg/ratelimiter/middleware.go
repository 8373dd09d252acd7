package ratelimiter

import (
	"hash/fnv"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// maxKeyLength is the maximum allowed length for a rate limit key
// to prevent excessively long storage keys.
const maxKeyLength = 64

// KeyFunc extracts a rate limit key from the request.
type KeyFunc func(r *http.Request) string

// ByIP keys requests by client address. Put chi's middleware.RealIP in front
// when running behind a proxy.
func ByIP() KeyFunc {
	return func(r *http.Request) string {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return r.RemoteAddr
		}
		return host
	}
}

// Static returns the same key for every request, e.g. a route name.
func Static(key string) KeyFunc {
	return func(*http.Request) string { return key }
}

// Composite combines multiple key functions into one.
// Long keys (>64 chars) are hashed using FNV-1a for storage efficiency.
func Composite(keyFuncs ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(keyFuncs))
		for _, fn := range keyFuncs {
			if key := fn(r); key != "" {
				parts = append(parts, key)
			}
		}

		if len(parts) == 0 {
			return ""
		}

		combined := strings.Join(parts, ":")
		if len(combined) > maxKeyLength {
			h := fnv.New64a()
			h.Write([]byte(combined))
			// Base36 encoding for compact output (~13 chars)
			return strconv.FormatUint(h.Sum64(), 36)
		}
		return combined
	}
}

// Limiter is what Middleware needs from a Bucket.
type Limiter interface {
	RateLimiter
	Now() time.Time
}

type middlewareConfig struct {
	onLimited http.Handler
	onError   func(w http.ResponseWriter, r *http.Request, err error)
}

type MiddlewareOption func(*middlewareConfig)

// WithLimitedHandler renders denied requests. Rate limit headers are already
// set when it runs.
func WithLimitedHandler(h http.Handler) MiddlewareOption {
	return func(c *middlewareConfig) {
		if h != nil {
			c.onLimited = h
		}
	}
}

// WithErrorHandler renders store failures.
func WithErrorHandler(h func(w http.ResponseWriter, r *http.Request, err error)) MiddlewareOption {
	return func(c *middlewareConfig) {
		if h != nil {
			c.onError = h
		}
	}
}

// Middleware creates an HTTP middleware for rate limiting. Requests with an
// empty key pass through.
func Middleware(limiter Limiter, keyFunc KeyFunc, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := &middlewareConfig{
		onLimited: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
		onError: func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			result, err := limiter.Allow(r.Context(), key)
			if err != nil {
				cfg.onError(w, r, err)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(0, result.Remaining)))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed() {
				retryAfter := int(result.RetryAfter(limiter.Now()).Round(time.Second).Seconds())
				w.Header().Set("Retry-After", strconv.Itoa(max(1, retryAfter)))
				cfg.onLimited.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
