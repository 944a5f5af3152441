package middleware

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/sliqpay/backend/internal/cache"
)

// RateLimitOptions configures one fixed-window counter. Counting is per
// (Prefix, Bucket, identifier) tuple; the identifier defaults to the
// caller's network address.
type RateLimitOptions struct {
	WindowSeconds int64
	Limit         int64
	Prefix        string // default "rl"
	Bucket        string // default "global"
	Identifier    func(r *http.Request) string
	// FailClosed rejects requests with 503 when the store is
	// unreachable; the default is to let them through.
	FailClosed bool
}

// RateLimit enforces a fixed-window limit backed by the key-value
// store. The window is fixed, not sliding: a burst straddling a window
// reset can admit up to twice the limit, which is accepted behavior.
func RateLimit(store cache.Store, opts RateLimitOptions) func(http.Handler) http.Handler {
	if opts.WindowSeconds < 1 {
		opts.WindowSeconds = 1
	}
	if opts.Limit < 1 {
		opts.Limit = 1
	}
	if opts.Prefix == "" {
		opts.Prefix = "rl"
	}
	if opts.Bucket == "" {
		opts.Bucket = "global"
	}
	if opts.Identifier == nil {
		opts.Identifier = func(r *http.Request) string {
			if r.RemoteAddr == "" {
				return "unknown"
			}
			return r.RemoteAddr
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := opts.Prefix + ":" + opts.Bucket + ":" + opts.Identifier(r)

			count, err := store.Incr(ctx, key)
			if err != nil {
				rateLimitStoreFailure(w, r, next, opts, err)
				return
			}
			if count == 1 {
				if err := store.Expire(ctx, key, opts.WindowSeconds); err != nil {
					rateLimitStoreFailure(w, r, next, opts, err)
					return
				}
			}

			ttl, err := store.TTL(ctx, key)
			if err != nil {
				rateLimitStoreFailure(w, r, next, opts, err)
				return
			}

			remaining := opts.Limit - count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(opts.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if ttl >= 0 {
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(ttl, 10))
			}

			if count > opts.Limit {
				if ttl >= 0 {
					w.Header().Set("Retry-After", strconv.FormatInt(ttl, 10))
				}
				writeError(w, http.StatusTooManyRequests, "RATE_LIMITED",
					"Too many requests. Please try again later.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rateLimitStoreFailure(w http.ResponseWriter, r *http.Request, next http.Handler, opts RateLimitOptions, err error) {
	log.Printf("[RATELIMIT] store failure for bucket %s: %v", opts.Bucket, err)
	if opts.FailClosed {
		writeError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE",
			"Rate limit unavailable")
		return
	}
	next.ServeHTTP(w, r)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
