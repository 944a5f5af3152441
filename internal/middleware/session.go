package middleware

import (
	"log"
	"net/http"

	"github.com/sliqpay/backend/internal/session"
)

// SessionMiddleware reads the session cookie once per request, resolves
// the record (refreshing its TTL) and attaches it to the request
// context. A missing or failed session is not an error; the downstream
// auth guard decides what absence means.
func SessionMiddleware(mgr *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(mgr.CookieName())
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			record, err := mgr.Get(r.Context(), cookie.Value, true, 0)
			if err != nil {
				// swallow store errors; the request proceeds without a session
				log.Printf("[SESSION] lookup failed: %v", err)
				next.ServeHTTP(w, r)
				return
			}
			if record != nil {
				r = r.WithContext(withSession(r.Context(), record))
			}
			next.ServeHTTP(w, r)
		})
	}
}
