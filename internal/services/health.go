package services

import (
	"net/http"
	"time"

	"github.com/sliqpay/backend/internal/cache"
)

// HealthHandler reports service liveness and cache reachability.
func HealthHandler(store cache.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cacheStatus := "down"
		if err := store.Ping(r.Context()); err == nil {
			cacheStatus = "up"
		}

		respondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"ts":       time.Now().UTC().Format(time.RFC3339),
			"services": map[string]string{"cache": cacheStatus},
		})
	}
}
