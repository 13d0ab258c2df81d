package web

import (
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RateLimit rejects requests with 429 once the limiter's budget is spent.
// It never waits: a write that cannot run now is refused.
func RateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				zerolog.Ctx(r.Context()).Warn().Str("path", r.URL.Path).Msg("rate limited")
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"Too many requests"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
