package ratelimit

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/clawdgames/botgate/internal/metrics"
)

// Middleware returns chi-compatible middleware that enforces the limiter
// before any other processing. Every response carries the X-RateLimit-*
// headers; requests over budget get 429 with the standard envelope.
func Middleware(l *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := l.Check(IdentifierFor(r))

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed {
				metrics.RecordRateLimited()
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				err := json.NewEncoder(w).Encode(map[string]any{
					"success": false,
					"error":   "Rate limit exceeded",
				})
				if err != nil {
					// Encoding errors are not critical for error responses
					_ = err
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
