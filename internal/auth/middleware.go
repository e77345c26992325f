package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/clawdgames/botgate/internal/metrics"
)

// Middleware returns chi-compatible middleware that validates the service
// token on every request. Authentication failures are terminal: no handler
// logic runs after a 401/500 is written.
func Middleware(v *Validator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := v.Validate(r); err != nil {
				if errors.Is(err, ErrServerConfig) {
					// Operator error: be loud server-side, generic to the caller.
					logger.Error("integration token is not configured; rejecting request",
						"path", r.URL.Path, "remote_addr", r.RemoteAddr)
					metrics.RecordAuthFailure("server_config")
					writeJSONError(w, http.StatusInternalServerError, ErrServerConfig.Error())
					return
				}
				logger.Warn("rejected request with invalid token",
					"path", r.URL.Path, "remote_addr", r.RemoteAddr)
				metrics.RecordAuthFailure("invalid_token")
				writeJSONError(w, http.StatusUnauthorized, ErrUnauthorized.Error())
				return
			}

			ctx := r.Context()
			if token := ExtractToken(r.Header); token != "" {
				ctx = WithFingerprint(ctx, Fingerprint(token))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeJSONError writes the standard {success:false, error} envelope.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(map[string]any{"success": false, "error": message})
	if err != nil {
		// Encoding errors are not critical for error responses
		_ = err
	}
}
