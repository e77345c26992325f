package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// writeJSON writes a success payload. The payload map must already contain
// "success": true (or the helper adds it) so the bot service can branch on
// that field alone.
func writeJSON(w http.ResponseWriter, status int, payload map[string]any) {
	if _, ok := payload["success"]; !ok {
		payload["success"] = true
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(payload)
	if err != nil {
		// Encoding errors are not critical since headers are already sent
		_ = err
	}
}

// writeError writes the stable {success:false, error} envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "error": message})
}

// decodeJSON decodes a request body into dst with unknown-field tolerance
// and a sane error for malformed input.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}
