// Package response holds the JSON encoding helpers shared by all handlers,
// so every endpoint emits the same envelope for errors.
package response

import (
	"encoding/json"
	"log"
	"net/http"
)

// ErrorResponse is the error envelope returned by every endpoint. Details
// carries field maps for validation failures or a plain string otherwise,
// and is omitted when empty.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// RespondJSON writes data as JSON with the given status. A nil data writes
// only the status line, which is what 204 responses want. Encoding failures
// are logged; by then the status is already on the wire.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode JSON response: %v", err)
	}
}

// RespondError writes an ErrorResponse with the given status. message is the
// user-facing summary; details may be a field map, an error string, or "".
func RespondError(w http.ResponseWriter, status int, message string, details any) {
	RespondJSON(w, status, ErrorResponse{Error: message, Details: details})
}
